package hostinfo

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q) error = %v", s, err)
	}
	return mac
}

func TestChipID(t *testing.T) {
	tests := []struct {
		mac  string
		want string
	}{
		{"24:0a:c4:12:34:56", "314837540"}, // 0x12c40a24
		{"00:00:00:00:aa:bb", "0"},
		{"ff:ff:ff:ff:00:00", "4294967295"},
	}
	for _, tt := range tests {
		if got := chipID(mustMAC(t, tt.mac)); got != tt.want {
			t.Errorf("chipID(%s) = %q, want %q", tt.mac, got, tt.want)
		}
	}
}

func TestHardwareIDFrom(t *testing.T) {
	ifaces := []net.Interface{
		{Name: "lo", Flags: net.FlagLoopback | net.FlagUp},
		{Name: "tun0", Flags: net.FlagUp},
		{Name: "eth0", Flags: net.FlagUp, HardwareAddr: mustMAC(t, "24:0a:c4:12:34:56")},
		{Name: "wlan0", Flags: net.FlagUp, HardwareAddr: mustMAC(t, "00:00:00:00:00:01")},
	}

	got, err := hardwareIDFrom(ifaces)
	if err != nil {
		t.Fatalf("hardwareIDFrom() error = %v", err)
	}
	if got != "314837540" {
		t.Errorf("hardwareIDFrom() = %q, want eth0's chip ID", got)
	}
	if len(got) > 10 {
		t.Errorf("chip ID %q longer than 10 digits", got)
	}
}

func TestHardwareIDFrom_None(t *testing.T) {
	ifaces := []net.Interface{{Name: "lo", Flags: net.FlagLoopback, HardwareAddr: mustMAC(t, "00:00:00:00:00:01")}}
	if _, err := hardwareIDFrom(ifaces); !errors.Is(err, ErrNoHardwareAddress) {
		t.Errorf("hardwareIDFrom() error = %v, want ErrNoHardwareAddress", err)
	}
}

func TestLocalIP(t *testing.T) {
	p := &Probe{
		interfaces: func() ([]net.Interface, error) {
			return []net.Interface{
				{Index: 1, Name: "lo", Flags: net.FlagLoopback | net.FlagUp},
				{Index: 2, Name: "eth1"},
				{Index: 3, Name: "wlan0", Flags: net.FlagUp},
			}, nil
		},
		addrs: func(iface net.Interface) ([]net.Addr, error) {
			switch iface.Name {
			case "lo":
				return []net.Addr{&net.IPNet{IP: net.IPv4(127, 0, 0, 1)}}, nil
			case "eth1":
				return []net.Addr{&net.IPNet{IP: net.IPv4(10, 9, 9, 9)}}, nil
			default:
				return []net.Addr{
					&net.IPNet{IP: net.ParseIP("fe80::1")},
					&net.IPNet{IP: net.IPv4(192, 168, 1, 20)},
				}, nil
			}
		},
	}

	if got := p.LocalIP(); got != "192.168.1.20" {
		t.Errorf("LocalIP() = %q, want 192.168.1.20", got)
	}
}

func TestLocalIP_Failures(t *testing.T) {
	p := &Probe{
		interfaces: func() ([]net.Interface, error) { return nil, errors.New("no netlink") },
	}
	if got := p.LocalIP(); got != "" {
		t.Errorf("LocalIP() = %q, want empty", got)
	}

	p = &Probe{
		interfaces: func() ([]net.Interface, error) {
			return []net.Interface{{Name: "eth0", Flags: net.FlagUp}}, nil
		},
		addrs: func(net.Interface) ([]net.Addr, error) { return nil, errors.New("gone") },
	}
	if got := p.LocalIP(); got != "" {
		t.Errorf("LocalIP() = %q, want empty", got)
	}
}

const wirelessSample = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
 wlan0: 0000   54.  -56.  -256        0      0      0      0      0        0
`

func TestParseWireless(t *testing.T) {
	level, ok := parseWireless(strings.NewReader(wirelessSample))
	if !ok || level != -56 {
		t.Errorf("parseWireless() = (%d, %v), want (-56, true)", level, ok)
	}

	headerOnly := strings.Join(strings.Split(wirelessSample, "\n")[:2], "\n")
	if level, ok := parseWireless(strings.NewReader(headerOnly)); ok || level != 0 {
		t.Errorf("parseWireless(header only) = (%d, %v), want (0, false)", level, ok)
	}
}

func TestSignalStrength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wireless")
	if err := os.WriteFile(path, []byte(wirelessSample), 0o600); err != nil {
		t.Fatal(err)
	}

	p := &Probe{wirelessPath: path}
	if got := p.SignalStrength(); got != -56 {
		t.Errorf("SignalStrength() = %d, want -56", got)
	}

	p.wirelessPath = filepath.Join(t.TempDir(), "missing")
	if got := p.SignalStrength(); got != 0 {
		t.Errorf("SignalStrength() on wired host = %d, want 0", got)
	}
}

func TestFreeMemory(t *testing.T) {
	p := &Probe{freeMemory: func() uint64 { return 123456 }}
	if got := p.FreeMemory(); got != 123456 {
		t.Errorf("FreeMemory() = %d, want 123456", got)
	}
}
