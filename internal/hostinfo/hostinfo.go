package hostinfo

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// DefaultWirelessPath is the Linux wireless statistics file.
const DefaultWirelessPath = "/proc/net/wireless"

// ErrNoHardwareAddress is returned when no interface has a usable MAC.
var ErrNoHardwareAddress = errors.New("hostinfo: no non-loopback interface with a hardware address")

// HardwareID returns the chip ID of this host: the low four bytes of the
// first non-loopback MAC, little-endian, as a decimal string.
func HardwareID() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	return hardwareIDFrom(ifaces)
}

func hardwareIDFrom(ifaces []net.Interface) (string, error) {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) < 4 {
			continue
		}
		return chipID(iface.HardwareAddr), nil
	}
	return "", ErrNoHardwareAddress
}

func chipID(mac net.HardwareAddr) string {
	return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(mac[:4])), 10)
}

// Probe implements relay.HostInfo against the running system.
type Probe struct {
	interfaces   func() ([]net.Interface, error)
	addrs        func(iface net.Interface) ([]net.Addr, error)
	wirelessPath string
	freeMemory   func() uint64
}

// NewProbe returns a Probe reading the live network stack, /proc and the
// kernel's memory counters.
func NewProbe() *Probe {
	return &Probe{
		interfaces:   net.Interfaces,
		addrs:        func(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() },
		wirelessPath: DefaultWirelessPath,
		freeMemory:   memory.FreeMemory,
	}
}

// LocalIP returns the first IPv4 address of an up, non-loopback interface,
// or "" if there is none.
func (p *Probe) LocalIP() string {
	ifaces, err := p.interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := p.addrs(iface)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4.String()
			}
		}
	}
	return ""
}

// SignalStrength returns the signal level in dBm of the first wireless
// interface, or 0 on wired hosts.
func (p *Probe) SignalStrength() int {
	f, err := os.Open(p.wirelessPath)
	if err != nil {
		return 0
	}
	defer f.Close()

	level, _ := parseWireless(f)
	return level
}

// FreeMemory returns the bytes of memory available to the system.
func (p *Probe) FreeMemory() uint64 {
	return p.freeMemory()
}

// parseWireless extracts the level column of the first interface row of
// /proc/net/wireless:
//
//	Inter-| sta-|   Quality        |   Discarded packets ...
//	 face | tus | link level noise |  nwid  crypt ...
//	 wlan0: 0000   54.  -56.  -256        0      0 ...
func parseWireless(r io.Reader) (int, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.ContainsAny(name, "|") {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			continue
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			continue
		}
		return int(level), true
	}
	return 0, false
}
