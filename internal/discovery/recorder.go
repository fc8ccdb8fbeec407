package discovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/lnbridge/internal/relay"
)

// DefaultBuffer is the number of heartbeats RecordPeer can queue before it
// starts dropping.
const DefaultBuffer = 64

// ErrClosed is returned by operations on a closed recorder.
var ErrClosed = errors.New("discovery: recorder closed")

// Logger is the subset of the logging API the recorder uses.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Peer is one row of the registry.
type Peer struct {
	Node           string
	IP             string
	Signal         int
	Memory         uint64
	Uptime         uint32
	FirstSeen      time.Time
	LastSeen       time.Time
	HeartbeatCount int64
}

type observation struct {
	hb relay.HeartbeatMessage
	at time.Time
}

// PeerRecorder persists peer heartbeats.
//
// Thread Safety: All methods are safe for concurrent use.
type PeerRecorder struct {
	db     *sql.DB
	clock  clock.Clock
	logger Logger

	upsert  *sql.Stmt
	pending chan observation
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewPeerRecorder prepares the upsert statement and starts the writer.
// The peers table must already exist. A buffer of zero or less uses
// DefaultBuffer; a nil clk uses the wall clock.
func NewPeerRecorder(db *sql.DB, buffer int, clk clock.Clock) (*PeerRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("discovery: database is nil")
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if clk == nil {
		clk = clock.New()
	}

	stmt, err := db.Prepare(`
		INSERT INTO peers (node, ip, signal, memory, uptime, first_seen, last_seen, heartbeat_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(node) DO UPDATE SET
			ip = excluded.ip,
			signal = excluded.signal,
			memory = excluded.memory,
			uptime = excluded.uptime,
			last_seen = excluded.last_seen,
			heartbeat_count = heartbeat_count + 1
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing peer upsert statement: %w", err)
	}

	r := &PeerRecorder{
		db:      db,
		clock:   clk,
		upsert:  stmt,
		pending: make(chan observation, buffer),
		done:    make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// SetLogger sets the logger for the recorder.
func (r *PeerRecorder) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// RecordPeer queues hb for the writer. It never blocks: when the queue is
// full the heartbeat is dropped and counted. Heartbeats without a sender
// are ignored.
func (r *PeerRecorder) RecordPeer(hb relay.HeartbeatMessage) {
	if hb.From == "" {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.pending <- observation{hb: hb, at: r.clock.Now()}:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many heartbeats were discarded because the writer
// fell behind.
func (r *PeerRecorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting heartbeats, writes the ones already queued and
// releases the statement. The database itself stays open.
func (r *PeerRecorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.pending)
	r.mu.Unlock()

	<-r.done
	if err := r.upsert.Close(); err != nil {
		return fmt.Errorf("closing peer upsert statement: %w", err)
	}
	r.log("peer recorder stopped")
	return nil
}

func (r *PeerRecorder) run() {
	defer close(r.done)
	for obs := range r.pending {
		if err := r.write(obs); err != nil {
			r.logError("recording peer", err, obs.hb.From)
		}
	}
}

func (r *PeerRecorder) write(obs observation) error {
	hb := obs.hb
	ts := obs.at.Unix()
	_, err := r.upsert.Exec(hb.From, hb.IP, hb.SigStrength, int64(hb.Mem), int64(hb.Uptime), ts, ts) //nolint:gosec // Free memory fits in int64
	return err
}

// Peers lists the registry, most recently seen first.
func (r *PeerRecorder) Peers(ctx context.Context) ([]Peer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node, ip, signal, memory, uptime, first_seen, last_seen, heartbeat_count
		FROM peers
		ORDER BY last_seen DESC, node ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying peers: %w", err)
	}
	defer rows.Close()

	var peers []Peer
	for rows.Next() {
		p, err := scanPeer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning peer row: %w", err)
		}
		peers = append(peers, p)
	}
	return peers, rows.Err()
}

// Peer returns one node's row, or sql.ErrNoRows if it was never seen.
func (r *PeerRecorder) Peer(ctx context.Context, node string) (Peer, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT node, ip, signal, memory, uptime, first_seen, last_seen, heartbeat_count
		FROM peers WHERE node = ?
	`, node)
	return scanPeer(row.Scan)
}

func scanPeer(scan func(dest ...any) error) (Peer, error) {
	var (
		p           Peer
		mem, uptime int64
		first, last int64
	)
	if err := scan(&p.Node, &p.IP, &p.Signal, &mem, &uptime, &first, &last, &p.HeartbeatCount); err != nil {
		return Peer{}, err
	}
	p.Memory = uint64(mem)    //nolint:gosec // Stored from a uint64
	p.Uptime = uint32(uptime) //nolint:gosec // Stored from a uint32
	p.FirstSeen = time.Unix(first, 0).UTC()
	p.LastSeen = time.Unix(last, 0).UTC()
	return p, nil
}

// PeerCount returns the number of distinct nodes seen.
func (r *PeerRecorder) PeerCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM peers`).Scan(&count)
	return count, err
}

// PruneBefore deletes peers not seen since cutoff and returns how many went.
func (r *PeerRecorder) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM peers WHERE last_seen < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning peers: %w", err)
	}
	return res.RowsAffected()
}

// PruneStale deletes peers unseen for longer than retention, once at start
// and then every interval, until ctx is cancelled.
func (r *PeerRecorder) PruneStale(ctx context.Context, retention, interval time.Duration) {
	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		n, err := r.PruneBefore(ctx, r.clock.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			r.logError("pruning stale peers", err, "")
		case n > 0:
			r.log("pruned stale peers", "removed", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *PeerRecorder) log(msg string, keysAndValues ...any) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()
	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (r *PeerRecorder) logError(msg string, err error, node string) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()
	if logger != nil {
		logger.Error(msg, "node", node, "error", err)
	}
}
