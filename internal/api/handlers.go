package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lnbridge/internal/discovery"
)

// handleHealth runs every registered health check. Any failure turns the
// response into 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":         status,
		"checks":         checks,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// handleStatus returns the latest relay snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeUnavailable(w, "relay status not available")
		return
	}
	st, ok := s.status.Load()
	if !ok {
		writeUnavailable(w, "relay has not ticked yet")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// peerResponse is the JSON form of a discovery.Peer.
type peerResponse struct {
	Node           string    `json:"node"`
	IP             string    `json:"ip"`
	Signal         int       `json:"signal"`
	Memory         uint64    `json:"memory"`
	Uptime         uint32    `json:"uptime"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	HeartbeatCount int64     `json:"heartbeat_count"`
}

func toPeerResponse(p discovery.Peer) peerResponse {
	return peerResponse(p)
}

// handleListPeers returns every node in the registry.
func (s *Server) handleListPeers(w http.ResponseWriter, r *http.Request) {
	if s.peers == nil {
		writeUnavailable(w, "peer registry disabled")
		return
	}
	peers, err := s.peers.Peers(r.Context())
	if err != nil {
		s.logger.Error("listing peers", "error", err)
		writeInternalError(w, "listing peers failed")
		return
	}

	out := make([]peerResponse, 0, len(peers))
	for _, p := range peers {
		out = append(out, toPeerResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"peers": out,
		"count": len(out),
	})
}

// handleGetPeer returns one node.
func (s *Server) handleGetPeer(w http.ResponseWriter, r *http.Request) {
	if s.peers == nil {
		writeUnavailable(w, "peer registry disabled")
		return
	}
	node := chi.URLParam(r, "node")
	p, err := s.peers.Peer(r.Context(), node)
	if errors.Is(err, sql.ErrNoRows) {
		writeNotFound(w, "peer not found")
		return
	}
	if err != nil {
		s.logger.Error("reading peer", "node", node, "error", err)
		writeInternalError(w, "reading peer failed")
		return
	}
	writeJSON(w, http.StatusOK, toPeerResponse(p))
}
