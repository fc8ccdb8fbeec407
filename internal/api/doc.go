// Package api serves the bridge's read-only HTTP status surface.
//
// Routes:
//
//	GET /metrics                 Prometheus exposition (when configured)
//	GET /api/v1/health           liveness
//	GET /api/v1/status           latest relay snapshot
//	GET /api/v1/peers            nodes heard on the ping channel
//	GET /api/v1/peers/{node}     one node
//
// The relay engine is single-threaded and must not be read from handler
// goroutines. The run loop publishes a Status after each tick to a
// StatusBoard, and handlers only read that snapshot.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
