// Package discovery keeps a registry of the relay nodes heard on the ping
// topic.
//
// The relay router hands every foreign heartbeat to PeerRecorder.RecordPeer,
// which queues it for a background writer and returns at once. The writer
// upserts one row per node into the peers table, so the registry survives
// restarts and can be listed with Peers.
package discovery
