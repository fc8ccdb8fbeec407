// Package hostinfo reads the host facts a relay node reports about itself:
// a hardware-derived ID for its name, and the address, radio signal and free
// memory carried in every heartbeat.
package hostinfo
