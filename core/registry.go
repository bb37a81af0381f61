package core

// registry.go implements the peer registry and active-peer tracker. The
// registry is a static list loaded once from accepted_ports.json; the
// active-peer set uses an expirable LRU cache keyed by peer address with
// automatic liveness-window eviction, rather than a hand-rolled sweep over
// a plain map.

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/google/uuid"
)

// PeerInfo is one entry of the static registry.
type PeerInfo struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Port    uint16 `json:"port"`
}

// AddrPort renders the dialable "address:port" string for this entry.
func (p PeerInfo) AddrPort() string {
	return fmt.Sprintf("%s:%d", p.Address, p.Port)
}

// networkConfigFile mirrors the accepted_ports.json shape: {"nodes": [...]}.
type networkConfigFile struct {
	Nodes []PeerInfo `json:"nodes"`
}

// PeerRegistry holds the static peer list plus the derived active-peer
// table (last-heartbeat timestamp per address within the liveness window).
type PeerRegistry struct {
	Nodes  []PeerInfo
	active *lru.LRU[string, time.Time]
}

// LoadPeerRegistry reads the accepted_ports.json file at path. Any entry
// missing an id is assigned a generated one so the registry is always
// addressable by a stable identifier even from a hand-edited file.
func LoadPeerRegistry(path string, livenessWindow time.Duration) (*PeerRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading registry %s: %v", ErrLocalIO, path, err)
	}
	var cfg networkConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing registry %s: %v", ErrLocalIO, path, err)
	}
	for i := range cfg.Nodes {
		if cfg.Nodes[i].ID == "" {
			cfg.Nodes[i].ID = uuid.NewString()
		}
	}
	size := len(cfg.Nodes)
	if size == 0 {
		size = 1
	}
	return &PeerRegistry{
		Nodes:  cfg.Nodes,
		active: lru.NewLRU[string, time.Time](size, nil, livenessWindow),
	}, nil
}

// OtherAddresses returns every registry address except self.
func (r *PeerRegistry) OtherAddresses(self string) []string {
	out := make([]string, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		if addr := n.AddrPort(); addr != self {
			out = append(out, addr)
		}
	}
	return out
}

// RecordHeartbeat marks addr as alive as of now.
func (r *PeerRegistry) RecordHeartbeat(addr string) {
	r.active.Add(addr, time.Now())
}

// ActivePeerCount returns the number of registry entries that have
// heartbeated within the liveness window. This is the denominator the
// consensus engine uses to know when it has heard from everyone currently
// reachable.
func (r *PeerRegistry) ActivePeerCount() int {
	return r.active.Len()
}

// ActiveSnapshot returns a defensive copy of the active-peer table for
// inspection.
func (r *PeerRegistry) ActiveSnapshot() map[string]time.Time {
	out := make(map[string]time.Time)
	for _, addr := range r.active.Keys() {
		if ts, ok := r.active.Peek(addr); ok {
			out[addr] = ts
		}
	}
	return out
}
