// Package replication answers replica-ownership questions: given a
// partition key, which hosts hold a replica, and does the local node
// hold one. It is a static, config-driven ring rather than a gossiping
// cluster membership service; partition ownership here is declared, not
// discovered.
package replication

import (
	"sort"
	"sync"

	"logscan/pkg/errs"
	"logscan/pkg/tsdb"
)

const component = "replication"

// Config declares the static replica set this node participates in.
type Config struct {
	LocalAddr         string   `yaml:"local_addr"`
	Hosts             []string `yaml:"hosts"`
	ReplicationFactor int      `yaml:"replication_factor"`
}

// Map answers replica-ownership questions for partition keys.
type Map struct {
	mu     sync.RWMutex
	local  string
	hosts  []string
	factor int
}

// NewMap builds a replica map from a static host list. Hosts are sorted
// so every node derives the same ring order independently, with no
// coordination required.
func NewMap(cfg Config) (*Map, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errs.IllegalState(component, "NewMap", "replica map requires at least one host")
	}
	factor := cfg.ReplicationFactor
	if factor <= 0 {
		factor = 1
	}
	if factor > len(cfg.Hosts) {
		factor = len(cfg.Hosts)
	}

	hosts := append([]string(nil), cfg.Hosts...)
	sort.Strings(hosts)

	return &Map{local: cfg.LocalAddr, hosts: hosts, factor: factor}, nil
}

// ReplicaAddrsFor returns the ordered set of hosts that own key, derived
// deterministically from the key's leading bytes so every node computes
// the identical answer without a lookup round-trip.
func (m *Map) ReplicaAddrsFor(key tsdb.PartitionKey) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.hosts)
	start := (int(key[0])<<8 | int(key[1])) % n

	addrs := make([]string, 0, m.factor)
	for i := 0; i < m.factor; i++ {
		addrs = append(addrs, m.hosts[(start+i)%n])
	}
	return addrs
}

// HasLocalReplica reports whether this node is one of key's replica
// owners.
func (m *Map) HasLocalReplica(key tsdb.PartitionKey) bool {
	for _, addr := range m.ReplicaAddrsFor(key) {
		if addr == m.local {
			return true
		}
	}
	return false
}

// RemoteAddrsFor returns key's replica owners excluding the local node,
// in the order the remote scan adapter should try them.
func (m *Map) RemoteAddrsFor(key tsdb.PartitionKey) []string {
	all := m.ReplicaAddrsFor(key)
	remote := make([]string, 0, len(all))
	for _, addr := range all {
		if addr != m.local {
			remote = append(remote, addr)
		}
	}
	return remote
}
