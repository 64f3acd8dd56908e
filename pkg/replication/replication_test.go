package replication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"logscan/pkg/tsdb"
)

func TestMap_ReplicaAddrsForIsDeterministic(t *testing.T) {
	cfg := Config{LocalAddr: "a:1", Hosts: []string{"a:1", "b:1", "c:1"}, ReplicationFactor: 2}
	m, err := NewMap(cfg)
	require.NoError(t, err)

	key := tsdb.KeyFor("logs.web", time.Time{}, 0)
	first := m.ReplicaAddrsFor(key)
	second := m.ReplicaAddrsFor(key)
	require.Equal(t, first, second)
	require.Len(t, first, 2)
}

func TestMap_HasLocalReplicaConsistentWithRemoteAddrs(t *testing.T) {
	cfg := Config{LocalAddr: "a:1", Hosts: []string{"a:1", "b:1", "c:1"}, ReplicationFactor: 3}
	m, err := NewMap(cfg)
	require.NoError(t, err)

	key := tsdb.KeyFor("logs.web", time.Time{}, 0)
	require.True(t, m.HasLocalReplica(key))
	remote := m.RemoteAddrsFor(key)
	require.NotContains(t, remote, "a:1")
	require.Len(t, remote, 2)
}

func TestNewMap_RequiresAtLeastOneHost(t *testing.T) {
	_, err := NewMap(Config{})
	require.Error(t, err)
}
