package nameservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunmenon95/gohdfs/internal/transport"
)

func TestSampleReplicasInsufficientMembers(t *testing.T) {
	m := NewMembership()
	m.Admit("dn-1", transport.Endpoint{Host: "h1", Port: 1})

	_, err := m.SampleReplicas(2)
	assert.Error(t, err)
}

func TestSampleReplicasDistinctAndCorrectCount(t *testing.T) {
	m := NewMembership()
	m.Admit("dn-1", transport.Endpoint{Host: "h1", Port: 1})
	m.Admit("dn-2", transport.Endpoint{Host: "h2", Port: 2})
	m.Admit("dn-3", transport.Endpoint{Host: "h3", Port: 3})

	replicas, err := m.SampleReplicas(2)
	require.NoError(t, err)
	assert.Len(t, replicas, 2)
	assert.NotEqual(t, replicas[0], replicas[1])
}

func TestRecordHeartbeatOverwrites(t *testing.T) {
	m := NewMembership()
	m.RecordHeartbeat("dn-1", []string{"b1", "b2"})
	m.RecordHeartbeat("dn-1", []string{"b3"})

	m.Admit("dn-1", transport.Endpoint{Host: "h1", Port: 1})
	assert.Empty(t, m.LocateBlock("b1"))
	assert.ElementsMatch(t, m.LocateBlock("b3"), []transport.Endpoint{{Host: "h1", Port: 1}})
}

func TestLocateBlockAcrossMultipleDatanodes(t *testing.T) {
	m := NewMembership()
	m.Admit("dn-1", transport.Endpoint{Host: "h1", Port: 1})
	m.Admit("dn-2", transport.Endpoint{Host: "h2", Port: 2})
	m.RecordHeartbeat("dn-1", []string{"shared"})
	m.RecordHeartbeat("dn-2", []string{"shared"})

	got := m.LocateBlock("shared")
	assert.Len(t, got, 2)
}

func TestCount(t *testing.T) {
	m := NewMembership()
	assert.Equal(t, 0, m.Count())
	m.Admit("dn-1", transport.Endpoint{Host: "h1", Port: 1})
	assert.Equal(t, 1, m.Count())
	m.Admit("dn-1", transport.Endpoint{Host: "h1-new", Port: 2})
	assert.Equal(t, 1, m.Count())
}
