package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophreview/internal/models"
)

func reg(recordID, field, nodeID, value string, ts int64) *models.Register {
	return &models.Register{RecordID: recordID, Field: field, NodeID: nodeID, Value: []byte(value), Timestamp: ts}
}

func TestLWWMap_Apply(t *testing.T) {
	tests := []struct {
		name     string
		first    *models.Register
		second   *models.Register
		expected string
		applied  bool
	}{
		{
			name:     "newer timestamp wins",
			first:    reg("a1", "content", "node-a", "old", 1),
			second:   reg("a1", "content", "node-b", "new", 2),
			expected: "new",
			applied:  true,
		},
		{
			name:     "older timestamp ignored",
			first:    reg("a1", "content", "node-a", "new", 5),
			second:   reg("a1", "content", "node-b", "old", 2),
			expected: "new",
			applied:  false,
		},
		{
			name:     "equal timestamp resolved by node id",
			first:    reg("a1", "content", "node-a", "from-a", 3),
			second:   reg("a1", "content", "node-b", "from-b", 3),
			expected: "from-b",
			applied:  true,
		},
		{
			name:     "same register is idempotent",
			first:    reg("a1", "content", "node-a", "v", 3),
			second:   reg("a1", "content", "node-a", "v", 3),
			expected: "v",
			applied:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newLWWMap()
			assert.True(t, m.apply(tt.first))
			assert.Equal(t, tt.applied, m.apply(tt.second))

			got := m.get("a1", "content")
			require.NotNil(t, got)
			assert.Equal(t, tt.expected, string(got.Value))
		})
	}
}

func TestLWWMap_Commutativity(t *testing.T) {
	regs := []*models.Register{
		reg("a1", "content", "node-a", "a", 1),
		reg("a1", "content", "node-b", "b", 2),
		reg("a1", "status", "node-a", "open", 1),
		reg("a2", "content", "node-c", "c", 7),
	}

	forward := newLWWMap()
	for _, r := range regs {
		forward.apply(r)
	}
	backward := newLWWMap()
	for i := len(regs) - 1; i >= 0; i-- {
		backward.apply(regs[i])
	}

	assert.Equal(t, forward.since(nil), backward.since(nil))
}

func TestLWWMap_Since(t *testing.T) {
	m := newLWWMap()
	m.apply(reg("a1", "content", "node-a", "x", 1))
	m.apply(reg("a1", "status", "node-a", "open", 2))
	m.apply(reg("a2", "content", "node-b", "y", 4))

	assert.Len(t, m.since(nil), 3)
	assert.Equal(t, VersionVector{"node-a": 2, "node-b": 4}, m.vector())

	missing := m.since(VersionVector{"node-a": 1})
	require.Len(t, missing, 2)
	assert.Equal(t, "status", missing[0].Field)
	assert.Equal(t, "a2", missing[1].RecordID)

	assert.Empty(t, m.since(m.vector()))
}

func TestLWWMap_CloneIsIndependent(t *testing.T) {
	m := newLWWMap()
	m.apply(reg("a1", "content", "node-a", "x", 1))

	c := m.clone()
	c.apply(reg("a1", "content", "node-a", "y", 2))
	c.apply(reg("a2", "content", "node-a", "z", 3))

	assert.Equal(t, "x", string(m.get("a1", "content").Value))
	assert.Nil(t, m.get("a2", "content"))
	assert.Equal(t, "y", string(c.get("a1", "content").Value))
}
