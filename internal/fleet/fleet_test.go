package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowmesh/placement-core/internal/orchestrator/nodemanager"
	"github.com/flowmesh/placement-core/internal/registry"
)

func TestPutAndNodeRoundTrip(t *testing.T) {
	f := New(registry.NewMemoryRegistry(), zap.NewNop())

	n, err := nodemanager.New("n1", "http://127.0.0.1:9", "127.0.0.1:9")
	require.NoError(t, err)
	defer n.Close()

	f.Put(n)

	got, ok := f.Node(context.Background(), "n1")
	require.True(t, ok)
	assert.Equal(t, "n1", got.ID)

	_, ok = f.Node(context.Background(), "unknown")
	assert.False(t, ok)
}

func TestNodeIDsReflectsPutMembers(t *testing.T) {
	f := New(registry.NewMemoryRegistry(), zap.NewNop())

	for _, id := range []string{"n1", "n2", "n3"} {
		n, err := nodemanager.New(id, "http://127.0.0.1:9", "127.0.0.1:9")
		require.NoError(t, err)
		defer n.Close()

		f.Put(n)
	}

	ids, err := f.NodeIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"n1", "n2", "n3"}, ids)
}

func TestSyncWithoutNomadIsNoop(t *testing.T) {
	f := New(registry.NewMemoryRegistry(), zap.NewNop())

	require.NoError(t, f.Sync(context.Background()))

	ids, err := f.NodeIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
