package appmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowmesh/placement-core/internal/cfg"
	"github.com/flowmesh/placement-core/internal/domain"
	"github.com/flowmesh/placement-core/internal/orchestrator/nodemanager"
	"github.com/flowmesh/placement-core/internal/orchestrator/placement"
	"github.com/flowmesh/placement-core/internal/registry"
	"github.com/flowmesh/placement-core/internal/requirement"
)

// fakeFleet is a static node universe, avoiding real dialed
// nodemanager.Node connections in unit tests.
type fakeFleet struct {
	ids []string
}

func (f *fakeFleet) NodeIDs(context.Context) ([]string, error) { return f.ids, nil }
func (f *fakeFleet) Node(context.Context, string) (*nodemanager.Node, bool) {
	return nil, false
}

func newTestManager(t *testing.T, fleetIDs []string) *Manager {
	t.Helper()

	reg := registry.NewMemoryRegistry()
	matcher := requirement.NewMatcher(reg)
	fl := &fakeFleet{ids: fleetIDs}
	planner := placement.NewPlanner(reg, matcher, registry.NewMemoryLocker(), fl, cfg.Config{DeployTimeoutSeconds: 5})
	log := zap.NewNop()

	return New(nil, reg, planner, fl, log)
}

func TestNewCreatesApplication(t *testing.T) {
	m := newTestManager(t, nil)

	id, err := m.New(context.Background(), "demo", "ns", "origin", domain.DeployInfo{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	app, err := m.lookup(id)
	require.NoError(t, err)
	assert.Equal(t, "demo", app.Name)
}

func TestAddRegistersActor(t *testing.T) {
	m := newTestManager(t, nil)
	id, err := m.New(context.Background(), "demo", "ns", "origin", domain.DeployInfo{})
	require.NoError(t, err)

	err = m.Add(context.Background(), id, domain.Actor{ID: "a1", Name: "ns:a:1"})
	require.NoError(t, err)

	app, err := m.lookup(id)
	require.NoError(t, err)

	actors, _, _ := app.Snapshot()
	assert.Equal(t, "ns:a:1", actors["a1"])
}

func TestAddLinkRegistersLink(t *testing.T) {
	m := newTestManager(t, nil)
	id, err := m.New(context.Background(), "demo", "ns", "origin", domain.DeployInfo{})
	require.NoError(t, err)

	err = m.AddLink(context.Background(), id, domain.Link{ID: "l1", Name: "ns:l:1"})
	require.NoError(t, err)

	app, err := m.lookup(id)
	require.NoError(t, err)

	_, links, _ := app.Snapshot()
	assert.Equal(t, "ns:l:1", links["l1"])
}

func TestFinalizeWithoutMigrateSkipsPlacement(t *testing.T) {
	m := newTestManager(t, nil)
	id, err := m.New(context.Background(), "demo", "ns", "origin", domain.DeployInfo{})
	require.NoError(t, err)

	result, err := m.Finalize(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, "created", result.Status)
}

func TestFinalizeWithMigrateAndNoActorsSucceedsEmpty(t *testing.T) {
	m := newTestManager(t, []string{"n1"})
	id, err := m.New(context.Background(), "demo", "ns", "origin", domain.DeployInfo{})
	require.NoError(t, err)

	result, err := m.Finalize(context.Background(), id, true)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Empty(t, result.Option)
}

func TestDestroyWithNoActorsSucceeds(t *testing.T) {
	m := newTestManager(t, nil)
	id, err := m.New(context.Background(), "demo", "ns", "origin", domain.DeployInfo{})
	require.NoError(t, err)

	missing, err := m.Destroy(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, missing)

	_, err = m.lookup(id)
	assert.Error(t, err, "destroyed application must no longer be looked up")
}

func TestDestroyUnknownApplicationFails(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.Destroy(context.Background(), "missing-app")
	assert.Error(t, err)
}

func TestDestroyCollectsUnreachableActorsIntoMissing(t *testing.T) {
	m := newTestManager(t, nil)
	id, err := m.New(context.Background(), "demo", "ns", "origin", domain.DeployInfo{})
	require.NoError(t, err)

	require.NoError(t, m.Add(context.Background(), id, domain.Actor{ID: "a1", Name: "a", NodeID: "ghost-node"}))

	missing, err := m.Destroy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, missing, "an actor on a node absent from the fleet must land in missing")
}
