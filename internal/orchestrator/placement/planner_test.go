package placement

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/placement-core/internal/cfg"
	"github.com/flowmesh/placement-core/internal/domain"
	"github.com/flowmesh/placement-core/internal/orchestrator/nodemanager"
	"github.com/flowmesh/placement-core/internal/placeerr"
	"github.com/flowmesh/placement-core/internal/registry"
	"github.com/flowmesh/placement-core/internal/requirement"
)

// staticFleet is a fixed node universe for integration tests, avoiding
// dialed nodemanager.Node connections.
type staticFleet struct {
	ids []string
}

func (f *staticFleet) NodeIDs(context.Context) ([]string, error) { return f.ids, nil }
func (f *staticFleet) Node(context.Context, string) (*nodemanager.Node, bool) {
	return nil, false
}

func seedNode(t *testing.T, reg registry.Registry, nodeID string, cpuAvailPct, cpuTotal, ramAvailPct, ramTotal float64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, registry.PrefixNodeCPUAvail, nodeID, strconv.FormatFloat(cpuAvailPct, 'f', -1, 64)))
	require.NoError(t, reg.Set(ctx, registry.PrefixNodeCPUTotal, nodeID, strconv.FormatFloat(cpuTotal, 'f', -1, 64)))
	require.NoError(t, reg.Set(ctx, registry.PrefixNodeMemAvail, nodeID, strconv.FormatFloat(ramAvailPct, 'f', -1, 64)))
	require.NoError(t, reg.Set(ctx, registry.PrefixNodeMemTotal, nodeID, strconv.FormatFloat(ramTotal, 'f', -1, 64)))
}

func seedPhysLink(t *testing.T, reg registry.Registry, a, b string, bandwidthKbit, latencyUs int) {
	t.Helper()
	ctx := context.Background()

	id := registry.PairKey(a, b)
	require.NoError(t, reg.Set(ctx, registry.PrefixPhyLink, id, "1"))
	require.NoError(t, reg.Set(ctx, registry.PrefixLinkBandwidth, id, strconv.Itoa(bandwidthKbit)))
	require.NoError(t, reg.Set(ctx, registry.PrefixLinkLatency, id, strconv.Itoa(latencyUs)))
}

func newTestPlanner(t *testing.T, conf cfg.Config, nodeIDs []string) *Planner {
	t.Helper()

	reg := registry.NewMemoryRegistry()
	matcher := requirement.NewMatcher(reg)
	fleet := &staticFleet{ids: nodeIDs}

	for i, a := range nodeIDs {
		for _, b := range nodeIDs[i+1:] {
			seedPhysLink(t, reg, a, b, 100000, 500)
		}
	}

	return NewPlanner(reg, matcher, registry.NewMemoryLocker(), fleet, conf)
}

func twoActorApp() (*domain.Application, []domain.Link) {
	deployInfo := domain.DeployInfo{
		ActorRequirements: map[string][]requirement.Clause{
			"a1": {requirement.NewNodeResourceMin(map[string]float64{"cpu": 1, "ram": 1024})},
			"a2": {requirement.NewNodeResourceMin(map[string]float64{"cpu": 1, "ram": 1024})},
		},
	}

	app := domain.NewApplication("app1", "demo", "ns", "", deployInfo)
	app.AddActor("a1", "ns:a:1")
	app.AddActor("a2", "ns:a:2")

	links := []domain.Link{
		{ID: "l1", Name: "ns:l:1", SrcActorID: "a1", DstActorID: "a2"},
	}

	return app, links
}

func TestDeployPlacesEveryActorWhenCapacityIsAmple(t *testing.T) {
	conf := cfg.Config{DeployTimeoutSeconds: 5, DeploymentNSamples: 5, DeploymentAlgorithm: cfg.DeploymentBestFirst}
	p := newTestPlanner(t, conf, []string{"n1", "n2", "n3"})

	for _, n := range []string{"n1", "n2", "n3"} {
		seedNode(t, p.Registry, n, 100, 4, 100, 8192)
	}

	app, links := twoActorApp()

	result, err := p.Deploy(context.Background(), DeployRequest{App: app, Links: links})
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Len(t, result.Option, 2)
	assert.Empty(t, result.Missing)

	for _, actorID := range []string{"a1", "a2"} {
		assignment, ok := result.Option[actorID]
		require.True(t, ok, "actor %s must be assigned", actorID)
		assert.Contains(t, []string{"n1", "n2", "n3"}, assignment.Runtime)
	}
}

func TestDeployFallsBackThroughToleranceLadderWhenStrictFilterEmpties(t *testing.T) {
	conf := cfg.Config{
		DeployTimeoutSeconds: 5,
		DeploymentNSamples:   5,
		DeploymentAlgorithm:  cfg.DeploymentBestFirst,
		DeploymentTolerance:  1.2,
	}
	p := newTestPlanner(t, conf, []string{"n1"})

	// 90% of 1 core = 0.9 available. Each 0.5-core clause passes the
	// matcher on its own, but the cumulative 1-core demand is short under
	// strict (1.0) tolerance and at 1.1x (0.99), and satisfied at 1.2x (1.08).
	seedNode(t, p.Registry, "n1", 90, 1, 100, 8192)

	deployInfo := domain.DeployInfo{
		ActorRequirements: map[string][]requirement.Clause{
			"a1": {
				requirement.NewNodeResourceMin(map[string]float64{"cpu": 0.5, "ram": 1024}),
				requirement.NewNodeResourceMin(map[string]float64{"cpu": 0.5}),
			},
		},
	}
	app := domain.NewApplication("app2", "demo", "ns", "", deployInfo)
	app.AddActor("a1", "ns:a:1")

	result, err := p.Deploy(context.Background(), DeployRequest{App: app})
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "n1", result.Option["a1"].Runtime)
}

func TestDeployReturnsInfeasibleWhenNoNodeHasCapacity(t *testing.T) {
	conf := cfg.Config{DeployTimeoutSeconds: 5, DeploymentNSamples: 5, DeploymentAlgorithm: cfg.DeploymentBestFirst}
	p := newTestPlanner(t, conf, []string{"n1"})

	seedNode(t, p.Registry, "n1", 1, 1, 100, 8192)

	deployInfo := domain.DeployInfo{
		ActorRequirements: map[string][]requirement.Clause{
			"a1": {requirement.NewNodeResourceMin(map[string]float64{"cpu": 4, "ram": 1024})},
		},
	}
	app := domain.NewApplication("app3", "demo", "ns", "", deployInfo)
	app.AddActor("a1", "ns:a:1")

	result, err := p.Deploy(context.Background(), DeployRequest{App: app})
	require.Error(t, err)
	assert.NotEqual(t, "success", result.Status)
}

func TestDeployRejectsConcurrentReentry(t *testing.T) {
	conf := cfg.Config{DeployTimeoutSeconds: 5, DeploymentNSamples: 5}
	p := newTestPlanner(t, conf, []string{"n1"})
	seedNode(t, p.Registry, "n1", 100, 4, 100, 8192)

	app, links := twoActorApp()
	require.True(t, app.TryBeginPlacement())

	_, err := p.Deploy(context.Background(), DeployRequest{App: app, Links: links})
	assert.Error(t, err)

	app.EndPlacement()
}

func TestConnectedComponentsGroupsLinkedActors(t *testing.T) {
	neighbors := map[string][]string{
		"a1": {"a2"},
		"a2": {"a1", "a3"},
		"a3": {"a2"},
	}

	components := connectedComponents([]string{"a1", "a2", "a3", "a4"}, neighbors)

	require.Len(t, components, 2)

	sizes := map[int]int{}
	for _, c := range components {
		sizes[len(c)]++
	}
	assert.Equal(t, map[int]int{3: 1, 1: 1}, sizes)
}

func TestCommonRuntimePicksLowestSharedCandidate(t *testing.T) {
	candidates := map[string]map[string]struct{}{
		"a1": {"n2": {}, "n3": {}},
		"a2": {"n1": {}, "n2": {}, "n3": {}},
	}

	runtime, ok := commonRuntime([]string{"a1", "a2"}, candidates)
	require.True(t, ok)
	assert.Equal(t, "n2", runtime)
}

func TestCommonRuntimeFalseWhenNoOverlap(t *testing.T) {
	candidates := map[string]map[string]struct{}{
		"a1": {"n1": {}},
		"a2": {"n2": {}},
	}

	_, ok := commonRuntime([]string{"a1", "a2"}, candidates)
	assert.False(t, ok)
}

func TestCollapseOrInfeasibleCollapsesLinkedComponentOntoSharedRuntime(t *testing.T) {
	pc := domain.NewPlacementContext(domain.NewApplication("app4", "demo", "ns", "", domain.DeployInfo{}), false, false, false)
	pc.ActorCandidates = map[string]map[string]struct{}{
		"a1": {"n1": {}, "n2": {}},
		"a2": {"n2": {}, "n3": {}},
	}

	p := &Planner{}
	neighbors := map[string][]string{"a1": {"a2"}, "a2": {"a1"}}

	result, err := p.collapseOrInfeasible(pc, []string{"a1", "a2"}, neighbors)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "n2", result.Option["a1"].Runtime)
	assert.Equal(t, "n2", result.Option["a2"].Runtime)
}

func TestCollapseOrInfeasibleFallsBackIndependentlyWithoutSharedRuntime(t *testing.T) {
	pc := domain.NewPlacementContext(domain.NewApplication("app5", "demo", "ns", "", domain.DeployInfo{}), false, false, false)
	pc.ActorCandidates = map[string]map[string]struct{}{
		"a1": {"n1": {}},
		"a2": {"n2": {}},
	}

	p := &Planner{}
	neighbors := map[string][]string{"a1": {"a2"}, "a2": {"a1"}}

	result, err := p.collapseOrInfeasible(pc, []string{"a1", "a2"}, neighbors)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "n1", result.Option["a1"].Runtime)
	assert.Equal(t, "n2", result.Option["a2"].Runtime)
}

func TestCollapseOrInfeasibleReportsInfeasibleWhenAnyActorHasNoCandidates(t *testing.T) {
	pc := domain.NewPlacementContext(domain.NewApplication("app6", "demo", "ns", "", domain.DeployInfo{}), false, false, false)
	pc.ActorCandidates = map[string]map[string]struct{}{
		"a1": {"n1": {}},
		"a2": {},
	}

	p := &Planner{}

	_, err := p.collapseOrInfeasible(pc, []string{"a1", "a2"}, nil)
	assert.ErrorIs(t, err, placeerr.ErrPlacementInfeasible)
}

func TestWriteBackExpectedWritesAvailabilityMinusDemand(t *testing.T) {
	conf := cfg.Config{DeployTimeoutSeconds: 5}
	p := newTestPlanner(t, conf, []string{"n1"})
	seedNode(t, p.Registry, "n1", 100, 4, 100, 8192)

	pc := domain.NewPlacementContext(domain.NewApplication("app7", "demo", "ns", "", domain.DeployInfo{}), false, false, false)
	pc.NodeSnapshot["n1"] = domain.NodeSnapshot{ID: "n1", CPUAvailPct: 100, CPUTotal: 4, RAMAvailPct: 100, RAMTotal: 8192}
	pc.ResourceDemand["a1"] = map[string]float64{"cpu": 1, "ram": 1024}

	best := Option{"a1": {Runtime: "n1"}}

	require.NoError(t, p.writeBackExpected(context.Background(), pc, best))

	raw, found, err := p.Registry.Get(context.Background(), registry.PrefixNodeCPUAvail, "n1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "75", raw) // (4-1)/4 * 100

	raw, found, err = p.Registry.Get(context.Background(), registry.PrefixNodeMemAvail, "n1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, strconv.FormatFloat((8192.0-1024.0)/8192.0*100, 'f', -1, 64), raw)
}
