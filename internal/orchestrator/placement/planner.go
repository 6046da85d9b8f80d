package placement

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flowmesh/placement-core/internal/cfg"
	"github.com/flowmesh/placement-core/internal/domain"
	"github.com/flowmesh/placement-core/internal/logging"
	"github.com/flowmesh/placement-core/internal/monitor"
	"github.com/flowmesh/placement-core/internal/orchestrator/nodemanager"
	"github.com/flowmesh/placement-core/internal/placeerr"
	"github.com/flowmesh/placement-core/internal/registry"
	"github.com/flowmesh/placement-core/internal/requirement"
)

var tracer = otel.Tracer("github.com/flowmesh/placement-core/internal/orchestrator/placement")

// Fleet is the node-membership source the planner reads the current
// node universe from. It is satisfied by internal/fleet's Fleet in
// production and by a static list in tests.
type Fleet interface {
	NodeIDs(ctx context.Context) ([]string, error)
	Node(ctx context.Context, id string) (*nodemanager.Node, bool)
}

// Planner runs the collect -> filter -> enumerate -> score -> decide
// pipeline for one Application, generalizing the teacher's
// PlaceSandbox retry loop (placement.go) from one node-at-a-time
// sandbox placement to a whole-application beam search.
type Planner struct {
	Registry registry.Registry
	Matcher  *requirement.Matcher
	Locker   registry.Locker
	Fleet    Fleet
	Config   cfg.Config

	rng *rand.Rand
}

func NewPlanner(reg registry.Registry, matcher *requirement.Matcher, locker registry.Locker, fleet Fleet, conf cfg.Config) *Planner {
	return &Planner{
		Registry: reg,
		Matcher:  matcher,
		Locker:   locker,
		Fleet:    fleet,
		Config:   conf,
		rng:      rand.New(rand.NewSource(1)),
	}
}

// DeployRequest bundles everything execute_requirements needs.
type DeployRequest struct {
	App                *domain.Application
	Links              []domain.Link
	Move               bool
	Migration          bool
	FarseeingActive    bool
	ActiveReservations map[string]map[string]float64 // nodeID -> {"cpu":reserved,"ram":reserved}, farseeing mode only

	// CurrentPlacement is actorID -> nodeID as tracked by the caller
	// (appmanager.Manager) before this run; nil/empty on first placement.
	CurrentPlacement map[string]string
}

// Deploy runs one placement cycle end to end: collect, filter,
// enumerate/score, decide, and (if migration=true) apply the
// migration policies from §4.4.7. A single guard on the Application
// rejects re-entry.
func (p *Planner) Deploy(ctx context.Context, req DeployRequest) (Result, error) {
	ctx, span := tracer.Start(ctx, "placement.deploy")
	defer span.End()

	timeout := time.Duration(p.Config.DeployTimeoutSeconds) * time.Second

	unlock, ok, err := p.Locker.TryLock(ctx, "app:"+req.App.ID, timeout+5*time.Second)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, placeerr.ErrReentry
	}
	defer unlock(ctx)

	if !req.App.TryBeginPlacement() {
		return Result{}, placeerr.ErrReentry
	}
	defer req.App.EndPlacement()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pc := domain.NewPlacementContext(req.App, req.Move, req.Migration, req.FarseeingActive)
	for actorID, nodeID := range req.CurrentPlacement {
		if nodeID != "" {
			pc.CurrentPlacement[actorID] = nodeID
		}
	}

	result, err := p.run(ctx, req, pc)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Status: "timeout"}, placeerr.ErrTimeout
		}

		return Result{}, err
	}

	return result, nil
}

func (p *Planner) run(ctx context.Context, req DeployRequest, pc *domain.PlacementContext) (Result, error) {
	allNodeIDs, err := p.Fleet.NodeIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("placement collect: %w", err)
	}

	actorIDs, neighbors, linksByPair := buildGraph(req.App, req.Links)

	rawCandidates, err := p.collectActorCandidates(ctx, actorIDs, req.App, allNodeIDs)
	if err != nil {
		return Result{}, err
	}

	p.replaceInfiniteElements(rawCandidates, actorIDs, pc)

	demand := p.computeDemand(req.App, actorIDs)
	pc.ResourceDemand = demand

	if err := p.collectNodeSnapshots(ctx, pc); err != nil {
		return Result{}, err
	}

	if err := p.collectLinkSnapshots(ctx, pc, linksByPair); err != nil {
		return Result{}, err
	}

	if pc.Farseeing {
		if ok := p.farseeingShortCircuit(pc, req.ActiveReservations); ok {
			return Result{Status: "success", Option: currentOption(pc)}, nil
		}
	}

	if err := p.resourceFilter(pc); err != nil {
		return Result{}, err
	}

	algo := p.selectAlgorithm()

	order := actorOrder(actorIDs, neighbors)

	candidatesFor := func(actorID string, partial Option) []candidateExt {
		return p.feasibleExtensions(pc, actorID, partial, neighbors, linksByPair)
	}

	scoreCtx := func(opt Option) ScoreInput {
		return p.scoreInput(pc, opt)
	}

	var options []Option

	switch algo.Name() {
	case "random":
		options = RandomWalks(order, candidatesFor, p.Config.DeploymentNSamples, p.rng)
	case "grasp":
		scoreExt := func(actorID string, partial Option, ext candidateExt) float64 {
			trial := partial.Clone()
			trial[actorID] = ext.assignment

			return algo.Score(scoreCtx(trial))
		}

		opt := GraspConstruct(order, candidatesFor, scoreExt, 0.3, p.rng)
		if opt != nil {
			opt = GraspOptimize(opt, algo, scoreCtx, 10)
			options = []Option{opt}
		}
	default:
		options = runBeam(order, candidatesFor, algo, scoreCtx, p.Config.DeploymentNSamples)
	}

	if len(options) == 0 {
		return p.collapseOrInfeasible(pc, actorIDs, neighbors)
	}

	best := pickBest(options, algo, scoreCtx, pc)

	if req.Migration {
		best, err = p.applyMigrationPolicies(ctx, pc, best, algo, options, scoreCtx)
		if err != nil {
			return Result{}, err
		}
	}

	missing := missingActors(actorIDs, best)

	return Result{Status: "success", Option: best, Missing: missing}, nil
}

func buildGraph(app *domain.Application, links []domain.Link) (actorIDs []string, neighbors map[string][]string, linksByPair map[[2]string][]domain.Link) {
	actors, _, _ := app.Snapshot()

	actorIDs = make([]string, 0, len(actors))
	for id := range actors {
		actorIDs = append(actorIDs, id)
	}

	neighbors = make(map[string][]string)
	linksByPair = make(map[[2]string][]domain.Link)

	for _, l := range links {
		neighbors[l.SrcActorID] = append(neighbors[l.SrcActorID], l.DstActorID)
		neighbors[l.DstActorID] = append(neighbors[l.DstActorID], l.SrcActorID)

		key := [2]string{l.SrcActorID, l.DstActorID}
		linksByPair[key] = append(linksByPair[key], l)
	}

	return actorIDs, neighbors, linksByPair
}

func (p *Planner) collectActorCandidates(ctx context.Context, actorIDs []string, app *domain.Application, allNodeIDs []string) (map[string]requirement.Candidates, error) {
	_, _, deployInfo := app.Snapshot()

	out := make(map[string]requirement.Candidates, len(actorIDs))

	var g errgroup.Group

	results := make([]requirement.Candidates, len(actorIDs))

	for i, actorID := range actorIDs {
		i, actorID := i, actorID

		g.Go(func() error {
			clauses := deployInfo.ActorRequirements[actorID]
			if len(clauses) == 0 {
				results[i] = requirement.AnyNode()

				return nil
			}

			cand, err := p.Matcher.Evaluate(ctx, clauses, allNodeIDs)
			if err != nil {
				return fmt.Errorf("collect candidates for %s: %w", actorID, err)
			}

			results[i] = cand

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, actorID := range actorIDs {
		out[actorID] = results[i]
	}

	return out, nil
}

// replaceInfiniteElements implements §4.4 step 1: any actor whose
// candidates are the Universe sentinel has it replaced by the union
// of every other actor's concrete candidate set.
func (p *Planner) replaceInfiniteElements(raw map[string]requirement.Candidates, actorIDs []string, pc *domain.PlacementContext) {
	union := requirement.Empty()

	for _, id := range actorIDs {
		if c := raw[id]; !c.IsUniverse() {
			union = union.Union(c)
		}
	}

	for _, id := range actorIDs {
		c := raw[id]
		if c.IsUniverse() {
			c = union
		}

		pc.ActorCandidates[id] = c.IDs()
	}
}

func (p *Planner) computeDemand(app *domain.Application, actorIDs []string) map[string]map[string]float64 {
	_, _, deployInfo := app.Snapshot()

	out := make(map[string]map[string]float64, len(actorIDs))

	for _, id := range actorIDs {
		out[id] = requirement.CumulativeResourceDemand(deployInfo.ActorRequirements[id])
	}

	return out
}

func (p *Planner) collectNodeSnapshots(ctx context.Context, pc *domain.PlacementContext) error {
	ids := make(map[string]struct{})
	for _, set := range pc.ActorCandidates {
		for id := range set {
			ids[id] = struct{}{}
		}
	}

	var g errgroup.Group

	var mu sync.Mutex

	for id := range ids {
		id := id

		g.Go(func() error {
			snap, err := p.readNodeSnapshot(ctx, id)
			if err != nil {
				return err
			}

			mu.Lock()
			pc.NodeSnapshot[id] = snap
			mu.Unlock()

			return nil
		})
	}

	return g.Wait()
}

func (p *Planner) readNodeSnapshot(ctx context.Context, nodeID string) (domain.NodeSnapshot, error) {
	get := func(prefix string) (float64, error) {
		raw, found, err := p.Registry.Get(ctx, prefix, nodeID)
		if err != nil || !found {
			return 0, err
		}

		v, err := strconv.ParseFloat(raw, 64)

		return v, err
	}

	cpuAvail, err := get(registry.PrefixNodeCPUAvail)
	if err != nil {
		return domain.NodeSnapshot{}, err
	}

	cpuTotal, err := get(registry.PrefixNodeCPUTotal)
	if err != nil {
		return domain.NodeSnapshot{}, err
	}

	ramAvail, err := get(registry.PrefixNodeMemAvail)
	if err != nil {
		return domain.NodeSnapshot{}, err
	}

	ramTotal, err := get(registry.PrefixNodeMemTotal)
	if err != nil {
		return domain.NodeSnapshot{}, err
	}

	snap := domain.NodeSnapshot{
		ID:          nodeID,
		CPUAvailPct: cpuAvail,
		CPUTotal:    cpuTotal,
		RAMAvailPct: ramAvail,
		RAMTotal:    ramTotal,
	}

	nodeRaw, found, err := p.Registry.Get(ctx, registry.PrefixNode, nodeID)
	if err != nil {
		return domain.NodeSnapshot{}, err
	}

	if found {
		var node registry.Node
		if err := json.Unmarshal([]byte(nodeRaw), &node); err == nil {
			snap.CostCPU = node.CostCPU
			snap.CostRAM = node.CostRAM
			snap.ControlURI = node.ControlURI
		}
	}

	return snap, nil
}

func (p *Planner) collectLinkSnapshots(ctx context.Context, pc *domain.PlacementContext, linksByPair map[[2]string][]domain.Link) error {
	nodeIDs := make([]string, 0, len(pc.NodeSnapshot))
	for id := range pc.NodeSnapshot {
		nodeIDs = append(nodeIDs, id)
	}

	for i := 0; i < len(nodeIDs); i++ {
		for j := i + 1; j < len(nodeIDs); j++ {
			id := registry.PairKey(nodeIDs[i], nodeIDs[j])

			raw, found, err := p.Registry.Get(ctx, registry.PrefixPhyLink, id)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			_ = raw

			bwRaw, _, err := p.Registry.Get(ctx, registry.PrefixLinkBandwidth, id)
			if err != nil {
				return err
			}

			latRaw, _, err := p.Registry.Get(ctx, registry.PrefixLinkLatency, id)
			if err != nil {
				return err
			}

			bw, _ := strconv.Atoi(bwRaw)
			lat, _ := strconv.Atoi(latRaw)

			pc.LinkSnapshot[id] = registry.PhysicalLink{
				ID:            id,
				Runtime1:      nodeIDs[i],
				Runtime2:      nodeIDs[j],
				BandwidthKbit: bw,
				LatencyUs:     lat,
			}
		}
	}

	return nil
}

// resourceFilter implements §4.4 step 2: remove candidates whose
// available CPU/RAM is below cumulative demand, applying the
// tolerance ladder only if the strict pass empties a set.
func (p *Planner) resourceFilter(pc *domain.PlacementContext) error {
	ladder := toleranceLadder(p.Config.DeploymentTolerance)

	for actorID, candidates := range pc.ActorCandidates {
		demand := pc.ResourceDemand[actorID]

		strict := filterByTolerance(candidates, pc.NodeSnapshot, demand, 1.0)
		if len(strict) > 0 {
			pc.ActorCandidates[actorID] = strict

			continue
		}

		found := false

		for _, t := range ladder {
			relaxed := filterByTolerance(candidates, pc.NodeSnapshot, demand, t)
			if len(relaxed) > 0 {
				pc.ActorCandidates[actorID] = relaxed
				found = true

				break
			}
		}

		if !found {
			pc.ActorCandidates[actorID] = map[string]struct{}{}
		}
	}

	return nil
}

func toleranceLadder(max float64) []float64 {
	out := []float64{}

	for t := 1.1; t <= max+1e-9; t += 0.1 {
		out = append(out, t)
	}

	if len(out) == 0 {
		out = append(out, max)
	}

	return out
}

func filterByTolerance(candidates map[string]struct{}, snapshots map[string]domain.NodeSnapshot, demand map[string]float64, tolerance float64) map[string]struct{} {
	out := make(map[string]struct{})

	for id := range candidates {
		snap, ok := snapshots[id]
		if !ok {
			continue
		}

		if demand["cpu"] > snap.AvailableCPU()*tolerance {
			continue
		}

		if demand["ram"] > snap.AvailableRAM()*tolerance {
			continue
		}

		out[id] = struct{}{}
	}

	return out
}

// farseeingShortCircuit implements §4.4 step 3: subtract reserved
// CPU/RAM of all currently active applications from availability; if
// the current placement still satisfies requirements, return true so
// the caller short-circuits with the unchanged placement.
func (p *Planner) farseeingShortCircuit(pc *domain.PlacementContext, reservations map[string]map[string]float64) bool {
	current := currentOption(pc)
	if len(current) == 0 {
		return false
	}

	for actorID, assignment := range current {
		snap, ok := pc.NodeSnapshot[assignment.Runtime]
		if !ok {
			return false
		}

		reserved := reservations[assignment.Runtime]
		availCPU := snap.AvailableCPU() - reserved["cpu"]
		availRAM := snap.AvailableRAM() - reserved["ram"]

		demand := pc.ResourceDemand[actorID]
		if demand["cpu"] > availCPU || demand["ram"] > availRAM {
			return false
		}
	}

	return true
}

// currentOption converts pc.CurrentPlacement (actorID -> nodeID, as
// supplied by the caller through DeployRequest) into the Option shape
// the scorer and the farseeing short-circuit compare against. Empty
// on an application's first placement, which simply disables both.
func currentOption(pc *domain.PlacementContext) Option {
	opt := make(Option, len(pc.CurrentPlacement))

	for actorID, nodeID := range pc.CurrentPlacement {
		opt[actorID] = Assignment{Runtime: nodeID}
	}

	return opt
}

func (p *Planner) selectAlgorithm() Algorithm {
	switch p.Config.DeploymentAlgorithm {
	case cfg.DeploymentRandom:
		return Random{}
	case cfg.DeploymentLatency:
		return Latency{}
	case cfg.DeploymentMoney:
		return Money{}
	case cfg.DeploymentGreen:
		return Green{}
	case cfg.DeploymentWorst:
		return NewWorst()
	case cfg.DeploymentGRASP:
		return NewGRASP()
	default:
		return NewBestFirst()
	}
}

// feasibleExtensions returns, for actorID given a partial placement,
// every (runtime, link) extension that satisfies both the resource
// candidate set and link feasibility to already-placed neighbors.
func (p *Planner) feasibleExtensions(pc *domain.PlacementContext, actorID string, partial Option, neighbors map[string][]string, linksByPair map[[2]string][]domain.Link) []candidateExt {
	candidates := pc.ActorCandidates[actorID]

	placedNeighborRuntimes := make([]string, 0)
	for _, nb := range neighbors[actorID] {
		if a, ok := partial[nb]; ok {
			placedNeighborRuntimes = append(placedNeighborRuntimes, a.Runtime)
		}
	}

	out := make([]candidateExt, 0, len(candidates))

	for runtime := range candidates {
		assignment := Assignment{Runtime: runtime}

		if len(placedNeighborRuntimes) > 0 {
			feasible := false

			for _, peerRuntime := range placedNeighborRuntimes {
				if peerRuntime == runtime {
					feasible = true

					break
				}

				if link, ok := p.findPhysLink(pc, runtime, peerRuntime); ok {
					assignment.PhysLinkUsed = link.ID
					feasible = true

					break
				}
			}

			if !feasible {
				continue
			}
		}

		out = append(out, candidateExt{assignment: assignment})
	}

	return out
}

func (p *Planner) findPhysLink(pc *domain.PlacementContext, a, b string) (registry.PhysicalLink, bool) {
	id := registry.PairKey(a, b)
	link, ok := pc.LinkSnapshot[id]

	return link, ok
}

func (p *Planner) scoreInput(pc *domain.PlacementContext, opt Option) ScoreInput {
	nodes := make(map[string]NodeView, len(pc.NodeSnapshot))
	for id, snap := range pc.NodeSnapshot {
		nodes[id] = NodeView{
			ID:       id,
			CPUAvail: snap.AvailableCPU(),
			RAMAvail: snap.AvailableRAM(),
			CostCPU:  snap.CostCPU,
			CostRAM:  snap.CostRAM,
		}
	}

	links := make(map[string]LinkView, len(pc.LinkSnapshot))
	for id, l := range pc.LinkSnapshot {
		links[id] = LinkView{
			ID:            id,
			Runtime1:      l.Runtime1,
			Runtime2:      l.Runtime2,
			BandwidthKbit: l.BandwidthKbit,
			LatencyUs:     l.LatencyUs,
			CostPerKbit:   p.Config.DeploymentLinkCostPerKbit,
		}
	}

	warm := make(map[string]struct{})

	current := currentOption(pc)
	for _, a := range current {
		warm[a.Runtime] = struct{}{}
	}

	return ScoreInput{
		Option:  opt,
		Nodes:   nodes,
		Links:   links,
		Demand:  pc.ResourceDemand,
		Warm:    warm,
		Move:    pc.Move,
		Current: pc.CurrentPlacement,
	}
}

func pickBest(options []Option, algo Algorithm, scoreCtx func(Option) ScoreInput, pc *domain.PlacementContext) Option {
	bestIdx := 0
	bestScore := algo.Score(scoreCtx(options[0]))

	for i := 1; i < len(options); i++ {
		score := algo.Score(scoreCtx(options[i]))
		if better(score, bestScore, options[i], options[bestIdx], algo.Name(), pc) {
			bestIdx = i
			bestScore = score
		}
	}

	return options[bestIdx]
}

// better implements the §4.4.6 tie-break ladder: lower score wins;
// on a tie, more runtimes used wins for green/latency, higher minimum
// remaining capacity wins for grasp, otherwise the earlier option wins
// (callers iterate in a stable, deterministic order already).
func better(score, currentBest float64, candidate, current Option, algoName string, pc *domain.PlacementContext) bool {
	const eps = 1e-9

	if score < currentBest-eps {
		return true
	}

	if score > currentBest+eps {
		return false
	}

	switch algoName {
	case "green", "latency":
		return len(candidate.Runtimes()) > len(current.Runtimes())
	case "grasp":
		return minRemainingCapacity(candidate, pc) > minRemainingCapacity(current, pc)
	default:
		return false
	}
}

func minRemainingCapacity(opt Option, pc *domain.PlacementContext) float64 {
	min := -1.0

	for _, a := range opt {
		snap, ok := pc.NodeSnapshot[a.Runtime]
		if !ok {
			continue
		}

		remaining := snap.AvailableCPU()
		if min < 0 || remaining < min {
			min = remaining
		}
	}

	return min
}

func (p *Planner) collapseOrInfeasible(pc *domain.PlacementContext, actorIDs []string, neighbors map[string][]string) (Result, error) {
	for _, id := range actorIDs {
		if len(pc.ActorCandidates[id]) == 0 {
			return Result{Status: "infeasible"}, placeerr.ErrPlacementInfeasible
		}
	}

	// Link feasibility collapse (§4.4.5): no option satisfied every
	// link simultaneously. Each connected component of linked actors
	// collapses onto one common runtime when its members share a
	// candidate; that runtime hosts every actor in the component, so
	// no physical link is needed between them. Components with no
	// shared candidate (or singleton actors) fall back to each
	// member's own lowest-id candidate.
	opt := Option{}

	for _, component := range connectedComponents(actorIDs, neighbors) {
		runtime, ok := commonRuntime(component, pc.ActorCandidates)

		for _, id := range component {
			if ok {
				opt[id] = Assignment{Runtime: runtime}

				continue
			}

			opt[id] = Assignment{Runtime: lowestCandidate(pc.ActorCandidates[id])}
		}
	}

	return Result{Status: "success", Option: opt, Missing: missingActors(actorIDs, opt)}, nil
}

// connectedComponents groups actorIDs by link reachability
// (neighbors), so each component can be collapsed onto a shared
// runtime independently of the others.
func connectedComponents(actorIDs []string, neighbors map[string][]string) [][]string {
	visited := make(map[string]bool, len(actorIDs))

	var components [][]string

	for _, start := range actorIDs {
		if visited[start] {
			continue
		}

		var component []string

		queue := []string{start}
		visited[start] = true

		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			component = append(component, id)

			for _, nb := range neighbors[id] {
				if !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
				}
			}
		}

		components = append(components, component)
	}

	return components
}

// commonRuntime returns a runtime present in every member's candidate
// set, preferring the lowest id for determinism, and whether one
// exists.
func commonRuntime(actorIDs []string, candidates map[string]map[string]struct{}) (string, bool) {
	if len(actorIDs) == 0 {
		return "", false
	}

	shared := make(map[string]struct{}, len(candidates[actorIDs[0]]))
	for runtime := range candidates[actorIDs[0]] {
		shared[runtime] = struct{}{}
	}

	for _, id := range actorIDs[1:] {
		for runtime := range shared {
			if _, ok := candidates[id][runtime]; !ok {
				delete(shared, runtime)
			}
		}
	}

	if len(shared) == 0 {
		return "", false
	}

	return lowestCandidate(shared), true
}

// lowestCandidate returns the lexicographically smallest id in a
// candidate set, for deterministic fallback assignment.
func lowestCandidate(candidates map[string]struct{}) string {
	lowest := ""

	for id := range candidates {
		if lowest == "" || id < lowest {
			lowest = id
		}
	}

	return lowest
}

func missingActors(actorIDs []string, opt Option) []string {
	missing := make([]string, 0)

	for _, id := range actorIDs {
		if _, ok := opt[id]; !ok {
			missing = append(missing, id)
		}
	}

	return missing
}

// applyMigrationPolicies implements §4.4.7: epsilon-greedy exploration,
// lazy resource refresh against the chosen nodes, and batch write-back.
func (p *Planner) applyMigrationPolicies(ctx context.Context, pc *domain.PlacementContext, best Option, algo Algorithm, options []Option, scoreCtx func(Option) ScoreInput) (Option, error) {
	if p.Config.DeploymentEpsilonGreedy > 0 && p.rng.Float64() < p.Config.DeploymentEpsilonGreedy && len(options) > 1 {
		best = options[p.rng.Intn(len(options))]
	}

	targets := make(map[string]struct{})
	for _, a := range best {
		targets[a.Runtime] = struct{}{}
	}

	var g errgroup.Group

	for runtime := range targets {
		runtime := runtime

		g.Go(func() error {
			node, ok := p.Fleet.Node(ctx, runtime)
			if !ok {
				return nil
			}

			snap, err := node.FetchResource(ctx)
			if err != nil {
				zap.L().Warn("lazy resource refresh failed", logging.WithNodeID(runtime), zap.Error(err))

				return nil
			}

			if err := p.Registry.Set(ctx, registry.PrefixNodeCPUAvail, runtime, strconv.FormatFloat(snap.CPUAvailPercent, 'f', -1, 64)); err != nil {
				return err
			}

			return p.Registry.Set(ctx, registry.PrefixNodeMemAvail, runtime, strconv.FormatFloat(snap.RAMAvailPercent, 'f', -1, 64))
		})
	}

	if err := g.Wait(); err != nil {
		return best, fmt.Errorf("lazy resource refresh: %w", err)
	}

	batch, err := p.Registry.Batch(ctx)
	if err != nil {
		return best, err
	}

	if batch {
		if err := p.writeBackExpected(ctx, pc, best); err != nil {
			return best, err
		}
	}

	return best, nil
}

// writeBackExpected writes the expected post-placement CPU/RAM
// availability into the Registry directly, instead of relying on the
// monitors to measure it — the "batch" migration policy. Expected
// availability is each target runtime's collected availability minus
// the cumulative demand of every actor this run assigned to it.
func (p *Planner) writeBackExpected(ctx context.Context, pc *domain.PlacementContext, best Option) error {
	demandByRuntime := make(map[string]map[string]float64)

	for actorID, a := range best {
		d := pc.ResourceDemand[actorID]

		if demandByRuntime[a.Runtime] == nil {
			demandByRuntime[a.Runtime] = map[string]float64{}
		}

		demandByRuntime[a.Runtime]["cpu"] += d["cpu"]
		demandByRuntime[a.Runtime]["ram"] += d["ram"]
	}

	for runtime, demand := range demandByRuntime {
		snap, ok := pc.NodeSnapshot[runtime]
		if !ok {
			continue
		}

		cpuPct := expectedAvailPercent(snap.AvailableCPU()-demand["cpu"], snap.CPUTotal)
		ramPct := expectedAvailPercent(snap.AvailableRAM()-demand["ram"], snap.RAMTotal)

		if err := monitor.NewCPU(p.Registry, runtime).Avail.ForceSetAvail(ctx, cpuPct); err != nil {
			return fmt.Errorf("batch write-back cpu for %s: %w", runtime, err)
		}

		if err := monitor.NewRAM(p.Registry, runtime).Avail.ForceSetAvail(ctx, ramPct); err != nil {
			return fmt.Errorf("batch write-back ram for %s: %w", runtime, err)
		}
	}

	return nil
}

// expectedAvailPercent converts an expected native-unit availability
// back to the percent-of-total form the Registry stores, clamping to
// [0,100] the way the live monitors do at the source.
func expectedAvailPercent(availUnits, total float64) float64 {
	if total <= 0 {
		return 0
	}

	pct := availUnits / total * 100

	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}
