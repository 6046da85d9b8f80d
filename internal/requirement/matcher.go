package requirement

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/flowmesh/placement-core/internal/monitor"
	"github.com/flowmesh/placement-core/internal/registry"
)

// Matcher evaluates requirement clauses against the Registry,
// fanning out per-node resource reads with errgroup and converging
// only once every outstanding read returns — the explicit task-graph
// replacement for the pervasive callback chains Design Note 1 calls
// out, rather than a literal callback translation.
type Matcher struct {
	Registry registry.Registry
}

func NewMatcher(reg registry.Registry) *Matcher {
	return &Matcher{Registry: reg}
}

// Evaluate resolves clauses to a Candidates set. allNodeIDs is the
// current node universe, used both to resolve Universe results and to
// drive the node_resource_min enumeration.
func (m *Matcher) Evaluate(ctx context.Context, clauses []Clause, allNodeIDs []string) (Candidates, error) {
	flat := Flatten(clauses)
	if len(flat) == 0 {
		return AnyNode(), nil
	}

	result := AnyNode()

	for _, c := range flat {
		sub, err := m.evalOne(ctx, c, allNodeIDs)
		if err != nil {
			return Candidates{}, err
		}

		result = result.Resolve(toSet(allNodeIDs)).Intersect(sub.Resolve(toSet(allNodeIDs)))
	}

	return result, nil
}

func (m *Matcher) evalOne(ctx context.Context, c Clause, allNodeIDs []string) (Candidates, error) {
	switch c.Kind {
	case NodeAttrMatch:
		return m.evalIndexMatch(ctx, []string{"node", "attribute"}, c.Index)
	case LinkAttrMatch:
		return m.evalIndexMatch(ctx, []string{"links", "attribute"}, c.Index)
	case NodeResourceMin:
		return m.evalResourceMin(ctx, c.Resource, allNodeIDs)
	default:
		return AnyNode(), nil
	}
}

// evalIndexMatch formats the attribute bag into an index path with
// stable key ordering and returns GetIndex(path) — an empty result is
// a concrete empty set (no match), never Universe.
func (m *Matcher) evalIndexMatch(ctx context.Context, base []string, attrs map[string]string) (Candidates, error) {
	path := registry.AttrIndexPath(base, attrs)

	ids, err := m.Registry.GetIndex(ctx, path, len(base))
	if err != nil {
		return Candidates{}, fmt.Errorf("requirement index match: %w", err)
	}

	return Set(ids), nil
}

// evalResourceMin enumerates all nodes, then for each node fetches its
// resource vector and keeps only those satisfying every minimum.
// "final" is signaled by errgroup.Wait() returning once every
// outstanding per-node read has completed, per §4.2.
func (m *Matcher) evalResourceMin(ctx context.Context, mins map[string]float64, allNodeIDs []string) (Candidates, error) {
	if len(mins) == 0 {
		return AnyNode(), nil
	}

	matched := make(map[string]struct{})

	var (
		g  errgroup.Group
		mu sync.Mutex
	)

	for _, id := range allNodeIDs {
		id := id

		g.Go(func() error {
			ok, err := m.nodeSatisfies(ctx, id, mins)
			if err != nil {
				return err
			}

			if ok {
				mu.Lock()
				matched[id] = struct{}{}
				mu.Unlock()
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Candidates{}, fmt.Errorf("requirement resource_min: %w", err)
	}

	return Set(matched), nil
}

func (m *Matcher) nodeSatisfies(ctx context.Context, nodeID string, mins map[string]float64) (bool, error) {
	for resourceKey, min := range mins {
		avail, err := m.availableUnits(ctx, nodeID, resourceKey)
		if err != nil {
			return false, err
		}

		if avail < min {
			return false, nil
		}
	}

	return true, nil
}

// availableUnits reads nodeCpuAvail-/nodeCpuTotal- (or the RAM
// equivalents) for nodeID and converts to native units. A NOT_FOUND
// value is treated as zero, per §7.
func (m *Matcher) availableUnits(ctx context.Context, nodeID, resourceKey string) (float64, error) {
	var availPrefix, totalPrefix string

	switch resourceKey {
	case "cpu":
		availPrefix, totalPrefix = registry.PrefixNodeCPUAvail, registry.PrefixNodeCPUTotal
	case "ram":
		availPrefix, totalPrefix = registry.PrefixNodeMemAvail, registry.PrefixNodeMemTotal
	default:
		return 0, nil
	}

	availRaw, found, err := m.Registry.Get(ctx, availPrefix, nodeID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	totalRaw, found, err := m.Registry.Get(ctx, totalPrefix, nodeID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	availPct, err := strconv.ParseFloat(availRaw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse avail for %s: %w", nodeID, err)
	}

	total, err := strconv.ParseFloat(totalRaw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse total for %s: %w", nodeID, err)
	}

	return monitor.AvailableUnits(availPct, total), nil
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}

	return out
}

// SortedIDs returns the ids of c, resolved against universe, in sorted
// order, for deterministic iteration over a Candidates set.
func SortedIDs(c Candidates, universe map[string]struct{}) []string {
	ids := c.Resolve(universe).IDs()
	out := make([]string, 0, len(ids))

	for id := range ids {
		out = append(out, id)
	}

	sort.Strings(out)

	return out
}
