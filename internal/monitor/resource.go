package monitor

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/flowmesh/placement-core/internal/registry"
)

// Resource is a single node-resource dimension (CPU available, CPU
// capacity, RAM available, RAM capacity): it discretizes SetAvail
// calls into a bucket, writes the raw value, and maintains the
// corresponding Registry index. A given node's resource is only ever
// written by that node's own monitor goroutine (§5's single-writer
// rule), so the mutex here guards against concurrent calls from the
// same process, not cross-process races.
type Resource struct {
	reg      registry.Registry
	bucketer Bucketer

	rawPrefix string
	indexBase []string
	nodeID    string

	mu          sync.Mutex
	haveBucket  bool
	lastBucket  int
	lastLabel   string
}

func NewResource(reg registry.Registry, bucketer Bucketer, rawPrefix string, indexBase []string, nodeID string) *Resource {
	return &Resource{
		reg:       reg,
		bucketer:  bucketer,
		rawPrefix: rawPrefix,
		indexBase: indexBase,
		nodeID:    nodeID,
	}
}

// SetAvail discretizes value and, unless batch mode suppresses it or
// the bucket is unchanged, performs read-old -> remove-old ->
// write-new -> add-new.
func (r *Resource) SetAvail(ctx context.Context, value float64) error {
	batch, err := r.reg.Batch(ctx)
	if err != nil {
		return err
	}

	if batch {
		return nil
	}

	return r.writeThrough(ctx, value)
}

// ForceSetAvail bypasses the batch suppression — used by the planner
// to write back expected post-placement values directly (§4.4.7
// "batch" migration policy).
func (r *Resource) ForceSetAvail(ctx context.Context, value float64) error {
	return r.writeThrough(ctx, value)
}

func (r *Resource) writeThrough(ctx context.Context, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, label := r.bucketer.Bucket(value)

	if r.haveBucket && bucket == r.lastBucket {
		return nil
	}

	if r.haveBucket {
		oldLabel := r.lastLabel
		if err := r.reg.RemoveIndex(ctx, append(append([]string{}, r.indexBase...), oldLabel), r.nodeID, 2); err != nil {
			return fmt.Errorf("resource remove old index: %w", err)
		}
	}

	if err := r.reg.Set(ctx, r.rawPrefix, r.nodeID, strconv.FormatFloat(value, 'f', -1, 64)); err != nil {
		return fmt.Errorf("resource set raw: %w", err)
	}

	if err := r.reg.AddIndex(ctx, append(append([]string{}, r.indexBase...), label), r.nodeID, 2); err != nil {
		return fmt.Errorf("resource add new index: %w", err)
	}

	r.lastBucket = bucket
	r.lastLabel = label
	r.haveBucket = true

	return nil
}

// Stop tears down the raw key and whatever index entry is currently
// held, leaving no trace of the node in this resource dimension.
func (r *Resource) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.haveBucket {
		if err := r.reg.RemoveIndex(ctx, append(append([]string{}, r.indexBase...), r.lastLabel), r.nodeID, 2); err != nil {
			return fmt.Errorf("resource stop remove index: %w", err)
		}

		r.haveBucket = false
	}

	if err := r.reg.Delete(ctx, r.rawPrefix, r.nodeID); err != nil {
		return fmt.Errorf("resource stop delete raw: %w", err)
	}

	return nil
}

// Current returns the last value written by this monitor, as a
// float64, or 0/false if none has been written.
func (r *Resource) Current(ctx context.Context) (float64, bool, error) {
	raw, found, err := r.reg.Get(ctx, r.rawPrefix, r.nodeID)
	if err != nil || !found {
		return 0, false, err
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("resource current parse: %w", err)
	}

	return v, true, nil
}

// CPU bundles the available-percentage and total-capacity dimensions
// for one node.
type CPU struct {
	Avail *Resource
	Total *Resource
}

func NewCPU(reg registry.Registry, nodeID string) *CPU {
	return &CPU{
		Avail: NewResource(reg, PercentBucketer{}, registry.PrefixNodeCPUAvail, []string{"node", "resource", "cpuAvail"}, nodeID),
		Total: NewResource(reg, CPUCapacityBucketer{}, registry.PrefixNodeCPUTotal, []string{"node", "attribute", "cpuTotal"}, nodeID),
	}
}

func (c *CPU) Stop(ctx context.Context) error {
	if err := c.Avail.Stop(ctx); err != nil {
		return err
	}

	return c.Total.Stop(ctx)
}

// RAM bundles the available-percentage and total-capacity dimensions
// for one node.
type RAM struct {
	Avail *Resource
	Total *Resource
}

func NewRAM(reg registry.Registry, nodeID string) *RAM {
	return &RAM{
		Avail: NewResource(reg, PercentBucketer{}, registry.PrefixNodeMemAvail, []string{"node", "resource", "memAvail"}, nodeID),
		Total: NewResource(reg, RAMCapacityBucketer{}, registry.PrefixNodeMemTotal, []string{"node", "attribute", "memTotal"}, nodeID),
	}
}

func (r *RAM) Stop(ctx context.Context) error {
	if err := r.Avail.Stop(ctx); err != nil {
		return err
	}

	return r.Total.Stop(ctx)
}

// AvailableUnits converts a percentage-available reading against a
// total-capacity reading into native units (MIPS or bytes), the
// computation the planner's resource pre-filter and RequirementMatcher's
// node_resource_min both need.
func AvailableUnits(availPercent, total float64) float64 {
	return availPercent / 100.0 * total
}
