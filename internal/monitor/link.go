package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowmesh/placement-core/internal/registry"
)

const (
	defaultMaxBandwidthKbit = 1000000
	defaultLatencyUs        = 0
)

// Link monitors the bandwidth and latency of every physical link
// touching one node, and bootstraps a full mesh with every other
// known node on Start.
type Link struct {
	reg    registry.Registry
	nodeID string

	mu    sync.Mutex
	links map[string]*linkEntry
}

type linkEntry struct {
	bandwidth *Resource
	latency   *Resource
	peer      string
}

func NewLink(reg registry.Registry, nodeID string) *Link {
	return &Link{
		reg:    reg,
		nodeID: nodeID,
		links:  make(map[string]*linkEntry),
	}
}

// Start bootstraps a full mesh: for every known node it confirms a
// phyLink- record exists, or creates one with default max bandwidth
// and zero latency, indexed at ['phyLinks', rt].
func (l *Link) Start(ctx context.Context, peers []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, peer := range peers {
		if peer == l.nodeID {
			continue
		}

		id := registry.PairKey(l.nodeID, peer)
		if _, ok := l.links[id]; ok {
			continue
		}

		entry := l.newEntry(id, peer)
		l.links[id] = entry

		if _, found, err := l.reg.Get(ctx, registry.PrefixPhyLink, id); err != nil {
			return fmt.Errorf("link start get %s: %w", id, err)
		} else if found {
			continue
		}

		if err := entry.bandwidth.ForceSetAvail(ctx, float64(defaultMaxBandwidthKbit)); err != nil {
			return fmt.Errorf("link start default bandwidth: %w", err)
		}

		if err := entry.latency.ForceSetAvail(ctx, float64(defaultLatencyUs)); err != nil {
			return fmt.Errorf("link start default latency: %w", err)
		}

		if err := l.reg.Set(ctx, registry.PrefixPhyLink, id, l.nodeID+","+peer); err != nil {
			return fmt.Errorf("link start set phyLink: %w", err)
		}

		if err := l.reg.AddIndex(ctx, []string{"phyLinks", l.nodeID}, id, 1); err != nil {
			return fmt.Errorf("link start index self: %w", err)
		}

		if err := l.reg.AddIndex(ctx, []string{"phyLinks", peer}, id, 1); err != nil {
			return fmt.Errorf("link start index peer: %w", err)
		}
	}

	return nil
}

func (l *Link) newEntry(id, peer string) *linkEntry {
	return &linkEntry{
		bandwidth: NewResource(l.reg, BandwidthBucketer{}, registry.PrefixLinkBandwidth, []string{"links", "resource", "bandwidth"}, id),
		latency:   NewResource(l.reg, LatencyBucketer{}, registry.PrefixLinkLatency, []string{"links", "resource", "latency"}, id),
		peer:      peer,
	}
}

// SetBandwidth discretizes and publishes a bandwidth reading (kbit/s)
// for the link to peer.
func (l *Link) SetBandwidth(ctx context.Context, peer string, kbit float64) error {
	entry, err := l.entryFor(ctx, peer)
	if err != nil {
		return err
	}

	return entry.bandwidth.SetAvail(ctx, kbit)
}

// SetLatency discretizes and publishes a latency reading (µs) for the
// link to peer.
func (l *Link) SetLatency(ctx context.Context, peer string, us float64) error {
	entry, err := l.entryFor(ctx, peer)
	if err != nil {
		return err
	}

	return entry.latency.SetAvail(ctx, us)
}

func (l *Link) entryFor(ctx context.Context, peer string) (*linkEntry, error) {
	id := registry.PairKey(l.nodeID, peer)

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.links[id]; ok {
		return e, nil
	}

	e := l.newEntry(id, peer)
	l.links[id] = e

	if err := l.reg.Set(ctx, registry.PrefixPhyLink, id, l.nodeID+","+peer); err != nil {
		return nil, fmt.Errorf("link entry set phyLink: %w", err)
	}

	return e, nil
}

// Stop tears down every link entry owned by this monitor, symmetrically.
func (l *Link) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, e := range l.links {
		if err := e.bandwidth.Stop(ctx); err != nil {
			return fmt.Errorf("link stop bandwidth %s: %w", id, err)
		}

		if err := e.latency.Stop(ctx); err != nil {
			return fmt.Errorf("link stop latency %s: %w", id, err)
		}

		if err := l.reg.RemoveIndex(ctx, []string{"phyLinks", l.nodeID}, id, 1); err != nil {
			return fmt.Errorf("link stop index self %s: %w", id, err)
		}

		if err := l.reg.RemoveIndex(ctx, []string{"phyLinks", e.peer}, id, 1); err != nil {
			return fmt.Errorf("link stop index peer %s: %w", id, err)
		}

		if err := l.reg.Delete(ctx, registry.PrefixPhyLink, id); err != nil {
			return fmt.Errorf("link stop delete %s: %w", id, err)
		}

		delete(l.links, id)
	}

	return nil
}

// Snapshot returns the currently known physical link to peer, if any.
func (l *Link) Snapshot(ctx context.Context, peer string) (registry.PhysicalLink, bool, error) {
	id := registry.PairKey(l.nodeID, peer)

	l.mu.Lock()
	e, ok := l.links[id]
	l.mu.Unlock()

	if !ok {
		return registry.PhysicalLink{}, false, nil
	}

	bw, _, err := e.bandwidth.Current(ctx)
	if err != nil {
		return registry.PhysicalLink{}, false, err
	}

	lat, _, err := e.latency.Current(ctx)
	if err != nil {
		return registry.PhysicalLink{}, false, err
	}

	return registry.PhysicalLink{
		ID:            id,
		Runtime1:      l.nodeID,
		Runtime2:      peer,
		BandwidthKbit: int(bw),
		LatencyUs:     int(lat),
	}, true, nil
}
