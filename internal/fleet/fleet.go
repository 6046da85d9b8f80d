// Package fleet tracks the live node universe the Planner enumerates
// candidates against, generalizing the teacher's orchestrator.nodes
// smap.Map[*Node] (populated by polling Nomad's node list) into the
// placement.Fleet contract.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	nomadapi "github.com/hashicorp/nomad/api"
	"go.uber.org/zap"

	"github.com/flowmesh/placement-core/internal/logging"
	"github.com/flowmesh/placement-core/internal/orchestrator/nodemanager"
	"github.com/flowmesh/placement-core/internal/registry"
)

// Fleet is a Registry-backed, optionally Nomad-synced membership view.
// Planner.Fleet and appmanager.Manager.Fleet both read through it.
type Fleet struct {
	reg registry.Registry
	log *zap.Logger

	nomad *nomadapi.Client

	mu    sync.RWMutex
	nodes map[string]*nodemanager.Node
}

func New(reg registry.Registry, log *zap.Logger) *Fleet {
	return &Fleet{
		reg:   reg,
		log:   log,
		nodes: make(map[string]*nodemanager.Node),
	}
}

// WithNomad attaches a Nomad client used for node discovery; without
// it the fleet only ever contains nodes explicitly added via Put, the
// shape a statically-configured or test fleet uses.
func (f *Fleet) WithNomad(client *nomadapi.Client) *Fleet {
	f.nomad = client

	return f
}

// Put registers or replaces a fleet member directly, bypassing Nomad
// discovery — used for statically-configured nodes and tests.
func (f *Fleet) Put(n *nodemanager.Node) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nodes[n.ID] = n
}

func (f *Fleet) NodeIDs(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]string, 0, len(f.nodes))
	for id := range f.nodes {
		ids = append(ids, id)
	}

	return ids, nil
}

func (f *Fleet) Node(ctx context.Context, id string) (*nodemanager.Node, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.nodes[id]

	return n, ok
}

// Sync queries Nomad's node list once, dialing any node this fleet
// does not already know about and registering its Node record in the
// Registry, the way the teacher's keepInSync loop reconciles o.nodes
// against Nomad allocations.
func (f *Fleet) Sync(ctx context.Context) error {
	if f.nomad == nil {
		return nil
	}

	stubs, _, err := f.nomad.Nodes().List(&nomadapi.QueryOptions{})
	if err != nil {
		return fmt.Errorf("fleet sync: list nomad nodes: %w", err)
	}

	for _, stub := range stubs {
		if stub.Status != "ready" {
			continue
		}

		f.mu.RLock()
		_, known := f.nodes[stub.ID]
		f.mu.RUnlock()

		if known {
			continue
		}

		if err := f.adopt(ctx, stub.ID, stub.Address); err != nil {
			f.log.Warn("fleet sync: adopt node failed", logging.WithNodeID(stub.ID), zap.Error(err))
		}
	}

	return nil
}

func (f *Fleet) adopt(ctx context.Context, id, address string) error {
	info, _, err := f.nomad.Nodes().Info(id, &nomadapi.QueryOptions{})
	if err != nil {
		return fmt.Errorf("nomad node info %s: %w", id, err)
	}

	controlURI := "http://" + address
	grpcAddr := address

	if httpAddr, ok := info.Attributes["unique.network.ip-address"]; ok && httpAddr != "" {
		controlURI = "http://" + httpAddr
		grpcAddr = httpAddr
	}

	node, err := nodemanager.New(id, controlURI, grpcAddr)
	if err != nil {
		return err
	}

	regNode := registry.Node{
		ID:                 id,
		ReachableAddresses: []string{address},
		Attributes:         info.Attributes,
		ControlURI:         controlURI,
	}

	raw, err := json.Marshal(regNode)
	if err != nil {
		return err
	}

	if err := f.reg.Set(ctx, registry.PrefixNode, id, string(raw)); err != nil {
		return err
	}

	f.Put(node)

	return nil
}

// RunSync polls Nomad on an interval until ctx is cancelled, the
// fleet-membership analogue of the teacher's keepInSync goroutine.
func (f *Fleet) RunSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.Sync(ctx); err != nil {
				f.log.Warn("fleet sync failed", zap.Error(err))
			}
		}
	}
}

// Close tears down every dialed node connection.
func (f *Fleet) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, n := range f.nodes {
		_ = n.Close()
	}
}
