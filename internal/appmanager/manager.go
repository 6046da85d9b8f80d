// Package appmanager owns Application objects end to end: creation,
// incremental actor/link registration, placement triggering, and
// destroy/migrate lifecycle operations, generalizing the teacher's
// orchestrator.Orchestrator (which owned sandbox lifecycle against a
// single Nomad/Firecracker runtime) to whole multi-actor applications
// placed across a fleet.
package appmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flowmesh/placement-core/internal/domain"
	"github.com/flowmesh/placement-core/internal/logging"
	"github.com/flowmesh/placement-core/internal/orchestrator/placement"
	"github.com/flowmesh/placement-core/internal/placeerr"
	"github.com/flowmesh/placement-core/internal/registry"
	"github.com/flowmesh/placement-core/internal/requirement"
	"github.com/flowmesh/placement-core/internal/store"
)

// maxCPUCost/maxRAMCost are not referenced by the move bias: the
// 2*(max_cpu+max_ram) penalty in placement.Money takes its maxima from
// the costs of the candidate nodes of each run.
const (
	maxCPUCost = 1.0
	maxRAMCost = 1.0
)

// Manager owns every live Application and drives placement through
// Planner, matching §4.6's operation set.
type Manager struct {
	mu     sync.Mutex
	apps   map[string]*domain.Application
	links  map[string][]domain.Link          // appID -> application links
	actors map[string]map[string]domain.Actor // appID -> actorID -> record

	Store    *store.Store // nil in the single-node, storage_type=memory profile
	Registry registry.Registry
	Planner  *placement.Planner
	Fleet    placement.Fleet
	Log      *zap.Logger
}

func New(st *store.Store, reg registry.Registry, planner *placement.Planner, fleet placement.Fleet, log *zap.Logger) *Manager {
	return &Manager{
		apps:     make(map[string]*domain.Application),
		links:    make(map[string][]domain.Link),
		actors:   make(map[string]map[string]domain.Actor),
		Store:    st,
		Registry: reg,
		Planner:  planner,
		Fleet:    fleet,
		Log:      log,
	}
}

// New creates an Application and returns its generated id, per §4.6's
// `new(name, deploy_info) -> app_id`.
func (m *Manager) New(ctx context.Context, name, namespace, originNodeID string, deployInfo domain.DeployInfo) (string, error) {
	id := uuid.NewString()

	app := domain.NewApplication(id, name, namespace, originNodeID, deployInfo)

	m.mu.Lock()
	m.apps[id] = app
	m.actors[id] = make(map[string]domain.Actor)
	m.mu.Unlock()

	if err := m.persistApplication(ctx, app); err != nil {
		return "", err
	}

	return id, nil
}

// Add registers an actor under an application, per `add(app_id, actor_id)`.
func (m *Manager) Add(ctx context.Context, appID string, actor domain.Actor) error {
	app, err := m.lookup(appID)
	if err != nil {
		return err
	}

	app.AddActor(actor.ID, actor.Name)

	m.mu.Lock()
	m.actors[appID][actor.ID] = actor
	m.mu.Unlock()

	if m.Store != nil {
		if err := m.Store.SaveActor(ctx, appID, actor); err != nil {
			return err
		}
	}

	return m.persistApplication(ctx, app)
}

// AddLink registers an application-level link, per `add_link(app_id, link_id, link_name)`.
func (m *Manager) AddLink(ctx context.Context, appID string, link domain.Link) error {
	app, err := m.lookup(appID)
	if err != nil {
		return err
	}

	app.AddLink(link.ID, link.Name)

	m.mu.Lock()
	m.links[appID] = append(m.links[appID], link)
	m.mu.Unlock()

	return m.persistApplication(ctx, app)
}

// Finalize persists the Application and, if migrate is set, triggers
// the initial placement run, per §4.6's `finalize(app_id, migrate, cb)`.
func (m *Manager) Finalize(ctx context.Context, appID string, migrate bool) (placement.Result, error) {
	app, err := m.lookup(appID)
	if err != nil {
		return placement.Result{}, err
	}

	if err := m.persistApplication(ctx, app); err != nil {
		return placement.Result{}, err
	}

	if !migrate {
		return placement.Result{Status: "created"}, nil
	}

	return m.deploy(ctx, app, false, false, false)
}

// MigrateWithRequirementsFull looks up the in-memory Application, merges
// or replaces deploy_info, and re-runs placement, per §4.6's
// `migrate_with_requirements(app_id, deploy_info, move, extend, cb)`.
func (m *Manager) MigrateWithRequirementsFull(ctx context.Context, appID string, deployInfo domain.DeployInfo, move, extend bool) (placement.Result, error) {
	app, err := m.lookup(appID)
	if err != nil {
		return placement.Result{}, err
	}

	if extend {
		merged := app.DeployInfo
		if merged.ActorRequirements == nil {
			merged.ActorRequirements = make(map[string][]requirement.Clause)
		}

		for actorID, clauses := range deployInfo.ActorRequirements {
			merged.ActorRequirements[actorID] = clauses
		}

		if deployInfo.WorkloadActorID != "" {
			merged.WorkloadActorID = deployInfo.WorkloadActorID
		}

		app.SetDeployInfo(merged)
	} else {
		app.SetDeployInfo(deployInfo)
	}

	if err := m.persistApplication(ctx, app); err != nil {
		return placement.Result{}, err
	}

	return m.deploy(ctx, app, move, true, false)
}

// MigrateWithRequirements satisfies farseeing.Migrator: it re-runs
// placement for appID with an empty deploy_info delta. With extend=true
// (what the farseeing scheduler passes when a timeline activates an
// application) deploy_info is kept; with extend=false it is replaced by
// an empty DeployInfo.
func (m *Manager) MigrateWithRequirements(ctx context.Context, appID string, move, extend bool) error {
	_, err := m.MigrateWithRequirementsFull(ctx, appID, domain.DeployInfo{}, move, extend)

	return err
}

func (m *Manager) deploy(ctx context.Context, app *domain.Application, move, migration, farseeing bool) (placement.Result, error) {
	m.mu.Lock()
	links := append([]domain.Link(nil), m.links[app.ID]...)
	current := make(map[string]string, len(m.actors[app.ID]))

	for actorID, actor := range m.actors[app.ID] {
		if actor.NodeID != "" {
			current[actorID] = actor.NodeID
		}
	}
	m.mu.Unlock()

	result, err := m.Planner.Deploy(ctx, placement.DeployRequest{
		App:              app,
		Links:            links,
		Move:             move,
		Migration:        migration,
		FarseeingActive:  farseeing,
		CurrentPlacement: current,
	})
	if err != nil {
		return placement.Result{}, err
	}

	m.applyResult(ctx, app.ID, result)

	return result, nil
}

func (m *Manager) applyResult(ctx context.Context, appID string, result placement.Result) {
	m.mu.Lock()
	records := m.actors[appID]
	m.mu.Unlock()

	for actorID, assignment := range result.Option {
		actor, ok := records[actorID]
		if !ok {
			continue
		}

		actor.NodeID = assignment.Runtime
		records[actorID] = actor

		if m.Store != nil {
			if err := m.Store.SaveActor(ctx, appID, actor); err != nil {
				m.Log.Warn("persist actor placement failed", logging.WithAppID(appID), logging.WithActorID(actorID), zap.Error(err))
			}
		}
	}
}

// Destroy locates every actor (local, remote, and replicated), asks
// each owning node to stop it, removes replica records, and deletes
// the Application record. Partial failure is tolerated: unreachable
// nodes contribute their actor id to the returned missing list rather
// than aborting the whole operation, per §4.6/§7.
func (m *Manager) Destroy(ctx context.Context, appID string) ([]string, error) {
	if _, err := m.lookup(appID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	records := make([]domain.Actor, 0, len(m.actors[appID]))
	for _, a := range m.actors[appID] {
		records = append(records, a)
	}
	m.mu.Unlock()

	missing := make([]string, 0)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)

	for _, actor := range records {
		actor := actor

		g.Go(func() error {
			if actor.NodeID == "" {
				return nil
			}

			node, ok := m.Fleet.Node(ctx, actor.NodeID)
			if !ok {
				mu.Lock()
				missing = append(missing, actor.ID)
				mu.Unlock()

				return nil
			}

			if err := node.StopActor(ctx, actor.ID); err != nil {
				m.Log.Warn("stop actor failed, accumulating into missing",
					logging.WithActorID(actor.ID), logging.WithNodeID(actor.NodeID), zap.Error(err))

				mu.Lock()
				missing = append(missing, actor.ID)
				mu.Unlock()

				return nil
			}

			if actor.ReplicationID != "" && m.Store != nil {
				if err := m.Store.RemoveReplica(ctx, actor.ReplicationID); err != nil {
					return err
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return missing, fmt.Errorf("destroy application %s: %w", appID, err)
	}

	if m.Store != nil {
		if err := m.Store.DeleteApplication(ctx, appID); err != nil {
			return missing, err
		}
	}

	for _, actor := range records {
		if err := m.Registry.Delete(ctx, registry.PrefixActor, actor.ID); err != nil {
			return missing, err
		}
	}

	m.mu.Lock()
	delete(m.apps, appID)
	delete(m.links, appID)
	delete(m.actors, appID)
	m.mu.Unlock()

	return missing, nil
}

func (m *Manager) lookup(appID string) (*domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.apps[appID]
	if !ok {
		return nil, placeerr.ErrNotFound
	}

	return app, nil
}

func (m *Manager) persistApplication(ctx context.Context, app *domain.Application) error {
	if m.Store == nil {
		return nil
	}

	actors, links, deployInfo := app.Snapshot()

	return m.Store.SaveApplication(ctx, store.ApplicationRecord{
		ID:           app.ID,
		Name:         app.Name,
		Namespace:    app.Namespace,
		OriginNodeID: app.OriginNodeID,
		Actors:       actors,
		Links:        links,
		DeployInfo:   deployInfo,
	})
}
