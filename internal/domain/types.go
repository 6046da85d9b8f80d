// Package domain holds the placement-visible application model: the
// immutable Application/Actor/Link metadata plus the per-run
// PlacementContext scratchpad, split apart per Design Note 3 instead
// of mutating one object as both record and workspace.
package domain

import (
	"sync"

	"github.com/flowmesh/placement-core/internal/requirement"
)

// Actor is the placement view of one processing unit: ports and
// current host. The host node owns the running actor; the Registry
// holds this metadata.
type Actor struct {
	ID            string
	Name          string // ns:component:instance
	Type          string
	InPorts       []string
	OutPorts      []string
	NodeID        string
	ReplicationID string
}

// Link is the purely logical application-level edge between two actor
// ports.
type Link struct {
	ID           string
	Name         string
	SrcActorID   string
	DstActorID   string
	Requirements []requirement.Clause
}

// DeployInfo carries per-actor requirements and learn-engine wiring
// supplied at finalize/migrate time.
type DeployInfo struct {
	ActorRequirements map[string][]requirement.Clause // actor_id -> clauses
	WorkloadActorID   string                           // "burn actor" for LearnEngine
}

// Application is the immutable record: identity, membership, and the
// deploy info a migrate call may replace. It does not carry scratch
// fields — those live in PlacementContext, created fresh per run.
type Application struct {
	mu sync.RWMutex

	ID           string
	Name         string
	Namespace    string
	OriginNodeID string
	Actors       map[string]string // actor_id -> name
	Links        map[string]string // link_id -> name
	DeployInfo   DeployInfo

	inFlight bool
}

func NewApplication(id, name, ns, originNodeID string, deployInfo DeployInfo) *Application {
	return &Application{
		ID:           id,
		Name:         name,
		Namespace:    ns,
		OriginNodeID: originNodeID,
		Actors:       make(map[string]string),
		Links:        make(map[string]string),
		DeployInfo:   deployInfo,
	}
}

// TryBeginPlacement implements the "placement-in-flight" guard as
// context ownership: it succeeds iff no other run currently holds it.
func (a *Application) TryBeginPlacement() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inFlight {
		return false
	}

	a.inFlight = true

	return true
}

func (a *Application) EndPlacement() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.inFlight = false
}

func (a *Application) AddActor(actorID, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Actors[actorID] = name
}

func (a *Application) AddLink(linkID, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Links[linkID] = name
}

func (a *Application) SetDeployInfo(info DeployInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.DeployInfo = info
}

func (a *Application) Snapshot() (actors, links map[string]string, deployInfo DeployInfo) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	actors = make(map[string]string, len(a.Actors))
	for k, v := range a.Actors {
		actors[k] = v
	}

	links = make(map[string]string, len(a.Links))
	for k, v := range a.Links {
		links[k] = v
	}

	return actors, links, a.DeployInfo
}
