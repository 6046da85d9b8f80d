package domain

import (
	"github.com/flowmesh/placement-core/internal/registry"
)

// PlacementContext is the per-run scratchpad a placement cycle
// populates: candidate placements per actor, candidate physical links
// per application link, resource/cost vectors, and a per-actor
// resource-cost cache. It is created fresh for each run and discarded
// once the cycle's callback fires — nothing here outlives one Deploy
// call, unlike the immutable Application it is paired with.
type PlacementContext struct {
	App *Application

	Move      bool // bias toward keeping actors in place
	Migration bool // §4.4.7 migration policies apply
	Farseeing bool // §4.4.3 farseeing exception applies

	// ActorCandidates holds, per actor, the node ids still eligible
	// after each filter step.
	ActorCandidates map[string]map[string]struct{}

	// LinkCandidates holds, per application link, the physical link
	// ids still eligible.
	LinkCandidates map[string]map[string]struct{}

	// ResourceDemand caches each actor's cumulative cpu/ram demand.
	ResourceDemand map[string]map[string]float64

	// NodeSnapshot caches each candidate node's resource/cost vector
	// as observed at collection time, avoiding repeat Registry reads
	// during scoring.
	NodeSnapshot map[string]NodeSnapshot

	// LinkSnapshot caches each candidate physical link's bandwidth/latency.
	LinkSnapshot map[string]registry.PhysicalLink

	// CurrentPlacement is actorID -> nodeID for the application's
	// placement as tracked by the caller (appmanager) at the time this
	// run was requested; empty on an application's first placement.
	CurrentPlacement map[string]string
}

// NodeSnapshot is the resource/cost vector a placement run reads once
// per candidate node during collection.
type NodeSnapshot struct {
	ID          string
	CPUAvailPct float64
	CPUTotal    float64
	RAMAvailPct float64
	RAMTotal    float64
	CostCPU     float64
	CostRAM     float64
	ControlURI  string
}

func (n NodeSnapshot) AvailableCPU() float64 {
	return n.CPUAvailPct / 100.0 * n.CPUTotal
}

func (n NodeSnapshot) AvailableRAM() float64 {
	return n.RAMAvailPct / 100.0 * n.RAMTotal
}

func NewPlacementContext(app *Application, move, migration, farseeing bool) *PlacementContext {
	return &PlacementContext{
		App:              app,
		Move:             move,
		Migration:        migration,
		Farseeing:        farseeing,
		ActorCandidates:  make(map[string]map[string]struct{}),
		LinkCandidates:   make(map[string]map[string]struct{}),
		ResourceDemand:   make(map[string]map[string]float64),
		NodeSnapshot:     make(map[string]NodeSnapshot),
		LinkSnapshot:     make(map[string]registry.PhysicalLink),
		CurrentPlacement: make(map[string]string),
	}
}
