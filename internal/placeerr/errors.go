// Package placeerr defines the sentinel error kinds shared across the
// placement core, checked with errors.Is the way the teacher checks
// its per-package sentinel errors.
package placeerr

import "errors"

var (
	// ErrNotFound means a looked-up record was absent; appmanager returns
	// it for an unknown application id. Registry reads report an absent
	// key as found=false rather than as this error, and resource totals
	// treat such a key as zero. Destroy does not retry lookups.
	ErrNotFound = errors.New("placement: registry key not found")

	// ErrPlacementInfeasible means at least one actor was left with no
	// feasible placement. Planner.Deploy returns it with an empty Result;
	// appmanager passes it on to its caller and does not destroy the
	// application.
	ErrPlacementInfeasible = errors.New("placement: no feasible placement")

	// ErrReentry means a second placement run was requested for an
	// application that already has one in flight.
	ErrReentry = errors.New("placement: placement already in flight")

	// ErrTimeout means the deploy watchdog expired before convergence.
	ErrTimeout = errors.New("placement: deploy timed out")

	// ErrPeerUnreachable means an RPC to a node failed during destroy or
	// lazy resource refresh.
	ErrPeerUnreachable = errors.New("placement: peer node unreachable")

	// ErrInvalidBucket names an out-of-range bucket value. No function in
	// this module returns it: the monitor bucketers clamp such values.
	ErrInvalidBucket = errors.New("placement: value out of bucket range")
)
