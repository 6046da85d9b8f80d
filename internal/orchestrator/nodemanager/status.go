package nodemanager

import "google.golang.org/grpc/connectivity"

// Status is the core's view of a fleet member's reachability.
type Status int

const (
	StatusUnknown Status = iota
	StatusReady
	StatusDraining
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusDraining:
		return "draining"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// FromConnectivity maps a grpc connectivity state to a Status, the way
// the teacher maps connectivity.Shutdown/TransientFailure/Connecting
// onto its own node status enum.
func FromConnectivity(state connectivity.State) Status {
	switch state {
	case connectivity.Ready, connectivity.Idle:
		return StatusReady
	case connectivity.Connecting:
		return StatusUnknown
	case connectivity.TransientFailure, connectivity.Shutdown:
		return StatusUnreachable
	default:
		return StatusUnknown
	}
}

// Status returns the node's current reachability, preferring the live
// gRPC connection state over the last explicitly set status — the
// same "connection state wins" rule the teacher applies.
func (n *Node) Status() Status {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	if n.conn == nil {
		return n.status
	}

	switch live := FromConnectivity(n.conn.GetState()); live {
	case StatusUnreachable, StatusUnknown:
		return live
	default:
		return n.status
	}
}

func (n *Node) setStatus(status Status) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.status = status
}
