// Package nodemanager owns the fleet-membership view the placement
// core holds of each node: reachability, control endpoint, and the
// lazy resource snapshot the planner refreshes before finalizing a
// migration. It generalizes the teacher's sandbox-runtime Node (which
// tracked a single orchestrator gRPC connection per VM host) to a
// lighter fleet member descriptor backed by the Registry.
package nodemanager

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/flowmesh/placement-core/internal/registry"
)

// Node is one fleet member as the planner sees it: identity, control
// URI for REST calls (lazy resource refresh, actor stop), and an
// optional gRPC connection used for health checks.
type Node struct {
	ID         string
	controlURI string

	conn        *grpc.ClientConn
	health      healthpb.HealthClient
	httpClient  *http.Client

	mutex  sync.RWMutex
	status Status
	attrs  map[string]string
}

// New dials grpcAddr (for health checks) and wraps it together with a
// REST client for controlURI (lazy resource refresh, actor stop).
func New(id, controlURI, grpcAddr string) (*Node, error) {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("nodemanager: dial %s: %w", grpcAddr, err)
	}

	return &Node{
		ID:         id,
		controlURI: controlURI,
		conn:       conn,
		health:     healthpb.NewHealthClient(conn),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		status:     StatusUnknown,
		attrs:      make(map[string]string),
	}, nil
}

// FromSnapshot builds a Node purely from a Registry record, without
// dialing — used when only REST reachability matters (tests, a node
// that never exposes gRPC).
func FromSnapshot(n registry.Node) *Node {
	controlURI := n.ControlURI
	if controlURI == "" && len(n.ReachableAddresses) > 0 {
		controlURI = n.ReachableAddresses[0]
	}

	return &Node{
		ID:         n.ID,
		controlURI: controlURI,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		status:     StatusUnknown,
		attrs:      n.Attributes,
	}
}

func (n *Node) Close() error {
	if n.conn == nil {
		return nil
	}

	return n.conn.Close()
}

// CheckHealth issues a gRPC health check, the only live connectivity
// probe this package performs over the wire; everything else about a
// node's resources comes from the Registry, which the node's own
// monitor goroutine writes to.
func (n *Node) CheckHealth(ctx context.Context) {
	if n.health == nil {
		return
	}

	resp, err := n.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		n.setStatus(StatusUnreachable)

		return
	}

	switch resp.GetStatus() {
	case healthpb.HealthCheckResponse_SERVING:
		n.setStatus(StatusReady)
	default:
		n.setStatus(StatusDraining)
	}
}

// Attribute returns a fleet attribute read at snapshot time (capacity
// hints, datacenter labels, and so on).
func (n *Node) Attribute(key string) (string, bool) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	v, ok := n.attrs[key]

	return v, ok
}

func (n *Node) ControlURI() string {
	return n.controlURI
}
