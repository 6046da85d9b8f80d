// Package registry implements the distributed key/value store with
// prefixed keys and multi-level indices that the rest of the core
// reads and writes through. It generalizes the teacher's sandbox
// storage layer (a Redis-backed map keyed by sandbox id, with a Lua
// script guarding compound updates) to the prefix+index contract.
package registry

import (
	"context"
	"sort"
	"strings"
)

// Well-known key prefixes, kept as exact strings because peers and
// tests depend on their stability.
const (
	PrefixNode          = "node-"
	PrefixNodeCapability = "node/capabilities/"
	PrefixNodeCPU        = "nodeCpu-"
	PrefixNodeCPUAvail   = "nodeCpuAvail-"
	PrefixNodeCPUTotal   = "nodeCpuTotal-"
	PrefixNodeRAM        = "nodeRam-"
	PrefixNodeMemAvail   = "nodeMemAvail-"
	PrefixNodeMemTotal   = "nodeMemTotal-"
	PrefixPhyLink        = "phyLink-"
	PrefixRTLink         = "rt-link-"
	PrefixLinkBandwidth  = "linkBandwidth-"
	PrefixLinkLatency    = "linkLatency-"
	PrefixActor          = "actor-"
	PrefixLink           = "link-"
	KeyBatch             = "batch"
)

// Registry is the abstract contract every component reads/writes
// through. AddIndex and RemoveIndex are single operations; the
// read-old -> remove-old -> write-new -> add-new index discipline is
// carried out by the caller (monitor.Resource.writeThrough).
type Registry interface {
	// Get returns the value stored under prefix+key. found is false
	// and err is nil when the key is absent (callers map that to
	// placeerr.ErrNotFound at the edges that need it as an error).
	Get(ctx context.Context, prefix, key string) (value string, found bool, err error)

	Set(ctx context.Context, prefix, key, value string) error

	Delete(ctx context.Context, prefix, key string) error

	// AddIndex records that value belongs under the index path.
	// rootPrefixLevel marks how many leading path segments form the
	// "root" a range scan is anchored at (e.g. ['node','resource','cpu']
	// with rootPrefixLevel=2 anchors scans at 'node/resource').
	AddIndex(ctx context.Context, path []string, value string, rootPrefixLevel int) error

	RemoveIndex(ctx context.Context, path []string, value string, rootPrefixLevel int) error

	// GetIndex returns every value indexed at exactly path.
	GetIndex(ctx context.Context, path []string, rootPrefixLevel int) (map[string]struct{}, error)

	// GetIndexPrefix returns the union of every value indexed under any
	// path sharing the given prefix segments — the "scan that sub-path"
	// behavior bucketed range queries rely on.
	GetIndexPrefix(ctx context.Context, pathPrefix []string) (map[string]struct{}, error)

	// Batch reports whether batch mode is set; when true, resource
	// monitors suppress their own writes so only explicit planner
	// writes apply (deterministic placement scenarios/tests).
	Batch(ctx context.Context) (bool, error)

	SetBatch(ctx context.Context, on bool) error
}

// IndexPath joins path segments with "/" in the order given; it does
// not sort them. AttrIndexPath supplies the stable key ordering that
// makes two equivalent attribute bags produce the same path.
func IndexPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// AttrIndexPath formats an attribute bag into index path segments with
// stable key ordering, as node_attr_match/link_attr_match require.
func AttrIndexPath(base []string, attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	path := make([]string, 0, len(base)+len(keys)*2)
	path = append(path, base...)

	for _, k := range keys {
		path = append(path, k, attrs[k])
	}

	return path
}
