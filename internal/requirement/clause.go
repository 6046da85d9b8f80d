package requirement

// Kind tags the closed set of requirement clause variants from the
// data model.
type Kind int

const (
	NodeAttrMatch Kind = iota
	LinkAttrMatch
	NodeResourceMin
	Replication
	Composite
)

// Clause is the tagged-struct sum type for requirement clauses.
// Fields outside a Clause's Kind are zero/nil and ignored.
type Clause struct {
	Kind Kind

	// NodeAttrMatch / LinkAttrMatch: candidate iff the node/link has
	// every key=value pair in Index as an attribute.
	Index map[string]string

	// NodeResourceMin: candidate iff the node's available resources
	// meet every key->min in Resource (keys: "cpu", "ram", in native
	// units already converted via monitor.AvailableUnits).
	Resource map[string]float64

	// Replication is handled by the replication supervisor and
	// excluded from placement entirely; Matcher.Evaluate skips it.
	ReplicationID string

	// Composite: flattened one level before evaluation, children
	// intersected set-theoretically.
	Children []Clause
}

func NewNodeAttrMatch(index map[string]string) Clause {
	return Clause{Kind: NodeAttrMatch, Index: index}
}

func NewLinkAttrMatch(index map[string]string) Clause {
	return Clause{Kind: LinkAttrMatch, Index: index}
}

func NewNodeResourceMin(resource map[string]float64) Clause {
	return Clause{Kind: NodeResourceMin, Resource: resource}
}

func NewReplication(id string) Clause {
	return Clause{Kind: Replication, ReplicationID: id}
}

func NewComposite(children ...Clause) Clause {
	return Clause{Kind: Composite, Children: children}
}

// Flatten expands Composite clauses one level and drops Replication
// clauses, which are excluded from placement per the data model.
func Flatten(clauses []Clause) []Clause {
	out := make([]Clause, 0, len(clauses))

	for _, c := range clauses {
		switch c.Kind {
		case Replication:
			continue
		case Composite:
			out = append(out, c.Children...)
		default:
			out = append(out, c)
		}
	}

	return out
}

// CumulativeResourceDemand sums node_resource_min.cpu/ram across a set
// of clauses, the "cumulative resource demand" the resource pre-filter
// computes per actor (§4.4.2).
func CumulativeResourceDemand(clauses []Clause) map[string]float64 {
	demand := make(map[string]float64)

	for _, c := range Flatten(clauses) {
		if c.Kind != NodeResourceMin {
			continue
		}

		for k, v := range c.Resource {
			demand[k] += v
		}
	}

	return demand
}
