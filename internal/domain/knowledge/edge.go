package knowledge

import "fmt"

// Directionality says whether a relationship edge can be followed both ways.
type Directionality string

// Edge directionality constants.
const (
	Symmetric  Directionality = "symmetric"
	Asymmetric Directionality = "asymmetric"
)

// Property is one endpoint of a relationship edge: a (name, value) pair.
type Property struct {
	Name  string
	Value string
}

// Edge links two material properties with a strength in [0,1].
// Edges are read-time expansion data only; this engine never creates them.
type Edge struct {
	from           Property
	to             Property
	strength       float64
	directionality Directionality
}

// NewEdge validates and creates a relationship edge.
func NewEdge(from, to Property, strength float64, d Directionality) (Edge, error) {
	if from.Name == "" || to.Name == "" {
		return Edge{}, fmt.Errorf("edge endpoints require property names")
	}
	if strength < 0 || strength > 1 {
		return Edge{}, fmt.Errorf("edge strength must be in [0,1], got %g", strength)
	}
	if d != Symmetric && d != Asymmetric {
		return Edge{}, fmt.Errorf("invalid directionality %q", d)
	}
	return ReconstructEdge(from, to, strength, d), nil
}

// ReconstructEdge rebuilds an edge from stored fields without validation.
func ReconstructEdge(from, to Property, strength float64, d Directionality) Edge {
	return Edge{from: from, to: to, strength: strength, directionality: d}
}

// From returns the source endpoint.
func (e *Edge) From() Property { return e.from }

// To returns the target endpoint.
func (e *Edge) To() Property { return e.to }

// Strength returns the edge strength in [0,1].
func (e *Edge) Strength() float64 { return e.strength }

// Directionality returns whether the edge is symmetric.
func (e *Edge) Directionality() Directionality { return e.directionality }

// Links reports whether the edge connects property (name, value) pairs a and b,
// honoring directionality: asymmetric edges only link from→to.
func (e *Edge) Links(a, b Property) bool {
	if e.from == a && e.to == b {
		return true
	}
	if e.directionality == Symmetric && e.from == b && e.to == a {
		return true
	}
	return false
}
