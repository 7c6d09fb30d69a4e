package material

import "fmt"

// Record is a searchable material.
// The embedding itself lives in the vector store; Record references it by id.
type Record struct {
	id           string
	materialType string
	content      string
	properties   map[string]string
}

// New validates and creates a material record.
func New(id, materialType, content string, properties map[string]string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("material id is required")
	}
	return Reconstruct(id, materialType, content, properties), nil
}

// Reconstruct rebuilds a record from stored fields without validation.
func Reconstruct(id, materialType, content string, properties map[string]string) Record {
	return Record{id: id, materialType: materialType, content: content, properties: properties}
}

// ID returns the material identifier.
func (r *Record) ID() string { return r.id }

// MaterialType returns the material type tag.
func (r *Record) MaterialType() string { return r.materialType }

// Content returns the material content snippet.
func (r *Record) Content() string { return r.content }

// Properties returns the material's property key/value pairs.
func (r *Record) Properties() map[string]string { return r.properties }

// Match is a vector search hit: a record with its rescaled similarity
// and the raw cosine kept for tie-breaking.
type Match struct {
	Record Record
	Score  float64
	Cosine float64
}
