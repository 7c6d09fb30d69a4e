package knowledge

import "fmt"

// Entry is a knowledge base fact about a material.
// SubjectMaterialID is a weak reference: the store resolves it back to the
// material through an explicit index, and drops entries whose reference dangles.
type Entry struct {
	id                string
	subjectMaterialID string
	content           string
	confidence        float64
}

// NewEntry validates and creates a knowledge entry.
// Confidence outside [0,1] is rejected here; stored entries with drifted
// confidence are clamped by the repository instead.
func NewEntry(id, subjectMaterialID, content string, confidence float64) (Entry, error) {
	if id == "" {
		return Entry{}, fmt.Errorf("entry id is required")
	}
	if subjectMaterialID == "" {
		return Entry{}, fmt.Errorf("subject material id is required")
	}
	if confidence < 0 || confidence > 1 {
		return Entry{}, fmt.Errorf("confidence must be in [0,1], got %g", confidence)
	}
	return Reconstruct(id, subjectMaterialID, content, confidence), nil
}

// Reconstruct rebuilds an entry from stored fields without validation.
func Reconstruct(id, subjectMaterialID, content string, confidence float64) Entry {
	return Entry{id: id, subjectMaterialID: subjectMaterialID, content: content, confidence: confidence}
}

// ID returns the entry identifier.
func (e *Entry) ID() string { return e.id }

// SubjectMaterialID returns the referenced material id.
func (e *Entry) SubjectMaterialID() string { return e.subjectMaterialID }

// Content returns the entry text.
func (e *Entry) Content() string { return e.content }

// Confidence returns the entry confidence in [0,1].
func (e *Entry) Confidence() float64 { return e.confidence }
