package knowledge

import "testing"

func TestNewEdge_Validation(t *testing.T) {
	a := Property{Name: "density", Value: "high"}
	b := Property{Name: "hardness", Value: "9"}

	if _, err := NewEdge(Property{}, b, 0.5, Symmetric); err == nil {
		t.Error("expected error for empty from name")
	}
	if _, err := NewEdge(a, b, 1.5, Symmetric); err == nil {
		t.Error("expected error for strength > 1")
	}
	if _, err := NewEdge(a, b, -0.1, Symmetric); err == nil {
		t.Error("expected error for negative strength")
	}
	if _, err := NewEdge(a, b, 0.5, "sideways"); err == nil {
		t.Error("expected error for unknown directionality")
	}
	if _, err := NewEdge(a, b, 0.5, Asymmetric); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEdge_Links(t *testing.T) {
	a := Property{Name: "density", Value: "high"}
	b := Property{Name: "hardness", Value: "9"}
	c := Property{Name: "color", Value: "grey"}

	sym, _ := NewEdge(a, b, 0.8, Symmetric)
	asym, _ := NewEdge(a, b, 0.8, Asymmetric)

	if !sym.Links(a, b) || !sym.Links(b, a) {
		t.Error("symmetric edge must link both directions")
	}
	if !asym.Links(a, b) {
		t.Error("asymmetric edge must link from->to")
	}
	if asym.Links(b, a) {
		t.Error("asymmetric edge must not link to->from")
	}
	if sym.Links(a, c) {
		t.Error("edge must not link unrelated properties")
	}
}

func TestNewEntry_Validation(t *testing.T) {
	if _, err := NewEntry("", "m1", "text", 0.5); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := NewEntry("e1", "", "text", 0.5); err == nil {
		t.Error("expected error for empty material id")
	}
	if _, err := NewEntry("e1", "m1", "text", 1.2); err == nil {
		t.Error("expected error for confidence > 1")
	}

	e, err := NewEntry("e1", "m1", "text", 0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID() != "e1" || e.SubjectMaterialID() != "m1" || e.Confidence() != 0.9 {
		t.Errorf("unexpected entry: %+v", e)
	}
}
