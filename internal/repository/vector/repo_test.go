package vector

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/materia-cloud/matdex/internal/db"
	"github.com/materia-cloud/matdex/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	knnResult    *db.SearchResult
	knnErr       error
	knnQuery     *db.KNNQuery
	textResult   *db.SearchResult
	textErr      error
	textQuery    *db.TextQuery
	textSupport  bool
	indexed      []db.HashSetItem
	createdIndex *db.IndexDefinition
	createErr    error
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.knnQuery = q
	return m.knnResult, m.knnErr
}

func (m *mockStore) SearchText(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	m.textQuery = q
	return m.textResult, m.textErr
}

func (m *mockStore) SupportsTextSearch(_ context.Context) bool { return m.textSupport }

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.indexed = append(m.indexed, items...)
	return nil
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.createdIndex = def
	return m.createErr
}

func hit(id string, score float64, materialType string) db.SearchEntry {
	return db.SearchEntry{
		Key:   keyPrefix + id,
		Score: score,
		Fields: map[string]string{
			fieldType:    materialType,
			fieldContent: "content of " + id,
		},
	}
}

func emb() domain.EmbeddingVector {
	return domain.NewEmbeddingVector([]float32{0.1, 0.2}, domain.MethodDense)
}

// --- Tests ---

func TestSearch_ThresholdExcludes(t *testing.T) {
	store := &mockStore{knnResult: &db.SearchResult{Entries: []db.SearchEntry{
		hit("m1", 0.9, "alloy"),
		hit("m2", 0.4, "alloy"),
	}}}
	repo := New(store, zap.NewNop())

	matches, err := repo.Search(context.Background(), emb(), "", nil, 10, 0.5, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(matches) != 1 || matches[0].Record.ID() != "m1" {
		t.Fatalf("matches = %+v, want only m1 above threshold", matches)
	}
}

func TestSearch_LexicalBlend(t *testing.T) {
	store := &mockStore{
		textSupport: true,
		knnResult: &db.SearchResult{Entries: []db.SearchEntry{
			hit("m1", 0.8, "alloy"),
			hit("m2", 0.6, "alloy"),
		}},
		textResult: &db.SearchResult{Entries: []db.SearchEntry{
			{Key: keyPrefix + "m2", Score: 4.0},
			{Key: keyPrefix + "m1", Score: 1.0},
		}},
	}
	repo := New(store, zap.NewNop())

	matches, err := repo.Search(context.Background(), emb(), "", nil, 10, 0, "steel", 0.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches count = %d, want 2", len(matches))
	}

	// m2: 0.7*0.6 + 0.3*1.0 = 0.72 beats m1: 0.7*0.8 + 0.3*0.25 = 0.635.
	if matches[0].Record.ID() != "m2" {
		t.Errorf("top match = %s, want m2 after lexical blend", matches[0].Record.ID())
	}
	if got := matches[0].Score; got < 0.719 || got > 0.721 {
		t.Errorf("m2 score = %g, want 0.72", got)
	}
	if matches[0].Cosine != 0.6 {
		t.Errorf("m2 cosine = %g, want the raw 0.6 preserved", matches[0].Cosine)
	}
}

func TestSearch_LexicalFailureDegradesToCosine(t *testing.T) {
	store := &mockStore{
		textSupport: true,
		textErr:     errors.New("ft down"),
		knnResult: &db.SearchResult{Entries: []db.SearchEntry{
			hit("m1", 0.8, "alloy"),
			hit("m2", 0.6, "alloy"),
		}},
	}
	repo := New(store, zap.NewNop())

	matches, err := repo.Search(context.Background(), emb(), "", nil, 10, 0, "steel", 0.7)
	if err != nil {
		t.Fatalf("lexical failure must not fail the search: %v", err)
	}
	if matches[0].Record.ID() != "m1" || matches[0].Score != 0.8 {
		t.Errorf("top match = %s/%g, want pure cosine m1/0.8", matches[0].Record.ID(), matches[0].Score)
	}
}

func TestSearch_FullDenseWeightSkipsLexical(t *testing.T) {
	store := &mockStore{
		textSupport: true,
		knnResult:   &db.SearchResult{Entries: []db.SearchEntry{hit("m1", 0.8, "alloy")}},
	}
	repo := New(store, zap.NewNop())

	if _, err := repo.Search(context.Background(), emb(), "", nil, 10, 0, "steel", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.textQuery != nil {
		t.Error("lexical search ran with denseWeight 1")
	}
}

func TestSearch_OutOfRangeScoreClamped(t *testing.T) {
	store := &mockStore{knnResult: &db.SearchResult{Entries: []db.SearchEntry{
		hit("m1", 1.7, "alloy"),
	}}}
	repo := New(store, zap.NewNop())

	matches, err := repo.Search(context.Background(), emb(), "", nil, 10, 0, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches[0].Score != 1 {
		t.Errorf("score = %g, want clamped to 1", matches[0].Score)
	}
}

func TestSearch_FiltersBecomeTags(t *testing.T) {
	store := &mockStore{knnResult: &db.SearchResult{}}
	repo := New(store, zap.NewNop())

	_, err := repo.Search(context.Background(), emb(), "alloy",
		map[string]string{"corrosion": "high", "base": "iron"}, 10, 0, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []db.TagCondition{
		{Field: fieldType, Value: "alloy"},
		{Field: fieldProps, Value: "base=iron"},
		{Field: fieldProps, Value: "corrosion=high"},
	}
	if !reflect.DeepEqual(store.knnQuery.Tags, want) {
		t.Errorf("tags = %+v, want %+v", store.knnQuery.Tags, want)
	}
}

func TestSearch_EmptyResultIsNil(t *testing.T) {
	repo := New(&mockStore{knnResult: &db.SearchResult{}}, zap.NewNop())

	matches, err := repo.Search(context.Background(), emb(), "", nil, 10, 0, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches != nil {
		t.Errorf("matches = %+v, want nil", matches)
	}
}

func TestSearch_ZeroEmbeddingRejected(t *testing.T) {
	repo := New(&mockStore{}, zap.NewNop())

	if _, err := repo.Search(context.Background(), domain.EmbeddingVector{}, "", nil, 10, 0, "", 1); err == nil {
		t.Fatal("expected error for zero embedding")
	}
}

func TestPropsRoundTrip(t *testing.T) {
	props := map[string]string{"corrosion": "high", "base": "iron"}

	encoded := encodeProps(props)
	if encoded != "base=iron,corrosion=high" {
		t.Errorf("encoded = %q, want key-sorted form", encoded)
	}
	if got := decodeProps(encoded); !reflect.DeepEqual(got, props) {
		t.Errorf("decoded = %+v, want %+v", got, props)
	}
	if decodeProps("") != nil {
		t.Error("empty props must decode to nil")
	}
}

func TestEnsureIndex_ExistsIsNotError(t *testing.T) {
	store := &mockStore{createErr: db.ErrIndexExists}
	repo := New(store, zap.NewNop())

	if err := repo.EnsureIndex(context.Background(), 4, 16, 200); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.createdIndex == nil || store.createdIndex.Name != indexName {
		t.Errorf("index definition = %+v", store.createdIndex)
	}
}
