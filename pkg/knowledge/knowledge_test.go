package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/solutionstwo/voicebridge/pkg/kv"
)

// fakeEmbedder maps known phrases to fixed vectors and counts calls, so
// tests can both steer similarity and assert that reopening a store does
// not re-embed.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	for phrase, vec := range f.vectors {
		if strings.Contains(text, phrase) {
			return vec, nil
		}
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func newTestEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"Haircut": {1, 0, 0},
		"haircut": {0.9, 0.1, 0},
		"Massage": {0, 1, 0},
		"Shampoo": {0.5, 0.5, 0},
	}}
}

func TestAddAndRetrieve(t *testing.T) {
	ctx := t.Context()
	store, err := Open(ctx, kv.NewMemory(), newTestEmbedder())
	if err != nil {
		t.Fatal(err)
	}

	for _, doc := range []Document{
		{Name: "Haircut", Description: "Classic cut and style", Price: "$40"},
		{Name: "Massage", Description: "Deep tissue massage", Price: "$90"},
	} {
		if _, err := store.AddDocument(ctx, CategoryServices, doc); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.RetrieveSimilar(ctx, "how much is a haircut", CategoryServices, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := "Name: Haircut, Description: Classic cut and style, Price: $40"
	if got != want {
		t.Errorf("RetrieveSimilar = %q, want %q", got, want)
	}
}

func TestRetrieveEmptyCategory(t *testing.T) {
	ctx := t.Context()
	store, err := Open(ctx, kv.NewMemory(), newTestEmbedder())
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.RetrieveSimilar(ctx, "anything", CategoryProducts, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got != "No matching records found." {
		t.Errorf("RetrieveSimilar = %q", got)
	}
}

func TestUnknownCategory(t *testing.T) {
	ctx := t.Context()
	store, err := Open(ctx, kv.NewMemory(), newTestEmbedder())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.AddDocument(ctx, "recipes", Document{Name: "X"}); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("AddDocument error = %v, want ErrUnknownCategory", err)
	}
	if _, err := store.RetrieveSimilar(ctx, "q", "recipes", 1); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("RetrieveSimilar error = %v, want ErrUnknownCategory", err)
	}
}

func TestAddReplacesByID(t *testing.T) {
	ctx := t.Context()
	store, err := Open(ctx, kv.NewMemory(), newTestEmbedder())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.AddDocument(ctx, CategoryServices, Document{ID: "svc1", Name: "Haircut", Price: "$40"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddDocument(ctx, CategoryServices, Document{ID: "svc1", Name: "Haircut", Price: "$45"}); err != nil {
		t.Fatal(err)
	}

	if got := store.Len(CategoryServices); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
	text, err := store.RetrieveSimilar(ctx, "haircut", CategoryServices, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "$45") || strings.Contains(text, "$40") {
		t.Errorf("replaced document not returned: %q", text)
	}
}

func TestReopenDoesNotReEmbed(t *testing.T) {
	ctx := t.Context()
	backing := kv.NewMemory()

	emb := newTestEmbedder()
	store, err := Open(ctx, backing, emb)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddDocument(ctx, CategoryProducts, Document{Name: "Shampoo", Description: "Sulfate free", Price: "$12", Type: "haircare"}); err != nil {
		t.Fatal(err)
	}
	callsAfterAdd := emb.calls

	reopened, err := Open(ctx, backing, emb)
	if err != nil {
		t.Fatal(err)
	}
	if emb.calls != callsAfterAdd {
		t.Errorf("reopen embedded %d more times", emb.calls-callsAfterAdd)
	}
	if got := reopened.Len(CategoryProducts); got != 1 {
		t.Errorf("reopened Len = %d, want 1", got)
	}

	// Retrieval embeds only the query.
	if _, err := reopened.RetrieveSimilar(ctx, "Shampoo", CategoryProducts, 1); err != nil {
		t.Fatal(err)
	}
	if emb.calls != callsAfterAdd+1 {
		t.Errorf("retrieve embedded %d times, want 1", emb.calls-callsAfterAdd)
	}
}
