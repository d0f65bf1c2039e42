package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeEmbeddings serves an OpenAI-shaped embeddings endpoint returning a
// distinct vector per input.
func fakeEmbeddings(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i := range req.Input {
			resp.Data = append(resp.Data, item{Index: i, Embedding: []float64{float64(i), 1}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIEmbed(t *testing.T) {
	srv := fakeEmbeddings(t)
	defer srv.Close()

	e := NewOpenAI("test-key", WithBaseURL(srv.URL), WithDimension(2))
	if e.Dimension() != 2 {
		t.Fatalf("Dimension = %d, want 2", e.Dimension())
	}

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 2 || vec[0] != 0 || vec[1] != 1 {
		t.Errorf("Embed = %v, want [0 1]", vec)
	}
}

func TestOpenAIEmbedBatch(t *testing.T) {
	srv := fakeEmbeddings(t)
	defer srv.Close()

	e := NewOpenAI("test-key", WithBaseURL(srv.URL))
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	if vecs[2][0] != 2 {
		t.Errorf("vecs[2][0] = %v, want 2", vecs[2][0])
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	e := NewOpenAI("test-key")
	if _, err := e.Embed(context.Background(), ""); err != ErrEmptyInput {
		t.Errorf("Embed(\"\") = %v, want ErrEmptyInput", err)
	}
	if _, err := e.EmbedBatch(context.Background(), nil); err != ErrEmptyInput {
		t.Errorf("EmbedBatch(nil) = %v, want ErrEmptyInput", err)
	}
}
