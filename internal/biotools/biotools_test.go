package biotools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Dizzy12138/bio-agent/internal/fetch"
	"github.com/Dizzy12138/bio-agent/internal/kb"
	"github.com/Dizzy12138/bio-agent/internal/tools"
)

func newTestSetup(t *testing.T) (*tools.Registry, *kb.Store) {
	t.Helper()
	store, err := kb.Open(filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatalf("kb.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := tools.NewRegistry(nil, 5*time.Second)
	Register(reg, store, nil, nil)
	return reg, store
}

func TestRegisterCatalog(t *testing.T) {
	reg, _ := newTestSetup(t)
	names := reg.Names()
	want := []string{"query_micro_features", "search_knowledge", "list_experts"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("names[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestRegisterWithFetcher(t *testing.T) {
	store, err := kb.Open(filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatalf("kb.Open: %v", err)
	}
	defer store.Close()

	reg := tools.NewRegistry(nil, 5*time.Second)
	Register(reg, store, fetch.NewClient(nil), nil)
	if reg.Get("fetch_literature") == nil {
		t.Error("fetch_literature not registered when a fetcher is provided")
	}
}

// Empty datasets must come back as successful observations, never as
// errors: the model needs to read "nothing found" and move on.
func TestEmptyDatasetsAreSuccesses(t *testing.T) {
	reg, _ := newTestSetup(t)
	ctx := context.Background()

	cases := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"query_micro_features", map[string]any{"oxygen": "anaerobic"}, "No microbe records matched"},
		{"search_knowledge", map[string]any{"query": "CRISPR"}, `No knowledge sections matched "CRISPR"`},
		{"list_experts", nil, "No experts are registered yet."},
		{"list_experts", map[string]any{"field": "virology"}, `No experts found for field "virology"`},
	}
	for _, tc := range cases {
		res := reg.Execute(ctx, tc.tool, tc.args)
		if !res.Success {
			t.Errorf("%s: empty dataset reported as error: %q", tc.tool, res.Error)
			continue
		}
		if !strings.Contains(res.Output, tc.want) {
			t.Errorf("%s: output = %q, want substring %q", tc.tool, res.Output, tc.want)
		}
	}
}

func TestQueryMicroFeaturesFormatting(t *testing.T) {
	reg, store := newTestSetup(t)
	ctx := context.Background()

	if _, err := store.AddMicrobe(ctx, kb.Microbe{
		Name: "Clostridium botulinum", Oxygen: "anaerobic", GramStain: "positive", Habitat: "soil",
	}); err != nil {
		t.Fatalf("AddMicrobe: %v", err)
	}

	// Oxygen filters are case-normalized before the query.
	res := reg.Execute(ctx, "query_micro_features", map[string]any{"oxygen": "Anaerobic"})
	if !res.Success {
		t.Fatalf("execute failed: %q", res.Error)
	}
	for _, want := range []string{"Found 1 microbe record(s)", "Clostridium botulinum", "oxygen=anaerobic", "gram=positive", "habitat=soil"} {
		if !strings.Contains(res.Output, want) {
			t.Errorf("output missing %q:\n%s", want, res.Output)
		}
	}
}

func TestSearchKnowledgeFormatting(t *testing.T) {
	reg, store := newTestSetup(t)
	ctx := context.Background()

	docs := []kb.Document{{Section: "PCR Protocol", Content: "Run 35 cycles."}}
	if err := store.ReplaceDocuments(ctx, "protocols.md", docs); err != nil {
		t.Fatalf("ReplaceDocuments: %v", err)
	}

	res := reg.Execute(ctx, "search_knowledge", map[string]any{"query": "PCR"})
	if !res.Success {
		t.Fatalf("execute failed: %q", res.Error)
	}
	if !strings.Contains(res.Output, "## PCR Protocol (protocols.md)") || !strings.Contains(res.Output, "Run 35 cycles.") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestSearchKnowledgeRequiresQuery(t *testing.T) {
	reg, _ := newTestSetup(t)
	res := reg.Execute(context.Background(), "search_knowledge", nil)
	if res.Success {
		t.Fatal("missing query accepted")
	}
	if !strings.Contains(res.Error, "query is required") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestListExpertsFormatting(t *testing.T) {
	reg, store := newTestSetup(t)
	ctx := context.Background()

	if _, err := store.AddExpert(ctx, kb.Expert{
		Name: "Zhang Wei", Field: "microbial genomics", Affiliation: "Institute A",
	}); err != nil {
		t.Fatalf("AddExpert: %v", err)
	}

	res := reg.Execute(ctx, "list_experts", map[string]any{"field": "genomics"})
	if !res.Success {
		t.Fatalf("execute failed: %q", res.Error)
	}
	if !strings.Contains(res.Output, "Zhang Wei (microbial genomics, Institute A)") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestLimitArgumentIsFloat64(t *testing.T) {
	reg, store := newTestSetup(t)
	ctx := context.Background()

	for _, name := range []string{"Microbe A", "Microbe B", "Microbe C"} {
		if _, err := store.AddMicrobe(ctx, kb.Microbe{Name: name, Oxygen: "aerobic"}); err != nil {
			t.Fatalf("AddMicrobe: %v", err)
		}
	}

	// JSON-decoded arguments carry numbers as float64.
	res := reg.Execute(ctx, "query_micro_features", map[string]any{"limit": float64(2)})
	if !res.Success {
		t.Fatalf("execute failed: %q", res.Error)
	}
	if !strings.Contains(res.Output, "Found 2 microbe record(s)") {
		t.Errorf("limit ignored:\n%s", res.Output)
	}
}

func TestFetchLiterature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Gut Microbiome Review</title></head><body><p>Microbes matter.</p></body></html>`))
	}))
	defer srv.Close()

	store, err := kb.Open(filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatalf("kb.Open: %v", err)
	}
	defer store.Close()

	reg := tools.NewRegistry(nil, 5*time.Second)
	Register(reg, store, fetch.NewClient(nil), nil)

	res := reg.Execute(context.Background(), "fetch_literature", map[string]any{"url": srv.URL})
	if !res.Success {
		t.Fatalf("execute failed: %q", res.Error)
	}
	if !strings.Contains(res.Output, "# Gut Microbiome Review") || !strings.Contains(res.Output, "Microbes matter.") {
		t.Errorf("output = %q", res.Output)
	}
}
