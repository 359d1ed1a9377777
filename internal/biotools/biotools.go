// Package biotools registers the biomedical data-retrieval tools the
// agent may invoke. Each handler translates a backend response into
// plain text for the model to observe. An empty dataset is reported as
// a readable "no records" message with success; only transport and
// parse failures count as errors.
package biotools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dizzy12138/bio-agent/internal/fetch"
	"github.com/Dizzy12138/bio-agent/internal/kb"
	"github.com/Dizzy12138/bio-agent/internal/tools"
)

// Register adds the domain tools to the registry. store must be
// non-nil; fetcher may be nil, in which case fetch_literature is not
// registered.
func Register(reg *tools.Registry, store *kb.Store, fetcher *fetch.Client, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	reg.Register(&tools.Tool{
		Name: "query_micro_features",
		Description: "Query the microbial feature database. Filter by name, oxygen requirement " +
			"(aerobic, anaerobic, facultative), or habitat. Use this for any question about " +
			"specific microbes or their growth characteristics.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Substring of the microbe name (e.g. 'coli').",
				},
				"oxygen": map[string]any{
					"type":        "string",
					"description": "Oxygen requirement: aerobic, anaerobic, or facultative.",
				},
				"habitat": map[string]any{
					"type":        "string",
					"description": "Substring of the habitat (e.g. 'soil', 'gut').",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum records to return (default 20).",
				},
			},
		},
		Handler: queryMicroFeatures(store),
	})

	reg.Register(&tools.Tool{
		Name: "search_knowledge",
		Description: "Search the curated knowledge documents (protocols, reviews, internal notes) " +
			"by keyword. Returns matching sections with their source document.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Keyword or phrase to search for.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum sections to return (default 10).",
				},
			},
			"required": []string{"query"},
		},
		Handler: searchKnowledge(store),
	})

	reg.Register(&tools.Tool{
		Name: "list_experts",
		Description: "List domain experts, optionally filtered by research field. Use this when " +
			"the user asks who to contact or who works on a topic.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"field": map[string]any{
					"type":        "string",
					"description": "Substring of the research field (e.g. 'genomics').",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum experts to return (default 20).",
				},
			},
		},
		Handler: listExperts(store),
	})

	if fetcher != nil {
		reg.Register(&tools.Tool{
			Name: "fetch_literature",
			Description: "Fetch a web page (paper abstract, database entry) and return its readable " +
				"text. Use only for http/https URLs the user or a prior observation provided.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "The http(s) URL to fetch.",
					},
				},
				"required": []string{"url"},
			},
			Handler: fetchLiterature(fetcher),
		})
	}
}

func queryMicroFeatures(store *kb.Store) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		filter := kb.MicrobeFilter{
			Name:    stringArg(args, "name"),
			Oxygen:  strings.ToLower(stringArg(args, "oxygen")),
			Habitat: stringArg(args, "habitat"),
			Limit:   intArg(args, "limit"),
		}
		records, err := store.QueryMicrobes(ctx, filter)
		if err != nil {
			return "", fmt.Errorf("query_micro_features: %w", err)
		}
		if len(records) == 0 {
			return "No microbe records matched the given criteria.", nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d microbe record(s):\n", len(records))
		for _, m := range records {
			fmt.Fprintf(&b, "- %s: oxygen=%s", m.Name, m.Oxygen)
			if m.GramStain != "" {
				fmt.Fprintf(&b, ", gram=%s", m.GramStain)
			}
			if m.Habitat != "" {
				fmt.Fprintf(&b, ", habitat=%s", m.Habitat)
			}
			if m.Description != "" {
				fmt.Fprintf(&b, ": %s", m.Description)
			}
			b.WriteByte('\n')
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}

func searchKnowledge(store *kb.Store) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query := stringArg(args, "query")
		if query == "" {
			return "", fmt.Errorf("search_knowledge: query is required")
		}
		docs, err := store.SearchDocuments(ctx, query, intArg(args, "limit"))
		if err != nil {
			return "", fmt.Errorf("search_knowledge: %w", err)
		}
		if len(docs) == 0 {
			return fmt.Sprintf("No knowledge sections matched %q.", query), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d matching section(s):\n", len(docs))
		for _, d := range docs {
			fmt.Fprintf(&b, "## %s (%s)\n%s\n", d.Section, d.Source, d.Content)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}

func listExperts(store *kb.Store) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		field := stringArg(args, "field")
		experts, err := store.ListExperts(ctx, field, intArg(args, "limit"))
		if err != nil {
			return "", fmt.Errorf("list_experts: %w", err)
		}
		if len(experts) == 0 {
			if field == "" {
				return "No experts are registered yet.", nil
			}
			return fmt.Sprintf("No experts found for field %q.", field), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d expert(s):\n", len(experts))
		for _, e := range experts {
			fmt.Fprintf(&b, "- %s (%s", e.Name, e.Field)
			if e.Affiliation != "" {
				fmt.Fprintf(&b, ", %s", e.Affiliation)
			}
			b.WriteString(")\n")
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}

func fetchLiterature(fetcher *fetch.Client) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		rawURL := stringArg(args, "url")
		if rawURL == "" {
			return "", fmt.Errorf("fetch_literature: url is required")
		}
		page, err := fetcher.Fetch(ctx, rawURL)
		if err != nil {
			return "", fmt.Errorf("fetch_literature: %w", err)
		}
		if page.Text == "" {
			return fmt.Sprintf("The page at %s contained no readable text.", page.URL), nil
		}
		if page.Title != "" {
			return fmt.Sprintf("# %s\n\n%s", page.Title, page.Text), nil
		}
		return page.Text, nil
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// intArg reads a numeric argument. JSON numbers decode as float64.
func intArg(args map[string]any, key string) int {
	if f, ok := args[key].(float64); ok {
		return int(f)
	}
	return 0
}
