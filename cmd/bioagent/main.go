// Bioagent is the agent execution engine behind the biomedical research
// assistant. It answers domain questions by driving an LLM through a
// reason/act/observe loop over the registered data-retrieval tools.
//
// Usage:
//
//	bioagent serve              Start the API server
//	bioagent ask <question>     Ask a single question (for testing)
//	bioagent ingest <file.md>   Import a markdown document into the knowledge base
//	bioagent init               Write an example config.yaml
//	bioagent version            Print version information
//
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]) or given with
// -config <path>.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Dizzy12138/bio-agent/examples"
	"github.com/Dizzy12138/bio-agent/internal/agent"
	"github.com/Dizzy12138/bio-agent/internal/api"
	"github.com/Dizzy12138/bio-agent/internal/biotools"
	"github.com/Dizzy12138/bio-agent/internal/buildinfo"
	"github.com/Dizzy12138/bio-agent/internal/config"
	"github.com/Dizzy12138/bio-agent/internal/events"
	"github.com/Dizzy12138/bio-agent/internal/fetch"
	"github.com/Dizzy12138/bio-agent/internal/ingest"
	"github.com/Dizzy12138/bio-agent/internal/kb"
	"github.com/Dizzy12138/bio-agent/internal/llm"
	"github.com/Dizzy12138/bio-agent/internal/session"
	"github.com/Dizzy12138/bio-agent/internal/steps"
	"github.com/Dizzy12138/bio-agent/internal/tools"
)

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. OS-level dependencies (context, stdio,
// argv) are injected so the full lifecycle is drivable from tests. We
// parse arguments by hand: the flag package's package-level state gets
// in the way of parallel tests, and the surface is tiny.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config":
			if i+1 >= len(args) {
				return fmt.Errorf("-config requires a path")
			}
			i++
			configPath = args[i]
		default:
			if command == "" {
				command = args[i]
			} else {
				cmdArgs = append(cmdArgs, args[i])
			}
		}
	}

	if command == "" || command == "help" {
		printUsage(stdout)
		return nil
	}
	if command == "version" {
		fmt.Fprintf(stdout, "%s %s\n", buildinfo.Name, buildinfo.Version)
		return nil
	}
	if command == "init" {
		return initConfig(stdout, ".")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)

	switch command {
	case "serve":
		return serve(ctx, cfg, logger)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: bioagent ask <question>")
		}
		return ask(ctx, cfg, logger, stdout, strings.Join(cmdArgs, " "))
	case "ingest":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: bioagent ingest <file.md>")
		}
		return runIngest(ctx, cfg, logger, stdout, cmdArgs[0])
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", command)
	}
}

// initConfig writes the example configuration to dir/config.yaml. It
// refuses to overwrite an existing file.
func initConfig(stdout io.Writer, dir string) error {
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}
	if err := os.WriteFile(path, examples.ConfigYAML, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		// No file anywhere: run on defaults. An explicit path that is
		// missing is still an error (FindConfig already reported it).
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	return config.Load(path)
}

// engine bundles the wired core components.
type engine struct {
	store    *kb.Store
	registry *tools.Registry
	bus      *events.Bus
	sessions *session.Manager
}

// buildEngine wires the store, tools, LLM client, orchestrator, and
// session manager from configuration.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := kb.Open(filepath.Join(cfg.DataDir, "knowledge.db"))
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}

	registry := tools.NewRegistry(logger, time.Duration(cfg.Agent.ToolTimeoutSec)*time.Second)
	biotools.Register(registry, store, fetch.NewClient(logger), logger)

	client := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, logger)
	orch := agent.New(logger, client, registry, agent.Config{
		MaxIterations:    cfg.Agent.MaxIterations,
		ObservationLimit: cfg.Agent.ObservationLimit,
	})

	bus := events.New()
	sessions := session.NewManager(orch, registry, store, bus, logger,
		cfg.Agent.MaxHistoryPairs, cfg.ContextNote)

	return &engine{store: store, registry: registry, bus: bus, sessions: sessions}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.store.Close()

	logger.Info("bioagent starting",
		"version", buildinfo.Version,
		"model", cfg.LLM.Model,
		"tools", eng.registry.Names(),
	)

	srv := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, eng.sessions, eng.bus, logger)
	return srv.Start(ctx)
}

func ask(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer, question string) error {
	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.store.Close()

	ctrl := eng.sessions.Get("cli")
	res := ctrl.Send(ctx, question)

	for _, s := range res.Steps {
		if s.Type == steps.TypeDone {
			continue
		}
		fmt.Fprintf(stdout, "[%s] %s\n", s.Type, s.Content)
	}
	fmt.Fprintf(stdout, "\n%s\n", res.Response)
	return nil
}

func runIngest(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer, path string) error {
	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.store.Close()

	n, err := ingest.NewImporter(eng.store, logger).ImportFile(ctx, path)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "imported %d section(s) from %s\n", n, path)
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `bioagent: agent execution engine for the biomedical research assistant

Usage:
  bioagent [-config <path>] serve              Start the API server
  bioagent [-config <path>] ask <question>     Ask a single question
  bioagent [-config <path>] ingest <file.md>   Import a markdown document
  bioagent init                                Write an example config.yaml
  bioagent version                             Print version information
`)
}
