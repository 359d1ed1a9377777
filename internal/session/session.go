// Package session owns per-conversation agent state. A Controller
// serializes sends for one conversation, keeps its bounded history,
// regenerates the system prompt before each run, republishes steps on
// the event bus, and archives completed runs. The Manager hands out one
// Controller per conversation ID.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Dizzy12138/bio-agent/internal/agent"
	"github.com/Dizzy12138/bio-agent/internal/events"
	"github.com/Dizzy12138/bio-agent/internal/history"
	"github.com/Dizzy12138/bio-agent/internal/kb"
	"github.com/Dizzy12138/bio-agent/internal/prompts"
	"github.com/Dizzy12138/bio-agent/internal/steps"
	"github.com/Dizzy12138/bio-agent/internal/tools"
)

// Manager creates and caches controllers by conversation ID.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Controller

	orch        *agent.Orchestrator
	registry    *tools.Registry
	store       *kb.Store // optional run archive
	bus         *events.Bus
	logger      *slog.Logger
	maxPairs    int
	contextNote string
}

// NewManager creates a session manager. store and bus may be nil;
// archiving and event publication are then skipped.
func NewManager(orch *agent.Orchestrator, registry *tools.Registry, store *kb.Store,
	bus *events.Bus, logger *slog.Logger, maxPairs int, contextNote string) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:    make(map[string]*Controller),
		orch:        orch,
		registry:    registry,
		store:       store,
		bus:         bus,
		logger:      logger,
		maxPairs:    maxPairs,
		contextNote: contextNote,
	}
}

// Get returns the controller for a conversation, creating it on first
// use. An empty ID maps to "default".
func (m *Manager) Get(conversationID string) *Controller {
	if conversationID == "" {
		conversationID = "default"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[conversationID]
	if !ok {
		c = &Controller{
			id:  conversationID,
			log: history.New(prompts.System(m.registry.Describe(), m.contextNote), m.maxPairs),
			mgr: m,
		}
		m.sessions[conversationID] = c
	}
	return c
}

// Controller drives one conversation. All sends for the conversation
// go through its mutex, so two runs never mutate the same history
// concurrently. The single-writer-per-conversation rule is enforced
// here, not in the loop.
type Controller struct {
	mu  sync.Mutex
	id  string
	log *history.Log
	mgr *Manager
}

// Send executes one turn: regenerate the system prompt, run the agent,
// append the completed turn, archive the transcript. It never returns
// nil; every outcome is encoded in the Result.
func (c *Controller) Send(ctx context.Context, userMessage string) *agent.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.mgr
	runID := uuid.NewString()

	// The catalog or context note may have changed since the last turn;
	// the system prompt is regenerated on every send and always lands
	// at index 0 without disturbing the rest of the history.
	c.log.RebuildSystemPrompt(prompts.System(m.registry.Describe(), m.contextNote))

	m.bus.Publish(events.Event{
		Source: events.SourceSession,
		Kind:   events.KindRunStart,
		Data: map[string]any{
			"conversation_id": c.id,
			"run_id":          runID,
			"message_len":     len(userMessage),
		},
	})

	res := m.orch.Execute(ctx, agent.Request{
		ConversationID: c.id,
		UserMessage:    userMessage,
		History:        c.log.Messages(),
	}, agent.Callbacks{
		OnStep: func(s steps.Step) {
			m.bus.Publish(events.Event{
				Source: events.SourceAgent,
				Kind:   events.KindStep,
				Step:   &s,
				Data:   map[string]any{"conversation_id": c.id, "run_id": runID},
			})
		},
		OnError: func(err error) {
			m.logger.Error("agent run failed", "conversation", c.id, "run_id", runID, "error", err)
		},
	})

	// A failed or cancelled run produced no real assistant turn; the
	// conversation stays as it was so the user can simply retry.
	if !res.Failed && !res.Cancelled {
		c.log.AppendTurn(userMessage, res.Response)
	}

	c.archive(ctx, runID, userMessage, res)

	m.bus.Publish(events.Event{
		Source: events.SourceSession,
		Kind:   events.KindRunComplete,
		Data: map[string]any{
			"conversation_id": c.id,
			"run_id":          runID,
			"elapsed_ms":      res.TotalDuration.Milliseconds(),
			"cancelled":       res.Cancelled,
			"exhausted":       res.Exhausted,
			"failed":          res.Failed,
		},
	})

	return res
}

// History returns a copy of the conversation transcript.
func (c *Controller) History() []history.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Messages()
}

func (c *Controller) archive(ctx context.Context, runID, question string, res *agent.Result) {
	m := c.mgr
	if m.store == nil {
		return
	}
	stepsJSON, err := json.Marshal(res.Steps)
	if err != nil {
		m.logger.Warn("failed to encode run steps", "run_id", runID, "error", err)
		stepsJSON = []byte("[]")
	}
	id, _ := uuid.Parse(runID)
	if err := m.store.ArchiveRun(ctx, kb.RunRecord{
		ID:             id,
		ConversationID: c.id,
		Question:       question,
		Response:       res.Response,
		StepsJSON:      string(stepsJSON),
		DurationMs:     res.TotalDuration.Milliseconds(),
		Outcome:        outcome(res),
	}); err != nil {
		m.logger.Warn("failed to archive run", "run_id", runID, "error", err)
	}
}

func outcome(res *agent.Result) string {
	switch {
	case res.Failed:
		return "failed"
	case res.Cancelled:
		return "cancelled"
	case res.Exhausted:
		return "exhausted"
	default:
		return "ok"
	}
}
