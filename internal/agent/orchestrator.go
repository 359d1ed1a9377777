// Package agent implements the core agent execution loop.
//
// The Orchestrator drives one reason/act/observe cycle per request:
// the model produces rationale and either a final answer or a tool
// call; tool output is fed back as an observation; the cycle repeats
// until the model answers or the iteration budget runs out. Every
// intermediate step is streamed to the caller's observer and returned
// in the final Result; the stream and the batch never disagree.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dizzy12138/bio-agent/internal/history"
	"github.com/Dizzy12138/bio-agent/internal/llm"
	"github.com/Dizzy12138/bio-agent/internal/prompts"
	"github.com/Dizzy12138/bio-agent/internal/steps"
	"github.com/Dizzy12138/bio-agent/internal/tools"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxIterations    = 6
	DefaultObservationLimit = 4000
)

// fallbackResponse is returned when the model call itself fails. Tool
// failures never trigger it; they are fed back as observations instead.
const fallbackResponse = "I ran into a problem reaching the language model and cannot answer right now. Please try again in a moment."

// Config tunes one Orchestrator. The zero value selects all defaults.
type Config struct {
	// MaxIterations caps reasoning cycles per run. When the cap is hit
	// the run terminates with a best-effort answer, not an error.
	MaxIterations int

	// ObservationLimit bounds the length (in runes) of tool output fed
	// back to the model as an observation.
	ObservationLimit int
}

// Request carries the input for one run.
type Request struct {
	// ConversationID identifies the owning conversation, for logging
	// and event correlation only.
	ConversationID string

	// UserMessage is the question to answer. Must be non-empty.
	UserMessage string

	// History is the prior transcript. It must begin with a system
	// message or be empty; when empty the orchestrator synthesizes a
	// system prompt from the tool catalog.
	History []history.Message
}

// Callbacks receive progress during a run. Either field may be nil.
type Callbacks struct {
	// OnStep fires synchronously, once per step, in generation order,
	// before the corresponding state transition completes.
	OnStep steps.Observer

	// OnError fires at most once, only for a fatal model-call failure.
	OnError func(error)
}

// Result is the terminal outcome of a run. Every outcome (success,
// tool failure, model failure, budget exhaustion, cancellation) is
// encoded here; Execute never panics or requires recovery by the
// caller. The caller owns the Result; the orchestrator keeps no
// reference to it.
type Result struct {
	// Response is the final answer text (or a fallback/summary).
	Response string `json:"response"`

	// Steps is the ordered concatenation of every step the run
	// emitted, identical to the OnStep stream.
	Steps []steps.Step `json:"thinking_steps"`

	// TotalDuration covers the whole run, wall clock.
	TotalDuration time.Duration `json:"-"`

	// Terminal-outcome tags.
	Cancelled bool `json:"cancelled,omitempty"`
	Exhausted bool `json:"exhausted,omitempty"`
	Failed    bool `json:"failed,omitempty"`

	// Token usage summed over all model calls in the run.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Orchestrator executes runs. It is stateless between runs: the same
// instance may serve many sequential requests, and distinct instances
// may run concurrently against the shared (read-only) registry.
type Orchestrator struct {
	logger   *slog.Logger
	client   llm.Client
	registry *tools.Registry
	cfg      Config
}

// New creates an orchestrator. cfg fields left zero select defaults.
func New(logger *slog.Logger, client llm.Client, registry *tools.Registry, cfg Config) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.ObservationLimit <= 0 {
		cfg.ObservationLimit = DefaultObservationLimit
	}
	return &Orchestrator{
		logger:   logger,
		client:   client,
		registry: registry,
		cfg:      cfg,
	}
}

// Execute runs the reason/act/observe loop to completion. It never
// returns an error: every failure mode is encoded in the Result and
// the step stream. Cancelling ctx stops the loop after the in-flight
// model or tool call settles; no new iteration begins.
func (o *Orchestrator) Execute(ctx context.Context, req Request, cb Callbacks) *Result {
	start := time.Now()
	em := steps.NewEmitter(cb.OnStep)

	result := func(response string) *Result {
		return &Result{
			Response:      response,
			Steps:         em.Steps(),
			TotalDuration: time.Since(start),
		}
	}

	if strings.TrimSpace(req.UserMessage) == "" {
		em.Emit(steps.Step{Type: steps.TypeError, Content: "empty user message"})
		r := result(fallbackResponse)
		r.Failed = true
		if cb.OnError != nil {
			cb.OnError(errors.New("agent: empty user message"))
		}
		return r
	}

	msgs := o.assembleMessages(req)

	o.logger.Info("agent run started",
		"conversation", req.ConversationID,
		"history", len(req.History),
		"max_iterations", o.cfg.MaxIterations,
	)

	var inputTokens, outputTokens int
	var lastObservation string

	for iter := 1; iter <= o.cfg.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return o.finishCancelled(em, result, inputTokens, outputTokens)
		}

		resp, err := o.client.Chat(ctx, msgs, o.registry.List())
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return o.finishCancelled(em, result, inputTokens, outputTokens)
			}
			// A failed model call is fatal for the run. Report once and
			// resolve with the fallback so callers never need a recover
			// path around Execute.
			o.logger.Error("model call failed", "conversation", req.ConversationID, "iter", iter, "error", err)
			em.Emit(steps.Step{Type: steps.TypeError, Content: fmt.Sprintf("model call failed: %v", err)})
			if cb.OnError != nil {
				cb.OnError(err)
			}
			r := result(fallbackResponse)
			r.Failed = true
			r.InputTokens, r.OutputTokens = inputTokens, outputTokens
			return r
		}
		inputTokens += resp.InputTokens
		outputTokens += resp.OutputTokens

		rationale := strings.TrimSpace(resp.Message.Content)

		if len(resp.Message.ToolCalls) == 0 {
			// Final answer.
			em.Emit(steps.Step{Type: steps.TypeReasoning, Content: rationale})
			em.Emit(steps.Step{Type: steps.TypeDone, Content: "run complete"})
			o.logger.Info("agent run complete",
				"conversation", req.ConversationID,
				"iterations", iter,
				"elapsed", time.Since(start),
			)
			r := result(rationale)
			r.InputTokens, r.OutputTokens = inputTokens, outputTokens
			return r
		}

		// Strictly sequential tool invocation: one call per iteration.
		// Extra calls in the same response are ignored; the model can
		// reissue them on the next cycle.
		call := resp.Message.ToolCalls[0]
		argsJSON := encodeArgs(call.Arguments)

		if rationale == "" {
			rationale = fmt.Sprintf("Consulting %s.", call.Name)
		}
		em.Emit(steps.Step{Type: steps.TypeReasoning, Content: rationale})
		em.Emit(steps.Step{
			Type:      steps.TypeActing,
			Content:   fmt.Sprintf("calling tool %s", call.Name),
			ToolName:  call.Name,
			ToolInput: argsJSON,
		})

		var observation string
		if o.registry.Get(call.Name) == nil {
			// Unknown tool: recoverable. Tell the model what it may use
			// and return to reasoning.
			em.Emit(steps.Step{
				Type:     steps.TypeError,
				Content:  (&tools.UnknownToolError{Name: call.Name}).Error(),
				ToolName: call.Name,
			})
			observation = fmt.Sprintf(
				"Tool %q is not available. Available tools: %s. Use one of these or answer directly.",
				call.Name, strings.Join(o.registry.Names(), ", "),
			)
		} else {
			res := o.registry.Execute(ctx, call.Name, call.Arguments)
			if res.Success {
				observation = res.Output
			} else {
				observation = fmt.Sprintf("Tool %s failed: %s", call.Name, res.Error)
			}
		}

		observation = truncate(observation, o.cfg.ObservationLimit)
		lastObservation = observation
		em.Emit(steps.Step{
			Type:       steps.TypeObserving,
			Content:    observation,
			ToolName:   call.Name,
			ToolOutput: observation,
		})

		// Feed the observation back and loop to reasoning.
		msgs = append(msgs,
			llm.Message{Role: "assistant", Content: resp.Message.Content, ToolCalls: []llm.ToolCall{call}},
			llm.Message{Role: "tool", Content: observation, ToolCallID: call.ID},
		)
	}

	// Iteration budget exhausted: controlled termination with a
	// best-effort answer built from the last observation.
	o.logger.Warn("iteration budget exhausted",
		"conversation", req.ConversationID,
		"max_iterations", o.cfg.MaxIterations,
	)
	em.Emit(steps.Step{
		Type:    steps.TypeError,
		Content: fmt.Sprintf("reached the %d-iteration limit without a final answer", o.cfg.MaxIterations),
	})
	em.Emit(steps.Step{Type: steps.TypeDone, Content: "run terminated at iteration limit"})

	r := result(exhaustedSummary(lastObservation))
	r.Exhausted = true
	r.InputTokens, r.OutputTokens = inputTokens, outputTokens
	return r
}

// assembleMessages converts the request history into model messages,
// synthesizing a system prompt when the history does not carry one.
func (o *Orchestrator) assembleMessages(req Request) []llm.Message {
	msgs := make([]llm.Message, 0, len(req.History)+2)
	if len(req.History) == 0 || req.History[0].Role != history.RoleSystem {
		msgs = append(msgs, llm.Message{
			Role:    history.RoleSystem,
			Content: prompts.System(o.registry.Describe(), ""),
		})
	}
	for _, m := range req.History {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: history.RoleUser, Content: req.UserMessage})
}

func (o *Orchestrator) finishCancelled(em *steps.Emitter, result func(string) *Result, in, out int) *Result {
	em.Emit(steps.Step{Type: steps.TypeDone, Content: "run cancelled"})
	r := result("The request was cancelled before an answer was reached.")
	r.Cancelled = true
	r.InputTokens, r.OutputTokens = in, out
	return r
}

func exhaustedSummary(lastObservation string) string {
	if lastObservation == "" {
		return "I could not reach a final answer within the allowed number of reasoning steps."
	}
	return "I could not reach a final answer within the allowed number of reasoning steps. " +
		"The most recent information gathered was:\n\n" + lastObservation
}

func encodeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// truncate limits s to n runes, marking the cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "\n[output truncated]"
}
