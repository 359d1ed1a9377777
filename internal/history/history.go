// Package history maintains the bounded conversation log fed to the
// LLM. The log always begins with the system prompt and never exceeds
// a configured number of user/assistant pairs; the oldest pairs are
// dropped first, and a user message is never separated from its reply.
package history

// Message roles. The log only ever contains these three; tool-call
// plumbing messages are the orchestrator's private business and are
// not persisted here.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single immutable conversation message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DefaultMaxPairs bounds conversation growth when no explicit limit is
// configured.
const DefaultMaxPairs = 20

// Log is an ordered conversation transcript. Element 0 is always the
// system prompt. Construct with New; the zero value is not usable.
type Log struct {
	messages []Message
	maxPairs int
}

// New creates a log seeded with the given system prompt. maxPairs <= 0
// selects DefaultMaxPairs.
func New(systemPrompt string, maxPairs int) *Log {
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	return &Log{
		messages: []Message{{Role: RoleSystem, Content: systemPrompt}},
		maxPairs: maxPairs,
	}
}

// AppendTurn appends one complete user/assistant pair, then drops the
// oldest pairs until the log holds at most maxPairs of them. The append
// and the trim happen together, so the log is never observed with a
// dangling unmatched message.
func (l *Log) AppendTurn(user, assistant string) {
	l.messages = append(l.messages,
		Message{Role: RoleUser, Content: user},
		Message{Role: RoleAssistant, Content: assistant},
	)
	if excess := l.Pairs() - l.maxPairs; excess > 0 {
		// Pairs start at index 1; drop whole pairs only.
		l.messages = append(l.messages[:1], l.messages[1+2*excess:]...)
	}
}

// RebuildSystemPrompt replaces the system message in place. Called when
// the tool catalog or domain-context summary changes. The rest of the
// log is neither duplicated nor reordered.
func (l *Log) RebuildSystemPrompt(prompt string) {
	l.messages[0] = Message{Role: RoleSystem, Content: prompt}
}

// Messages returns a copy of the transcript in order.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// SystemPrompt returns the current system message content.
func (l *Log) SystemPrompt() string {
	return l.messages[0].Content
}

// Len returns the total message count, including the system message.
func (l *Log) Len() int {
	return len(l.messages)
}

// Pairs returns the number of user/assistant pairs currently held.
func (l *Log) Pairs() int {
	return (len(l.messages) - 1) / 2
}
