package history

import (
	"fmt"
	"testing"
)

func TestNewSeedsSystemMessage(t *testing.T) {
	l := New("you are helpful", 5)
	msgs := l.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len = %d, want 1", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != "you are helpful" {
		t.Errorf("unexpected system message: %+v", msgs[0])
	}
}

// TestWindowInvariant exercises the sliding window across many appends:
// after every append, the first message is the system prompt and the
// log never exceeds 2*maxPairs+1 messages.
func TestWindowInvariant(t *testing.T) {
	const maxPairs = 4
	l := New("sys", maxPairs)

	for i := range 50 {
		l.AppendTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))

		msgs := l.Messages()
		if msgs[0].Role != RoleSystem {
			t.Fatalf("after append %d: first message role = %s", i, msgs[0].Role)
		}
		if len(msgs) > 2*maxPairs+1 {
			t.Fatalf("after append %d: len = %d exceeds %d", i, len(msgs), 2*maxPairs+1)
		}
		// Pair boundaries: odd indexes are user, even (>0) assistant.
		for j := 1; j < len(msgs); j++ {
			want := RoleUser
			if j%2 == 0 {
				want = RoleAssistant
			}
			if msgs[j].Role != want {
				t.Fatalf("after append %d: message %d role = %s, want %s", i, j, msgs[j].Role, want)
			}
		}
	}
}

func TestTrimDropsOldestPairsFirst(t *testing.T) {
	l := New("sys", 2)
	l.AppendTurn("q0", "a0")
	l.AppendTurn("q1", "a1")
	l.AppendTurn("q2", "a2")

	msgs := l.Messages()
	if len(msgs) != 5 {
		t.Fatalf("len = %d, want 5", len(msgs))
	}
	if msgs[1].Content != "q1" || msgs[2].Content != "a1" {
		t.Errorf("oldest pair not dropped: %+v", msgs[1:3])
	}
	if msgs[3].Content != "q2" || msgs[4].Content != "a2" {
		t.Errorf("newest pair damaged: %+v", msgs[3:5])
	}
}

func TestRebuildSystemPromptPreservesRest(t *testing.T) {
	l := New("old prompt", 10)
	l.AppendTurn("q0", "a0")
	l.AppendTurn("q1", "a1")

	l.RebuildSystemPrompt("new prompt")

	msgs := l.Messages()
	if msgs[0].Content != "new prompt" {
		t.Errorf("system prompt = %q, want %q", msgs[0].Content, "new prompt")
	}
	if len(msgs) != 5 {
		t.Fatalf("rebuild changed length: %d", len(msgs))
	}
	want := []string{"q0", "a0", "q1", "a1"}
	for i, w := range want {
		if msgs[i+1].Content != w {
			t.Errorf("message %d = %q, want %q", i+1, msgs[i+1].Content, w)
		}
	}
}

func TestDefaultMaxPairs(t *testing.T) {
	l := New("sys", 0)
	for i := range 30 {
		l.AppendTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	if got := l.Pairs(); got != DefaultMaxPairs {
		t.Errorf("pairs = %d, want %d", got, DefaultMaxPairs)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	l := New("sys", 5)
	l.AppendTurn("q", "a")
	msgs := l.Messages()
	msgs[0].Content = "mutated"
	if l.SystemPrompt() != "sys" {
		t.Error("Messages() exposed internal slice")
	}
}
