package agent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/openai"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAgentWithResponse(t *testing.T, content string, status int) *Agent {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)
	llm := openai.NewClient("test-key", "test-model", 5*time.Second)
	llm.SetTestTransport(server.URL)
	return New(llm, 5*time.Second, discardLogger())
}

func testState(turn int) *session.State {
	st := session.New("agent-test", PickPersona("agent-test"), time.Now())
	st.TurnCount = turn
	return st
}

func TestReply_ParsesModelJSON(t *testing.T) {
	a := newAgentWithResponse(t, `{"reply": "Which bank is this from?", "engagement_score": 0.8}`, http.StatusOK)
	got := a.Reply(context.Background(), testState(1), session.Detection{}, "your account is blocked", false)
	if got != "Which bank is this from?" {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestReply_FallsBackOnModelFailure(t *testing.T) {
	a := newAgentWithResponse(t, "", http.StatusInternalServerError)

	for turn := 1; turn <= 6; turn++ {
		got := a.Reply(context.Background(), testState(turn), session.Detection{}, "send money now", false)
		want := fallbackReply(turn, false)
		if got != want {
			t.Errorf("turn %d: got %q, want %q", turn, got, want)
		}
	}
}

func TestReply_EmptyMessage(t *testing.T) {
	a := newAgentWithResponse(t, "", http.StatusInternalServerError)
	got := a.Reply(context.Background(), testState(1), session.Detection{}, "   ", false)
	if !strings.Contains(got, "repeat") {
		t.Errorf("expected clarification line, got %q", got)
	}
}

func TestFallbackReply_AlternatesAndNeverRepeatsAdjacent(t *testing.T) {
	var prev string
	for turn := 1; turn <= 8; turn++ {
		got := fallbackReply(turn, false)
		if got == "" {
			t.Fatalf("turn %d: empty fallback", turn)
		}
		if got == prev {
			t.Errorf("turn %d: fallback repeated previous turn's line", turn)
		}
		prev = got
	}
}

func TestFallbackReply_Disengage(t *testing.T) {
	got := fallbackReply(5, true)
	found := false
	for _, line := range disengageFallbacks {
		if got == line {
			found = true
		}
	}
	if !found {
		t.Errorf("disengage fallback %q not from disengage set", got)
	}
}

func TestPickPersona_Deterministic(t *testing.T) {
	a := PickPersona("session-abc")
	b := PickPersona("session-abc")
	if a != b {
		t.Errorf("same id gave different personas: %+v vs %+v", a, b)
	}
	if a.Name == "" || a.City == "" {
		t.Errorf("incomplete persona %+v", a)
	}
}

func TestGoal(t *testing.T) {
	a := New(nil, time.Second, discardLogger())

	st := testState(2)
	if got := a.goal(st, false); got != goalProbe {
		t.Errorf("early turn with no intel: got %q, want probe", got)
	}

	st.Intel = []session.IntelItem{{Type: session.IntelPhone, Value: "9876543210", FirstSeenTurn: 1}}
	if got := a.goal(st, false); got != goalStall {
		t.Errorf("with intel gathered: got %q, want stall", got)
	}

	st.TurnCount = 8
	if got := a.goal(st, true); got != goalDisengage {
		t.Errorf("concluding: got %q, want disengage", got)
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"reply": "ok tell me more", "engagement_score": 0.7}`,
			want: "ok tell me more",
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"reply\": \"one minute please\", \"engagement_score\": 0.4}\n```",
			want: "one minute please",
		},
		{
			name: "bare prose",
			raw:  "Acha, which branch are you calling from?",
			want: "Acha, which branch are you calling from?",
		},
		{
			name:    "empty reply field",
			raw:     `{"reply": "", "engagement_score": 0.1}`,
			wantErr: true,
		},
		{
			name:    "too short prose",
			raw:     "ok",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := parseReply(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("a", maxReplyLength+50)
	if got := clip(long); len(got) != maxReplyLength {
		t.Errorf("clip length = %d, want %d", len(got), maxReplyLength)
	}
	if got := clip("  hello  "); got != "hello" {
		t.Errorf("clip trimming: got %q", got)
	}

	// Clipping must not split a multi-byte rune.
	multibyte := "a" + strings.Repeat("₹", maxReplyLength)
	got := clip(multibyte)
	if len(got) > maxReplyLength {
		t.Errorf("clip length = %d, want <= %d", len(got), maxReplyLength)
	}
	if !utf8.ValidString(got) {
		t.Error("clipped reply is not valid UTF-8")
	}
}
