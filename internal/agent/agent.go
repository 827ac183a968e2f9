// Package agent generates the honeypot's persona-driven replies. The reply
// path never fails: when the model is unavailable it falls back to
// pre-written lines keyed by turn parity.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/openai"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/sanitize"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

const (
	historyWindow  = 10
	maxReplyLength = 600
	probeTurnLimit = 3
)

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\n?(.*?)\n?```\\s*$")

type Agent struct {
	llm     *openai.Client
	timeout time.Duration
	logger  *slog.Logger
}

func New(llm *openai.Client, timeout time.Duration, logger *slog.Logger) *Agent {
	return &Agent{llm: llm, timeout: timeout, logger: logger}
}

// Reply produces the next outbound message for the session. concluding asks
// for a natural disengagement line instead of a continuation.
func (a *Agent) Reply(ctx context.Context, st *session.State, det session.Detection, latest string, concluding bool) string {
	if strings.TrimSpace(latest) == "" {
		return "I didn't get that. Can you repeat?"
	}

	reply, err := a.generate(ctx, st, det, latest, concluding)
	if err != nil {
		a.logger.Warn("reply generation unavailable, using fallback",
			"session_id", st.SessionID,
			"turn", st.TurnCount,
			"error", err,
		)
		return fallbackReply(st.TurnCount, concluding)
	}
	return reply
}

func (a *Agent) generate(ctx context.Context, st *session.State, det session.Detection, latest string, concluding bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	system := fmt.Sprintf(systemPromptTemplate, st.Persona.Name, st.Persona.City, st.Persona.Register)

	var conv strings.Builder
	start := len(st.History) - historyWindow
	if start < 0 {
		start = 0
	}
	for _, m := range st.History[start:] {
		if m.Sender == session.SenderScammer {
			conv.WriteString("Sender: ")
		} else {
			conv.WriteString("You: ")
		}
		conv.WriteString(m.Text)
		conv.WriteString("\n")
	}
	conv.WriteString("Sender: ")
	conv.WriteString(latest)

	var prevReplies []string
	for _, m := range st.History {
		if m.Sender == session.SenderUser {
			prevReplies = append(prevReplies, m.Text)
		}
	}
	if len(prevReplies) > 3 {
		prevReplies = prevReplies[len(prevReplies)-3:]
	}
	prevContext := "none yet"
	if len(prevReplies) > 0 {
		prevContext = strings.Join(prevReplies, "\n")
	}

	prompt := fmt.Sprintf(`Conversation so far:
%s

Your previous replies (do NOT repeat these):
%s

Scam assessment so far: probability %.2f, category %s. Intelligence gathered: %d items. Turn: %d.

%s

Return ONLY the JSON object.`,
		conv.String(), prevContext, det.Probability, det.Category, len(st.Intel), st.TurnCount, a.goal(st, concluding))

	raw, err := a.llm.Complete(ctx, system, []openai.Message{{Role: "user", Content: prompt}}, 200, 0.85)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	reply, score, err := parseReply(raw)
	if err != nil {
		return "", err
	}
	a.logger.Debug("reply generated",
		"session_id", st.SessionID,
		"turn", st.TurnCount,
		"engagement_score", score,
	)
	return reply, nil
}

// goal picks the per-turn steering. Early turns probe for disclosure; once
// intel accumulates or the conversation drags, stalling buys time; the final
// turn disengages.
func (a *Agent) goal(st *session.State, concluding bool) string {
	switch {
	case concluding:
		return goalDisengage
	case st.TurnCount <= probeTurnLimit && len(st.Intel) == 0:
		return goalProbe
	default:
		return goalStall
	}
}

func parseReply(raw string) (string, float64, error) {
	raw = strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}

	var parsed struct {
		Reply           string  `json:"reply"`
		EngagementScore float64 `json:"engagement_score"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && strings.TrimSpace(parsed.Reply) != "" {
		return clip(parsed.Reply), parsed.EngagementScore, nil
	}

	// Some completions come back as bare prose. Accept anything that looks
	// like a plausible reply rather than burning the turn.
	if len(raw) > 5 && len(raw) < maxReplyLength && !strings.HasPrefix(raw, "{") {
		return raw, 0.5, nil
	}
	return "", 0, fmt.Errorf("unparseable reply: %q", clip(raw))
}

func clip(s string) string {
	return sanitize.Truncate(strings.TrimSpace(s), maxReplyLength)
}
