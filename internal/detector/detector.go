// Package detector scores inbound messages for scam likelihood using a
// hybrid of deterministic keyword rules and a model classification call.
// Detection always produces a result: when the model call fails or times
// out it degrades to keyword-only confidence.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/openai"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

const (
	// maxKeywordScore bounds the deterministic signal's contribution.
	maxKeywordScore = 0.9

	// shortCircuitScore: at or above this keyword score the model call is
	// skipped entirely. Keeps hot scam traffic fast and cheap.
	shortCircuitScore = 0.6

	// historyWindow limits how much context goes to the classifier.
	historyWindow = 5
)

const classifySystemPrompt = `You are a scam and fraud intent classifier for messages received by Indian users. Categories: bank_fraud, upi_fraud, phishing, prize_scam, impersonation, generic, benign.`

type Detector struct {
	llm     *openai.Client
	timeout time.Duration
	logger  *slog.Logger
}

func New(llm *openai.Client, timeout time.Duration, logger *slog.Logger) *Detector {
	return &Detector{llm: llm, timeout: timeout, logger: logger}
}

// Detect scores one inbound message against the recent history.
func (d *Detector) Detect(ctx context.Context, msg session.Message, history []session.Message) session.Detection {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return session.Detection{Category: "benign"}
	}

	kwScore, matched, kwCategory := keywordScan(text)

	if kwScore >= shortCircuitScore {
		return session.Detection{
			Probability:    kwScore,
			Category:       kwCategory,
			MatchedSignals: matched,
		}
	}

	modelProb, modelCategory, err := d.classify(ctx, text, history)
	if err != nil {
		// Degraded mode: keyword score stands alone.
		d.logger.Warn("model classification unavailable, keyword-only detection",
			"error", err,
			"keyword_score", kwScore,
		)
		category := kwCategory
		if category == "" {
			category = "unknown"
		}
		return session.Detection{
			Probability:    kwScore,
			Category:       category,
			MatchedSignals: matched,
		}
	}

	// Average the two signals; the keyword score acts as a floor so a
	// benign-leaning model verdict never erases hard indicator matches.
	combined := (kwScore + modelProb) / 2
	if combined < kwScore {
		combined = kwScore
	}
	category := modelCategory
	if category == "" || category == "benign" && kwCategory != "" {
		category = kwCategory
	}
	if category == "" {
		category = "benign"
	}
	return session.Detection{
		Probability:    combined,
		Category:       category,
		MatchedSignals: matched,
	}
}

// classify asks the model for a verdict using a line-oriented protocol that
// survives sloppy completions better than JSON.
func (d *Detector) classify(ctx context.Context, text string, history []session.Message) (float64, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var sb strings.Builder
	start := len(history) - historyWindow
	if start < 0 {
		start = 0
	}
	for _, m := range history[start:] {
		sb.WriteString(m.Sender)
		sb.WriteString(": ")
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}

	prompt := fmt.Sprintf(`Analyze this message for scam or fraudulent intent (bank fraud, UPI fraud, phishing, fake offers, impersonation).

Message:
%q

Previous context:
%s
Respond in exactly this format (no other text):
IS_SCAM: true/false
CONFIDENCE: 0.0 to 1.0
CATEGORY: one category word
REASON: one short sentence`, text, sb.String())

	raw, err := d.llm.Complete(ctx, classifySystemPrompt, []openai.Message{{Role: "user", Content: prompt}}, 80, 0)
	if err != nil {
		return 0, "", fmt.Errorf("classify: %w", err)
	}

	prob, category := parseVerdict(raw)
	return prob, category, nil
}

func parseVerdict(raw string) (float64, string) {
	var prob float64
	var category string
	isScam := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "IS_SCAM:"):
			val := strings.ToLower(strings.TrimSpace(line[len("IS_SCAM:"):]))
			isScam = val == "true" || val == "yes" || val == "1"
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			if v, err := strconv.ParseFloat(strings.TrimSpace(line[len("CONFIDENCE:"):]), 64); err == nil {
				prob = clamp01(v)
			}
		case strings.HasPrefix(upper, "CATEGORY:"):
			category = strings.ToLower(strings.TrimSpace(line[len("CATEGORY:"):]))
		}
	}
	if !isScam && prob > 0.5 {
		// Model contradicted itself; trust the explicit verdict.
		prob = 0.5
	}
	return prob, category
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
