// Package intel extracts structured intelligence artifacts (phone numbers,
// account identifiers, UPI handles, links) from conversation text. A
// deterministic regex pass always runs; a model pass supplements it and
// degrades silently when unavailable.
package intel

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

const extractSystemPrompt = `You extract scam-related intelligence artifacts from conversations. Respond with JSON only.`

const maxConversationChars = 3000

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\n?(.*?)\n?```\\s*$")

type Extractor struct {
	llm     *openai.Client
	timeout time.Duration
	logger  *slog.Logger
}

func New(llm *openai.Client, timeout time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{llm: llm, timeout: timeout, logger: logger}
}

// Extract scans the latest message plus accumulated history and returns only
// items not already present in already. turn tags new items' FirstSeenTurn.
func (e *Extractor) Extract(ctx context.Context, latest string, history []session.Message, already []session.IntelItem, turn int) []session.IntelItem {
	seen := make(map[string]bool, len(already))
	for _, it := range already {
		seen[it.Key()] = true
	}

	var sb strings.Builder
	sb.WriteString(latest)
	for _, m := range history {
		sb.WriteString(" ")
		sb.WriteString(m.Text)
	}
	fullText := sb.String()

	found := scanText(fullText, turn)

	if llmItems, err := e.modelPass(ctx, fullText, turn); err != nil {
		e.logger.Warn("model extraction unavailable, deterministic-only", "error", err)
	} else {
		found = append(found, llmItems...)
	}

	var fresh []session.IntelItem
	for _, it := range found {
		if it.Value == "" || seen[it.Key()] {
			continue
		}
		seen[it.Key()] = true
		fresh = append(fresh, it)
	}
	return fresh
}

// scanText is the deterministic pass.
func scanText(text string, turn int) []session.IntelItem {
	var items []session.IntelItem
	add := func(t session.IntelType, value string) {
		if value == "" {
			return
		}
		items = append(items, session.IntelItem{Type: t, Value: value, FirstSeenTurn: turn})
	}

	// Phones match on a cleaned copy so "98765 43210" still hits.
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(text)
	for _, m := range phonePattern.FindAllString(cleaned, -1) {
		add(session.IntelPhone, NormalizePhone(m))
	}

	for _, m := range urlPattern.FindAllString(text, -1) {
		add(session.IntelURL, NormalizeURL(m))
	}

	for _, m := range upiPattern.FindAllString(text, -1) {
		// URLs were already captured; don't re-report their userinfo.
		if strings.Contains(text, "://"+m) {
			continue
		}
		add(session.IntelUPI, NormalizeUPI(m))
	}

	for _, m := range maskedAccountPattern.FindAllString(text, -1) {
		add(session.IntelBankAccount, NormalizeAccount(m))
	}
	for _, m := range groupedAccountPattern.FindAllString(text, -1) {
		// A bare 10-digit mobile is a phone, not an account.
		if NormalizePhone(m) != "" {
			continue
		}
		add(session.IntelBankAccount, NormalizeAccount(m))
	}

	return items
}

type modelExtraction struct {
	BankAccounts []string `json:"bankAccounts"`
	UpiIds       []string `json:"upiIds"`
	Links        []string `json:"phishingLinks"`
	PhoneNumbers []string `json:"phoneNumbers"`
	Other        []string `json:"other"`
}

// modelPass asks the model for artifacts the regexes miss: spelled-out
// numbers, obfuscated links, partial account references.
func (e *Extractor) modelPass(ctx context.Context, conversation string, turn int) ([]session.IntelItem, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	conversation = sanitize.Truncate(conversation, maxConversationChars)

	prompt := fmt.Sprintf(`Extract scam-related intelligence from this conversation. Return ONLY valid JSON with these exact keys (arrays of strings):
- bankAccounts: account numbers, including masked formats like XXXX-XXXX-1234
- upiIds: UPI IDs (handle@bank format)
- phishingLinks: URLs that may be phishing or malicious, including obfuscated ones
- phoneNumbers: Indian phone numbers, including spelled-out digits
- other: any other identifying artifact (emails, IFSC codes, wallet ids)

Conversation:
%s

Return ONLY the JSON object, no other text.`, conversation)

	raw, err := e.llm.Complete(ctx, extractSystemPrompt, []openai.Message{{Role: "user", Content: prompt}}, 300, 0)
	if err != nil {
		return nil, err
	}

	raw = strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}

	var parsed modelExtraction
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}

	var items []session.IntelItem
	for _, v := range parsed.PhoneNumbers {
		if n := NormalizePhone(v); n != "" {
			items = append(items, session.IntelItem{Type: session.IntelPhone, Value: n, FirstSeenTurn: turn})
		}
	}
	for _, v := range parsed.UpiIds {
		if n := NormalizeUPI(v); n != "" {
			items = append(items, session.IntelItem{Type: session.IntelUPI, Value: n, FirstSeenTurn: turn})
		}
	}
	for _, v := range parsed.Links {
		if n := NormalizeURL(v); n != "" {
			items = append(items, session.IntelItem{Type: session.IntelURL, Value: n, FirstSeenTurn: turn})
		}
	}
	for _, v := range parsed.BankAccounts {
		if n := NormalizeAccount(v); n != "" {
			items = append(items, session.IntelItem{Type: session.IntelBankAccount, Value: n, FirstSeenTurn: turn})
		}
	}
	for _, v := range parsed.Other {
		v = strings.TrimSpace(v)
		if v != "" && len(v) <= 100 {
			items = append(items, session.IntelItem{Type: session.IntelOther, Value: strings.ToLower(v), FirstSeenTurn: turn})
		}
	}
	return items, nil
}
