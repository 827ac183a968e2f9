// Package session holds the engagement data model and the Store abstraction
// that persists per-session conversation state.
package session

import (
	"time"
)

// Sender identifies which side of the conversation produced a message.
const (
	SenderScammer = "scammer"
	SenderUser    = "user"
)

// Session status values. The transition is one-way: ACTIVE → CONCLUDED.
const (
	StatusActive    = "ACTIVE"
	StatusConcluded = "CONCLUDED"
)

// Conclusion reasons recorded when an engagement ends.
const (
	ReasonMaxTurns       = "MAX_TURNS"
	ReasonIntelThreshold = "INTEL_THRESHOLD"
)

// Message is a single conversation message. Immutable once recorded.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IntelType classifies an extracted intelligence artifact.
type IntelType string

const (
	IntelPhone       IntelType = "phone"
	IntelBankAccount IntelType = "bankAccount"
	IntelUPI         IntelType = "upiId"
	IntelURL         IntelType = "url"
	IntelOther       IntelType = "other"
)

// IntelItem is a structured artifact extracted from conversation text.
// Value is normalized; (Type, Value) is the dedup key.
type IntelItem struct {
	Type          IntelType `json:"type"`
	Value         string    `json:"value"`
	FirstSeenTurn int       `json:"firstSeenTurn"`
}

// Key returns the dedup key for an intel item.
func (i IntelItem) Key() string {
	return string(i.Type) + "|" + i.Value
}

// Detection is the last-computed scam assessment for a session.
type Detection struct {
	Probability    float64  `json:"probability"`
	Category       string   `json:"category"`
	MatchedSignals []string `json:"matchedSignals,omitempty"`
}

// Persona is the fixed simulated-recipient identity the agent maintains for
// one session. Chosen at session creation, never changed.
type Persona struct {
	Name     string `json:"name"`
	City     string `json:"city"`
	Register string `json:"register"` // language register, e.g. "hinglish"
}

// State is the aggregate root for one engagement, keyed by SessionID.
type State struct {
	SessionID string  `json:"sessionId"`
	Persona   Persona `json:"persona"`

	// History is append-only, in strict chronological order.
	History []Message `json:"history"`

	// TurnCount is the number of scammer messages processed.
	TurnCount int `json:"turnCount"`

	Detection Detection `json:"detection"`

	// ScamDetected sticks once the detection probability crosses the
	// configured threshold; it never resets.
	ScamDetected bool `json:"scamDetected"`

	Intel []IntelItem `json:"intel"`

	Status           string `json:"status"`
	ConclusionReason string `json:"conclusionReason,omitempty"`

	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`

	// Version drives optimistic concurrency in the store. Zero means the
	// state has never been persisted.
	Version int64 `json:"-"`
}

// New creates a fresh session state for a first message.
func New(sessionID string, persona Persona, now time.Time) *State {
	return &State{
		SessionID:      sessionID,
		Persona:        persona,
		Status:         StatusActive,
		CreatedAt:      now.UTC(),
		LastActivityAt: now.UTC(),
	}
}

// Append records a message at the end of the history.
func (s *State) Append(m Message) {
	s.History = append(s.History, m)
	s.LastActivityAt = m.Timestamp.UTC()
}

// MergeIntel adds items whose (type, value) key is not yet present and
// returns how many were new. The intel set never shrinks.
func (s *State) MergeIntel(items []IntelItem) int {
	seen := make(map[string]bool, len(s.Intel))
	for _, it := range s.Intel {
		seen[it.Key()] = true
	}
	added := 0
	for _, it := range items {
		if seen[it.Key()] {
			continue
		}
		seen[it.Key()] = true
		s.Intel = append(s.Intel, it)
		added++
	}
	return added
}

// Conclude marks the session as finished. Subsequent calls are no-ops so the
// first recorded reason wins.
func (s *State) Conclude(reason string) {
	if s.Status == StatusConcluded {
		return
	}
	s.Status = StatusConcluded
	s.ConclusionReason = reason
}

// Concluded reports whether the engagement has ended.
func (s *State) Concluded() bool {
	return s.Status == StatusConcluded
}

// LastReply returns the most recent agent reply in the history, or "" if the
// agent never spoke.
func (s *State) LastReply() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Sender == SenderUser {
			return s.History[i].Text
		}
	}
	return ""
}

// Clone returns a deep copy so callers can mutate without aliasing store
// internals.
func (s *State) Clone() *State {
	cp := *s
	cp.History = append([]Message(nil), s.History...)
	cp.Intel = append([]IntelItem(nil), s.Intel...)
	cp.Detection.MatchedSignals = append([]string(nil), s.Detection.MatchedSignals...)
	return &cp
}

// FinalReport is the payload delivered to the external evaluation endpoint
// when an engagement concludes.
type FinalReport struct {
	ReportID         string      `json:"reportId"`
	SessionID        string      `json:"sessionId"`
	TurnCount        int         `json:"turnCount"`
	Detection        Detection   `json:"detection"`
	ExtractedIntel   []IntelItem `json:"extractedIntel"`
	ConclusionReason string      `json:"conclusionReason"`
	History          []Message   `json:"history"`
}
