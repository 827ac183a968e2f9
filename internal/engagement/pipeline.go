// Package engagement orchestrates one conversation turn: load state, detect,
// extract, reply, evaluate lifecycle, save. Per-session serialization comes
// from the store's compare-and-set: a lost race reruns the whole turn against
// fresh state, bounded by casRetries.
package engagement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/agent"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/detector"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/events"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/intel"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/lifecycle"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/reporter"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

const casRetries = 3

// ErrBusy means the turn kept losing the optimistic-concurrency race and the
// caller should surface a transient error.
var ErrBusy = errors.New("session busy")

// Turn is one inbound scammer message plus any externally supplied history.
type Turn struct {
	SessionID string
	Message   session.Message
	History   []session.Message
}

type Pipeline struct {
	store         session.Store
	detector      *detector.Detector
	extractor     *intel.Extractor
	agent         *agent.Agent
	lifecycle     *lifecycle.Controller
	reporter      *reporter.Reporter
	events        *events.Client
	scamThreshold float64
	logger        *slog.Logger
}

func New(
	store session.Store,
	det *detector.Detector,
	ext *intel.Extractor,
	ag *agent.Agent,
	lc *lifecycle.Controller,
	rep *reporter.Reporter,
	ev *events.Client,
	scamThreshold float64,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:         store,
		detector:      det,
		extractor:     ext,
		agent:         ag,
		lifecycle:     lc,
		reporter:      rep,
		events:        ev,
		scamThreshold: scamThreshold,
		logger:        logger,
	}
}

// HandleMessage runs one full turn and returns the agent's reply.
func (p *Pipeline) HandleMessage(ctx context.Context, t Turn) (string, error) {
	for attempt := 1; attempt <= casRetries; attempt++ {
		reply, err := p.runTurn(ctx, t)
		if errors.Is(err, session.ErrConflict) {
			p.logger.Warn("turn lost concurrency race, retrying",
				"session_id", t.SessionID,
				"attempt", attempt,
			)
			continue
		}
		return reply, err
	}
	return "", ErrBusy
}

func (p *Pipeline) runTurn(ctx context.Context, t Turn) (string, error) {
	st, err := p.store.Get(ctx, t.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		st = session.New(t.SessionID, agent.PickPersona(t.SessionID), time.Now())
		// Seed history the caller already has, e.g. when the evaluator
		// replays a conversation against a fresh instance.
		for _, m := range t.History {
			st.Append(m)
		}
	} else if err != nil {
		return "", err
	}

	// A late message for a concluded session gets the last known reply and
	// no further engagement. No state is mutated.
	if st.Concluded() {
		p.logger.Info("message for concluded session ignored",
			"session_id", st.SessionID,
			"reason", st.ConclusionReason,
		)
		if last := st.LastReply(); last != "" {
			return last, nil
		}
		return "Sorry, I have to go now. I'll sort this out at the bank branch.", nil
	}

	st.TurnCount++

	det := p.detector.Detect(ctx, t.Message, st.History)
	p.applyDetection(st, det)

	newItems := p.extractor.Extract(ctx, t.Message.Text, st.History, st.Intel, st.TurnCount)
	if added := st.MergeIntel(newItems); added > 0 {
		p.logger.Info("intelligence extracted",
			"session_id", st.SessionID,
			"turn", st.TurnCount,
			"new_items", added,
			"total_items", len(st.Intel),
		)
	}

	decision := p.lifecycle.Evaluate(st)

	reply := p.agent.Reply(ctx, st, st.Detection, t.Message.Text, decision.Conclude)

	st.Append(t.Message)
	st.Append(session.Message{
		Sender:    session.SenderUser,
		Text:      reply,
		Timestamp: time.Now().UTC(),
	})

	if decision.Conclude {
		st.Conclude(decision.Reason)
	}

	// CONCLUDED must be visible to a concurrent second message before the
	// response goes out, so the save happens before report dispatch and
	// before returning.
	if err := p.store.CompareAndSet(ctx, st); err != nil {
		return "", err
	}

	if decision.Conclude {
		p.concludeEngagement(st)
	}

	return reply, nil
}

// applyDetection folds a fresh detection into the session. Probability is
// monotonic: accumulated evidence is never discounted by one soft turn.
func (p *Pipeline) applyDetection(st *session.State, det session.Detection) {
	if det.Probability < st.Detection.Probability {
		det.Probability = st.Detection.Probability
	}
	if det.Category == "" || det.Category == "benign" && st.Detection.Category != "" {
		det.Category = st.Detection.Category
	}
	st.Detection = det

	if !st.ScamDetected && det.Probability >= p.scamThreshold {
		st.ScamDetected = true
		p.logger.Info("scam detected",
			"session_id", st.SessionID,
			"turn", st.TurnCount,
			"probability", det.Probability,
			"category", det.Category,
		)
		if err := p.events.Publish(events.SubjectScamDetected, map[string]any{
			"sessionId":   st.SessionID,
			"turn":        st.TurnCount,
			"probability": det.Probability,
			"category":    det.Category,
		}); err != nil {
			p.logger.Warn("failed to publish scam event", "error", err)
		}
	}
}

func (p *Pipeline) concludeEngagement(st *session.State) {
	p.logger.Info("engagement concluded",
		"session_id", st.SessionID,
		"reason", st.ConclusionReason,
		"turns", st.TurnCount,
		"intel_items", len(st.Intel),
		"reported", p.lifecycle.ShouldReport(st),
	)

	if p.lifecycle.ShouldReport(st) {
		p.reporter.Enqueue(p.lifecycle.BuildReport(st))
	}

	if err := p.events.Publish(events.SubjectEngagementConcluded, map[string]any{
		"sessionId":  st.SessionID,
		"reason":     st.ConclusionReason,
		"turns":      st.TurnCount,
		"intelItems": len(st.Intel),
	}); err != nil {
		p.logger.Warn("failed to publish conclusion event", "error", err)
	}
}
