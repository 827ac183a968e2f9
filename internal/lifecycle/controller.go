// Package lifecycle decides when an engagement is done and assembles the
// final report for the external evaluation service.
package lifecycle

import (
	"github.com/google/uuid"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

// Decision is the per-turn verdict. Reason is set only when Conclude is true.
type Decision struct {
	Conclude bool
	Reason   string
}

type Controller struct {
	maxTurns       int
	intelThreshold int
	scamThreshold  float64
}

func New(maxTurns, intelThreshold int, scamThreshold float64) *Controller {
	return &Controller{
		maxTurns:       maxTurns,
		intelThreshold: intelThreshold,
		scamThreshold:  scamThreshold,
	}
}

// Evaluate applies the termination rules in precedence order. Called once
// per turn after detection and extraction have updated the state.
func (c *Controller) Evaluate(st *session.State) Decision {
	if st.Concluded() {
		return Decision{}
	}
	if st.TurnCount >= c.maxTurns {
		return Decision{Conclude: true, Reason: session.ReasonMaxTurns}
	}
	if len(st.Intel) >= c.intelThreshold {
		return Decision{Conclude: true, Reason: session.ReasonIntelThreshold}
	}
	return Decision{}
}

// ShouldReport gates dispatch: only engagements whose detection ever crossed
// the scam threshold are worth the evaluator's time. Benign chatter that
// merely exhausts MAX_TURNS concludes silently.
func (c *Controller) ShouldReport(st *session.State) bool {
	return st.ScamDetected || st.Detection.Probability >= c.scamThreshold
}

// BuildReport assembles the final report from concluded session state.
func (c *Controller) BuildReport(st *session.State) session.FinalReport {
	return session.FinalReport{
		ReportID:         uuid.NewString(),
		SessionID:        st.SessionID,
		TurnCount:        st.TurnCount,
		Detection:        st.Detection,
		ExtractedIntel:   append([]session.IntelItem(nil), st.Intel...),
		ConclusionReason: st.ConclusionReason,
		History:          append([]session.Message(nil), st.History...),
	}
}
