package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/agent"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/detector"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/intel"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/lifecycle"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/openai"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/reporter"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pipelineOpts struct {
	maxTurns       int
	intelThreshold int
	reportURL      string
}

// newTestPipeline wires a pipeline whose model calls all fail, so detection
// runs keyword-only, extraction deterministic-only, and replies come from the
// fallback set. That keeps every turn fully deterministic.
func newTestPipeline(t *testing.T, store session.Store, opts pipelineOpts) *Pipeline {
	t.Helper()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)
	llm := openai.NewClient("test-key", "test-model", time.Second)
	llm.SetTestTransport(broken.URL)

	logger := discardLogger()
	if opts.maxTurns == 0 {
		opts.maxTurns = 12
	}
	if opts.intelThreshold == 0 {
		opts.intelThreshold = 2
	}
	if opts.reportURL == "" {
		opts.reportURL = broken.URL
	}

	rep := reporter.New(opts.reportURL, time.Second, 1, time.Millisecond, logger)
	rep.Start(context.Background())

	return New(
		store,
		detector.New(llm, time.Second, logger),
		intel.New(llm, time.Second, logger),
		agent.New(llm, time.Second, logger),
		lifecycle.New(opts.maxTurns, opts.intelThreshold, 0.7),
		rep,
		nil,
		0.7,
		logger,
	)
}

func newStore(t *testing.T) *session.MemoryStore {
	t.Helper()
	s := session.NewMemoryStore(time.Hour, time.Hour, discardLogger())
	t.Cleanup(func() { s.Close() })
	return s
}

func scamTurn(sessionID, text string) Turn {
	return Turn{
		SessionID: sessionID,
		Message:   session.Message{Sender: session.SenderScammer, Text: text, Timestamp: time.Now().UTC()},
	}
}

func TestHandleMessage_BasicTurn(t *testing.T) {
	store := newStore(t)
	p := newTestPipeline(t, store, pipelineOpts{})

	reply, err := p.HandleMessage(context.Background(), scamTurn("s1", "Your account has been blocked, verify immediately"))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply == "" {
		t.Fatal("empty reply")
	}

	st, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if st.TurnCount != 1 {
		t.Errorf("TurnCount = %d, want 1", st.TurnCount)
	}
	// Inbound plus our reply.
	if len(st.History) != 2 {
		t.Errorf("history length = %d, want 2", len(st.History))
	}
	if st.History[1].Sender != session.SenderUser || st.History[1].Text != reply {
		t.Errorf("outbound message not recorded: %+v", st.History[1])
	}
	if st.Detection.Probability == 0 {
		t.Error("keyword detection recorded no probability")
	}
}

func TestHandleMessage_ProbabilityMonotonic(t *testing.T) {
	store := newStore(t)
	p := newTestPipeline(t, store, pipelineOpts{})
	ctx := context.Background()

	if _, err := p.HandleMessage(ctx, scamTurn("s2", "Your account blocked! Share your UPI id immediately")); err != nil {
		t.Fatal(err)
	}
	st, _ := store.Get(ctx, "s2")
	high := st.Detection.Probability

	if _, err := p.HandleMessage(ctx, scamTurn("s2", "hello, how is the weather")); err != nil {
		t.Fatal(err)
	}
	st, _ = store.Get(ctx, "s2")
	if st.Detection.Probability < high {
		t.Errorf("probability dropped from %v to %v on benign turn", high, st.Detection.Probability)
	}
	// One inbound and one outbound per turn.
	if len(st.History) != 2*st.TurnCount {
		t.Errorf("history length = %d after %d turns", len(st.History), st.TurnCount)
	}
}

func TestHandleMessage_IntelAccumulatesWithoutDuplicates(t *testing.T) {
	store := newStore(t)
	// High thresholds so the session stays active.
	p := newTestPipeline(t, store, pipelineOpts{maxTurns: 50, intelThreshold: 50})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.HandleMessage(ctx, scamTurn("s3", "send payment to 9876543210")); err != nil {
			t.Fatal(err)
		}
	}

	st, _ := store.Get(ctx, "s3")
	if len(st.Intel) != 1 {
		t.Fatalf("expected 1 deduped intel item, got %+v", st.Intel)
	}
	if st.Intel[0].Value != "9876543210" || st.Intel[0].FirstSeenTurn != 1 {
		t.Errorf("intel item = %+v", st.Intel[0])
	}
}

func TestHandleMessage_ConcludesOnIntelThreshold(t *testing.T) {
	var reports []session.FinalReport
	reportCh := make(chan session.FinalReport, 1)
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rep session.FinalReport
		json.NewDecoder(r.Body).Decode(&rep)
		reportCh <- rep
	}))
	defer endpoint.Close()

	store := newStore(t)
	p := newTestPipeline(t, store, pipelineOpts{maxTurns: 50, intelThreshold: 2, reportURL: endpoint.URL})
	ctx := context.Background()

	if _, err := p.HandleMessage(ctx, scamTurn("s4", "Your account blocked! Share your UPI id, pay to fraud@upi or call 9876543210")); err != nil {
		t.Fatal(err)
	}

	st, _ := store.Get(ctx, "s4")
	if !st.Concluded() {
		t.Fatalf("expected conclusion at intel threshold, state: %+v", st)
	}
	if st.ConclusionReason != session.ReasonIntelThreshold {
		t.Errorf("reason = %q", st.ConclusionReason)
	}

	select {
	case rep := <-reportCh:
		reports = append(reports, rep)
	case <-time.After(2 * time.Second):
		t.Fatal("final report never delivered")
	}
	if reports[0].SessionID != "s4" || len(reports[0].ExtractedIntel) < 2 {
		t.Errorf("report = %+v", reports[0])
	}
}

func TestHandleMessage_ConcludesOnMaxTurns(t *testing.T) {
	store := newStore(t)
	p := newTestPipeline(t, store, pipelineOpts{maxTurns: 2, intelThreshold: 50})
	ctx := context.Background()

	if _, err := p.HandleMessage(ctx, scamTurn("s5", "hello ji, good morning")); err != nil {
		t.Fatal(err)
	}
	st, _ := store.Get(ctx, "s5")
	if st.Concluded() {
		t.Fatal("concluded one turn early")
	}

	if _, err := p.HandleMessage(ctx, scamTurn("s5", "are you there?")); err != nil {
		t.Fatal(err)
	}
	st, _ = store.Get(ctx, "s5")
	if !st.Concluded() || st.ConclusionReason != session.ReasonMaxTurns {
		t.Fatalf("expected MAX_TURNS conclusion, state: %+v", st)
	}
}

func TestHandleMessage_ConcludedSessionShortCircuits(t *testing.T) {
	store := newStore(t)
	p := newTestPipeline(t, store, pipelineOpts{maxTurns: 1, intelThreshold: 50})
	ctx := context.Background()

	first, err := p.HandleMessage(ctx, scamTurn("s6", "urgent, account problem"))
	if err != nil {
		t.Fatal(err)
	}
	st, _ := store.Get(ctx, "s6")
	if !st.Concluded() {
		t.Fatal("session should have concluded at maxTurns=1")
	}
	before := len(st.History)

	// A late message returns the last reply and mutates nothing.
	again, err := p.HandleMessage(ctx, scamTurn("s6", "hello?? answer me"))
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Errorf("late reply %q differs from last reply %q", again, first)
	}

	st, _ = store.Get(ctx, "s6")
	if len(st.History) != before {
		t.Errorf("history grew on concluded session: %d -> %d", before, len(st.History))
	}
	if st.TurnCount != 1 {
		t.Errorf("TurnCount advanced on concluded session: %d", st.TurnCount)
	}
}

func TestHandleMessage_SeedsExternalHistory(t *testing.T) {
	store := newStore(t)
	p := newTestPipeline(t, store, pipelineOpts{maxTurns: 50, intelThreshold: 50})
	ctx := context.Background()

	turn := scamTurn("s7", "so do you have the number I gave?")
	turn.History = []session.Message{
		{Sender: session.SenderScammer, Text: "note my number 9123456780", Timestamp: time.Now().UTC()},
		{Sender: session.SenderUser, Text: "which bank is this?", Timestamp: time.Now().UTC()},
	}

	if _, err := p.HandleMessage(ctx, turn); err != nil {
		t.Fatal(err)
	}

	st, _ := store.Get(ctx, "s7")
	// Seeded history, inbound, reply.
	if len(st.History) != 4 {
		t.Errorf("history length = %d, want 4", len(st.History))
	}
	found := false
	for _, it := range st.Intel {
		if it.Type == session.IntelPhone && it.Value == "9123456780" {
			found = true
		}
	}
	if !found {
		t.Errorf("phone from seeded history not extracted: %+v", st.Intel)
	}
}

func TestHandleMessage_BenignMaxTurnsNotReported(t *testing.T) {
	delivered := make(chan struct{}, 1)
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered <- struct{}{}
	}))
	defer endpoint.Close()

	store := newStore(t)
	p := newTestPipeline(t, store, pipelineOpts{maxTurns: 2, intelThreshold: 50, reportURL: endpoint.URL})
	ctx := context.Background()

	p.HandleMessage(ctx, scamTurn("s8", "hi, nice talking to you"))
	p.HandleMessage(ctx, scamTurn("s8", "ok bye then"))

	st, _ := store.Get(ctx, "s8")
	if !st.Concluded() {
		t.Fatal("expected conclusion at max turns")
	}

	select {
	case <-delivered:
		t.Error("benign engagement dispatched a report")
	case <-time.After(200 * time.Millisecond):
	}
}

// conflictStore loses a fixed number of compare-and-set races before
// delegating to the real store.
type conflictStore struct {
	*session.MemoryStore
	conflicts int
}

func (s *conflictStore) CompareAndSet(ctx context.Context, st *session.State) error {
	if s.conflicts > 0 {
		s.conflicts--
		return session.ErrConflict
	}
	return s.MemoryStore.CompareAndSet(ctx, st)
}

func TestHandleMessage_RerunsTurnAfterLostRace(t *testing.T) {
	store := &conflictStore{MemoryStore: newStore(t), conflicts: 2}
	p := newTestPipeline(t, store, pipelineOpts{maxTurns: 50, intelThreshold: 50})

	reply, err := p.HandleMessage(context.Background(), scamTurn("s9", "hello, is this the bank?"))
	if err != nil {
		t.Fatalf("HandleMessage after transient conflicts: %v", err)
	}
	if reply == "" {
		t.Fatal("empty reply")
	}

	st, err := store.Get(context.Background(), "s9")
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	// The whole turn reruns on a lost race; nothing is double-counted.
	if st.TurnCount != 1 {
		t.Errorf("TurnCount = %d, want 1", st.TurnCount)
	}
	if len(st.History) != 2 {
		t.Errorf("history length = %d, want 2", len(st.History))
	}
}

func TestHandleMessage_PersistentConflictReturnsBusy(t *testing.T) {
	store := &conflictStore{MemoryStore: newStore(t), conflicts: casRetries + 1}
	p := newTestPipeline(t, store, pipelineOpts{maxTurns: 50, intelThreshold: 50})

	_, err := p.HandleMessage(context.Background(), scamTurn("s10", "hello again"))
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := store.Get(context.Background(), "s10"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("busy turn should leave no persisted session, got %v", err)
	}
}
