// Package reporter delivers final engagement reports to the external
// evaluation endpoint. Dispatch is fire-and-forget relative to the request
// path: reports go through a bounded queue to a single worker that retries
// with backoff and logs permanent failures.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

const queueSize = 64

type Reporter struct {
	url     string
	retries int
	backoff time.Duration
	client  *http.Client
	logger  *slog.Logger

	queue chan session.FinalReport
	done  chan struct{}
}

func New(url string, timeout time.Duration, retries int, backoff time.Duration, logger *slog.Logger) *Reporter {
	if retries < 1 {
		retries = 1
	}
	return &Reporter{
		url:     url,
		retries: retries,
		backoff: backoff,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		queue:   make(chan session.FinalReport, queueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery worker. It drains until ctx is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		for {
			select {
			case <-ctx.Done():
				return
			case report := <-r.queue:
				r.deliver(ctx, report)
			}
		}
	}()
}

// Wait blocks until the worker has stopped.
func (r *Reporter) Wait() {
	<-r.done
}

// Enqueue hands a report to the delivery worker without blocking the caller.
// A full queue drops the report with a log line; the reply path is never
// held hostage by reporting.
func (r *Reporter) Enqueue(report session.FinalReport) {
	select {
	case r.queue <- report:
	default:
		r.logger.Error("report queue full, dropping report",
			"session_id", report.SessionID,
			"reason", report.ConclusionReason,
		)
	}
}

// deliver posts the report, retrying a bounded number of times.
func (r *Reporter) deliver(ctx context.Context, report session.FinalReport) {
	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		err := r.post(ctx, report)
		if err == nil {
			r.logger.Info("report delivered",
				"session_id", report.SessionID,
				"reason", report.ConclusionReason,
				"intel_items", len(report.ExtractedIntel),
				"attempt", attempt,
			)
			return
		}
		lastErr = err
		r.logger.Warn("report delivery failed",
			"session_id", report.SessionID,
			"attempt", attempt,
			"error", err,
		)
		if attempt < r.retries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}
	}
	r.logger.Error("report delivery permanently failed",
		"session_id", report.SessionID,
		"attempts", r.retries,
		"error", lastErr,
	)
}

func (r *Reporter) post(ctx context.Context, report session.FinalReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
