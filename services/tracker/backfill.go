package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ordertrack-backend/lib/scrapers/bybit"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

type BackfillResult struct {
	Submitted int `json:"submitted"`
	Total     int `json:"total"`
	Failed    int `json:"failed"`
}

// ErrNoCandidates means the page yielded no deliverable order rows at
// all. It is deliberately distinct from a successful backfill where
// every record turned out to be a duplicate.
var ErrNoCandidates = errors.New("no order candidates found on the page")

// ErrNoSnapshot means no page state has been received from the browser
// companion yet, so there is nothing to sweep.
var ErrNoSnapshot = errors.New("no page snapshot received yet")

// Backfill is the on-demand wide sweep over the most recent page
// snapshot. Unlike the live path it evaluates both selector tiers
// unconditionally, then submits sequentially through the same pipeline
// and ledger, so orders delivered live are skipped here and orders
// delivered here are skipped by later live scans.
func (s *Service) Backfill(ctx context.Context) (BackfillResult, error) {
	ctx, span := tracer.Start(ctx, "Backfill")
	defer span.End()

	snapshot, ok := s.latestSnapshot()
	if !ok {
		return BackfillResult{}, ErrNoSnapshot
	}

	settings := s.Settings()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot.HTML))
	if err != nil {
		span.RecordError(err)
		return BackfillResult{}, fmt.Errorf("failed to parse page snapshot: %w", err)
	}

	attr := bybit.Attribution{
		EmployeeID:   settings.EmployeeID,
		AccountLabel: settings.AccountLabel,
	}

	// candidates come DOM-deduplicated, records are additionally
	// deduplicated by order id with the first occurrence winning
	seen := map[string]bool{}
	var records []bybit.OrderRecord
	candidates := bybit.AllCandidates(ctx, doc)
	for _, candidate := range candidates {
		record, ok := bybit.Extract(candidate.Text, attr, time.Now())
		if !ok {
			continue
		}
		if seen[record.OrderID] {
			continue
		}
		seen[record.OrderID] = true
		records = append(records, record)
	}

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("records", len(records)),
	)

	if len(records) == 0 {
		s.Presenter().Notify(ctx, NotifyError, "no orders found on the page")
		return BackfillResult{}, ErrNoCandidates
	}

	result := BackfillResult{Total: len(records)}
	for _, record := range records {
		outcome := s.pipeline.SubmitQuiet(ctx, settings.Endpoint, record)
		switch {
		case outcome.Kind == OutcomeDelivered:
			result.Submitted++
		case outcome.Failed():
			result.Failed++
		}
	}

	slog.InfoContext(ctx, "backfill complete",
		"submitted", result.Submitted,
		"total", result.Total,
		"failed", result.Failed,
	)

	switch {
	case result.Submitted > 0 && result.Failed > 0:
		s.Presenter().Notify(ctx, NotifyError, fmt.Sprintf(
			"backfill delivered %d of %d orders, %d failed",
			result.Submitted, result.Total, result.Failed,
		))
	case result.Submitted > 0:
		s.Presenter().Notify(ctx, NotifySuccess, fmt.Sprintf(
			"backfill delivered %d of %d orders",
			result.Submitted, result.Total,
		))
	case result.Failed > 0:
		s.Presenter().Notify(ctx, NotifyError, "could not deliver any orders")
	default:
		s.Presenter().Notify(ctx, NotifyInfo, "all orders were already delivered")
	}

	return result, nil
}
