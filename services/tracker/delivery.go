package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ordertrack-backend/lib/scrapers/bybit"
	"ordertrack-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

type OutcomeKind string

const (
	OutcomeDelivered     OutcomeKind = "delivered"
	OutcomeSkipped       OutcomeKind = "skipped"
	OutcomeFailedNetwork OutcomeKind = "failed_network"
	OutcomeFailedServer  OutcomeKind = "failed_server"
	OutcomeFailedClient  OutcomeKind = "failed_client"
)

type Outcome struct {
	Kind OutcomeKind
	// backend status for OutcomeFailedServer, zero otherwise
	StatusCode int
}

func (o Outcome) Failed() bool {
	switch o.Kind {
	case OutcomeFailedNetwork, OutcomeFailedServer, OutcomeFailedClient:
		return true
	}
	return false
}

// Pipeline submits extracted records to the accounting backend. There
// is no retry loop in here on purpose: a failed record is simply left
// unmarked in the ledger and the next scan cycle or a manual backfill
// re-derives it from the page, which is the durable source of pending
// orders.
type Pipeline struct {
	client    *resty.Client
	ledger    *Ledger
	presenter func() Presenter

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewPipeline(ledger *Ledger, presenter func() Presenter) *Pipeline {
	client := resty.New().
		SetTimeout(time.Second * 15).
		SetHeader("Content-Type", "application/json")
	telemetry.InstrumentResty(client, "ordertrack.tracker.delivery")

	return &Pipeline{
		client:    client,
		ledger:    ledger,
		presenter: presenter,
		inflight:  map[string]struct{}{},
	}
}

// reserve claims an order id for delivery. It reports false when the id
// was already delivered this session or another delivery of the same id
// is currently in flight.
func (p *Pipeline) reserve(orderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ledger.HasSeen(orderID) {
		return false
	}
	if _, ok := p.inflight[orderID]; ok {
		return false
	}
	p.inflight[orderID] = struct{}{}
	return true
}

func (p *Pipeline) release(orderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, orderID)
}

// Submit runs one record through the delivery state machine and
// notifies the presenter about the outcome. Duplicates are skipped
// silently before any network call, rescans would otherwise spam the
// user on every page mutation.
func (p *Pipeline) Submit(ctx context.Context, endpoint string, record bybit.OrderRecord) Outcome {
	return p.submit(ctx, endpoint, record, false)
}

// SubmitQuiet is Submit without per-record notifications, backfill
// reports its failures as an aggregate count instead.
func (p *Pipeline) SubmitQuiet(ctx context.Context, endpoint string, record bybit.OrderRecord) Outcome {
	return p.submit(ctx, endpoint, record, true)
}

func (p *Pipeline) submit(ctx context.Context, endpoint string, record bybit.OrderRecord, quiet bool) Outcome {
	if !p.reserve(record.OrderID) {
		slog.DebugContext(ctx, "skipping already delivered order", "order_id", record.OrderID)
		return Outcome{Kind: OutcomeSkipped}
	}
	defer p.release(record.OrderID)

	notify := func(level NotifyLevel, message string) {
		if quiet {
			return
		}
		p.presenter().Notify(ctx, level, message)
	}

	res, err := p.client.R().
		SetContext(ctx).
		SetBody(record).
		Post(endpoint + "/api/orders")
	if err != nil {
		slog.WarnContext(ctx, "failed to reach backend",
			"order_id", record.OrderID,
			"endpoint", endpoint,
			"err", err,
		)
		notify(NotifyError, "backend unreachable, check the endpoint url in the tracker settings")
		return Outcome{Kind: OutcomeFailedNetwork}
	}

	if !res.IsSuccess() {
		slog.WarnContext(ctx, "backend rejected order",
			"order_id", record.OrderID,
			"status", res.StatusCode(),
		)
		notify(NotifyError, fmt.Sprintf("failed to save order: backend responded with %d", res.StatusCode()))
		return Outcome{Kind: OutcomeFailedServer, StatusCode: res.StatusCode()}
	}

	var body map[string]any
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		slog.WarnContext(ctx, "backend returned a malformed response",
			"order_id", record.OrderID,
			"err", err,
		)
		notify(NotifyError, "backend returned a malformed response")
		return Outcome{Kind: OutcomeFailedClient}
	}

	p.ledger.MarkSeen(record.OrderID)
	slog.InfoContext(ctx, "order delivered",
		"order_id", record.OrderID,
		"symbol", record.Symbol,
		"side", record.Side,
	)
	notify(NotifySuccess, fmt.Sprintf("order %s saved", record.OrderID))
	return Outcome{Kind: OutcomeDelivered}
}
