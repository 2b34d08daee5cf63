package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ordertrack-backend/lib/scrapers/bybit"
	"ordertrack-backend/lib/telemetry"
	"ordertrack-backend/services/tracker/watch"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("ordertrack.services.tracker")

// Service owns one tracking session: the settings, the dedup ledger and
// the delivery pipeline all live here and die together. Two services
// never share a ledger, which keeps independent instances (tests
// included) from contaminating each other.
type Service struct {
	store    SettingsStore
	settings atomic.Pointer[Settings]
	ledger   *Ledger
	pipeline *Pipeline
	client   *resty.Client

	// guarded by its own mutex: presenters of different concrete types
	// (page session, slog fallback) are swapped in and out at runtime
	presenterMu sync.Mutex
	presenter   Presenter

	mu            sync.Mutex
	lastSnapshot  watch.Snapshot
	hasSnapshot   bool
	snapshotsSeen int64
}

func NewService(ctx context.Context, database *sql.DB) (*Service, error) {
	store := NewSettingsStore(database)
	settings, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	client := resty.New().SetTimeout(time.Second * 10)
	telemetry.InstrumentResty(client, "ordertrack.services.tracker")

	s := &Service{
		store:  store,
		ledger: NewLedger(),
		client: client,
	}
	s.settings.Store(&settings)
	s.presenter = SlogPresenter{}
	s.pipeline = NewPipeline(s.ledger, s.Presenter)
	return s, nil
}

func (s *Service) Settings() Settings {
	return *s.settings.Load()
}

// UpdateSettings persists the new values and swaps them into the live
// session, the next scan cycle sees them without a restart.
func (s *Service) UpdateSettings(ctx context.Context, settings Settings) error {
	err := s.store.Save(ctx, settings)
	if err != nil {
		return err
	}
	s.settings.Store(&settings)

	if !settings.Ready() {
		slog.InfoContext(ctx, "tracking inactive",
			"tracking_enabled", settings.TrackingEnabled,
			"employee_configured", settings.EmployeeID != "",
		)
	}
	return nil
}

func (s *Service) Presenter() Presenter {
	s.presenterMu.Lock()
	defer s.presenterMu.Unlock()
	return s.presenter
}

// SetPresenter routes notifications to the given page session.
func (s *Service) SetPresenter(p Presenter) {
	s.presenterMu.Lock()
	defer s.presenterMu.Unlock()
	s.presenter = p
}

// ClearPresenter falls back to log-only notifications, used when the
// page session disconnects.
func (s *Service) ClearPresenter() {
	s.presenterMu.Lock()
	defer s.presenterMu.Unlock()
	s.presenter = SlogPresenter{}
}

type Employee struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Telegram string `json:"telegram"`
}

// Employees lists the configured employees from the backend, used to
// populate the settings choices. Failure here is non-fatal, it surfaces
// as a settings-load error only.
func (s *Service) Employees(ctx context.Context) ([]Employee, error) {
	endpoint := s.Settings().Endpoint

	var employees []Employee
	res, err := s.client.R().
		SetContext(ctx).
		SetResult(&employees).
		// decode as json even when the backend omits the content type
		ForceContentType("application/json").
		Get(endpoint + "/api/employees")
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("backend responded with %d", res.StatusCode())
	}
	return employees, nil
}

// CheckBackend probes backend connectivity on startup and tells the
// user about the result.
func (s *Service) CheckBackend(ctx context.Context) {
	_, err := s.Employees(ctx)
	if err != nil {
		slog.WarnContext(ctx, "backend connectivity probe failed", "err", err)
		s.Presenter().Notify(ctx, NotifyError,
			"could not reach the accounting backend, check the endpoint url in the tracker settings")
		return
	}
	s.Presenter().Notify(ctx, NotifySuccess, "connected to the accounting backend")
}

func (s *Service) noteSnapshot(snapshot watch.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSnapshot = snapshot
	s.hasSnapshot = true
	s.snapshotsSeen++
}

func (s *Service) latestSnapshot() (watch.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnapshot, s.hasSnapshot
}

// Run consumes the debounced snapshot stream until the context is
// cancelled. Scans run one at a time on this goroutine, deliveries they
// dispatch do not block the next cycle.
func (s *Service) Run(ctx context.Context, snapshots <-chan watch.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot := <-snapshots:
			s.noteSnapshot(snapshot)
			s.Scan(ctx, snapshot)
		}
	}
}

// Scan runs one selection/classification/extraction cycle over a page
// snapshot. Each deliverable record is handed to the pipeline on its
// own goroutine: deliveries already in flight are never cancelled by
// later cycles, they are fire-and-forget.
func (s *Service) Scan(ctx context.Context, snapshot watch.Snapshot) {
	ctx, span := tracer.Start(ctx, "Scan")
	defer span.End()

	settings := s.Settings()
	if !settings.Ready() {
		slog.DebugContext(ctx, "skipping scan, tracking inactive")
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot.HTML))
	if err != nil {
		span.RecordError(err)
		slog.WarnContext(ctx, "failed to parse page snapshot", "err", err)
		return
	}

	attr := bybit.Attribution{
		EmployeeID:   settings.EmployeeID,
		AccountLabel: settings.AccountLabel,
	}

	candidates := bybit.Candidates(ctx, doc)
	dispatched := 0
	for _, candidate := range candidates {
		record, ok := bybit.Extract(candidate.Text, attr, time.Now())
		if !ok {
			slog.DebugContext(ctx, "discarding row missing required fields",
				"text_length", len(candidate.Text),
			)
			continue
		}
		dispatched++
		go s.pipeline.Submit(context.WithoutCancel(ctx), settings.Endpoint, record)
	}

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("dispatched", dispatched),
	)
	slog.DebugContext(ctx, "scan cycle complete",
		"candidates", len(candidates),
		"dispatched", dispatched,
	)
}

type Status struct {
	TrackingEnabled    bool  `json:"tracking_enabled"`
	EmployeeConfigured bool  `json:"employee_configured"`
	SnapshotsSeen      int64 `json:"snapshots_seen"`
	DeliveredOrders    int   `json:"delivered_orders"`
	HasSnapshot        bool  `json:"has_snapshot"`
}

func (s *Service) Status() Status {
	settings := s.Settings()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		TrackingEnabled:    settings.TrackingEnabled,
		EmployeeConfigured: settings.EmployeeID != "",
		SnapshotsSeen:      s.snapshotsSeen,
		DeliveredOrders:    s.ledger.Size(),
		HasSnapshot:        s.hasSnapshot,
	}
}
