package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"ordertrack-backend/lib/configutil"
	"ordertrack-backend/lib/serviceutil"
	"ordertrack-backend/lib/telemetry"
	"ordertrack-backend/services/tracker"
	trackerdb "ordertrack-backend/services/tracker/db"
	"ordertrack-backend/services/tracker/server"
	"ordertrack-backend/services/tracker/watch"

	_ "modernc.org/sqlite"
)

type Config struct {
	Port       int    `json:"port"`
	Database   string `json:"database"`
	DebounceMs int    `json:"debounce_ms"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.Port == 0 {
		config.Port = 8450
	}
	if config.Database == "" {
		config.Database = "trackerd.db"
	}
	if config.DebounceMs == 0 {
		config.DebounceMs = 500
	}

	db, err := sql.Open("sqlite", config.Database)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	_, err = db.ExecContext(ctx, trackerdb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to apply schema", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "trackerd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	service, err := tracker.NewService(ctx, db)
	if err != nil {
		serviceutil.Fatal("failed to create tracker service", err)
	}

	debounce := watch.NewDebouncer(time.Duration(config.DebounceMs) * time.Millisecond)
	go debounce.Run(ctx)
	go service.Run(ctx, debounce.Snapshots())

	mux := http.NewServeMux()
	server.New(service, debounce).Register(mux)
	go serviceutil.StartHttpServer(config.Port, mux)

	<-ctx.Done()
}
