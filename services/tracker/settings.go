package tracker

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"ordertrack-backend/services/tracker/db"
)

const defaultEndpoint = "http://localhost:5000"

// Settings is the user configuration attached to every extracted
// record. It is loaded once at startup and replaced wholesale whenever
// the user saves new values, the next scan cycle picks the replacement
// up without a restart.
type Settings struct {
	Endpoint        string `json:"endpoint"`
	EmployeeID      string `json:"employee_id"`
	AccountLabel    string `json:"account_label"`
	TrackingEnabled bool   `json:"tracking_enabled"`
}

// Ready reports whether tracking can run at all. An unconfigured
// tracker is not an error, it just stays inactive.
func (s Settings) Ready() bool {
	return s.TrackingEnabled && s.EmployeeID != ""
}

const (
	settingEndpoint        = "endpoint"
	settingEmployeeID      = "employee_id"
	settingAccountLabel    = "account_label"
	settingTrackingEnabled = "tracking_enabled"
)

// SettingsStore persists settings in a key-value table.
type SettingsStore struct {
	qry *db.Queries
}

func NewSettingsStore(database *sql.DB) SettingsStore {
	return SettingsStore{qry: db.New(database)}
}

func (s SettingsStore) get(ctx context.Context, key string) (string, error) {
	value, err := s.qry.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s SettingsStore) Load(ctx context.Context) (Settings, error) {
	endpoint, err := s.get(ctx, settingEndpoint)
	if err != nil {
		return Settings{}, err
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	employeeID, err := s.get(ctx, settingEmployeeID)
	if err != nil {
		return Settings{}, err
	}
	accountLabel, err := s.get(ctx, settingAccountLabel)
	if err != nil {
		return Settings{}, err
	}
	trackingEnabled, err := s.get(ctx, settingTrackingEnabled)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Endpoint:        endpoint,
		EmployeeID:      employeeID,
		AccountLabel:    accountLabel,
		TrackingEnabled: trackingEnabled == "true",
	}, nil
}

func (s SettingsStore) Save(ctx context.Context, settings Settings) error {
	err := s.qry.SetSetting(ctx, settingEndpoint, settings.Endpoint)
	if err != nil {
		return err
	}
	err = s.qry.SetSetting(ctx, settingEmployeeID, settings.EmployeeID)
	if err != nil {
		return err
	}
	err = s.qry.SetSetting(ctx, settingAccountLabel, settings.AccountLabel)
	if err != nil {
		return err
	}
	return s.qry.SetSetting(
		ctx,
		settingTrackingEnabled,
		strconv.FormatBool(settings.TrackingEnabled),
	)
}
