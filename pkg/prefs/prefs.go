// Package prefs stores host preferences and watches them for external changes.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/openfroyo/bootcoord/pkg/stores"
	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// EditorInitEnabled controls whether interactive sessions bootstrap outside run mode.
const EditorInitEnabled = "bootstrap.editor_init_enabled"

// Store reads and writes typed preferences.
type Store struct {
	db     stores.Store
	logger *telemetry.Logger
}

// New creates a preference store on top of db.
func New(db stores.Store, logger *telemetry.Logger) *Store {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Store{db: db, logger: logger.NewComponentLogger("prefs")}
}

// Bool returns the boolean preference key, or def when it has never been set.
func (s *Store) Bool(ctx context.Context, key string, def bool) (bool, error) {
	pref, err := s.db.GetPreference(ctx, key)
	if errors.Is(err, stores.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}

	v, err := strconv.ParseBool(pref.Value)
	if err != nil {
		return def, fmt.Errorf("preference %s is not a bool: %w", key, err)
	}
	return v, nil
}

// SetBool persists a boolean preference.
func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	if err := s.db.SetPreference(ctx, key, strconv.FormatBool(value)); err != nil {
		return err
	}
	s.logger.WithField("key", key).WithField("value", value).Info("Preference updated")
	return nil
}

// Toggle flips a boolean preference and returns the new value.
func (s *Store) Toggle(ctx context.Context, key string) (bool, error) {
	current, err := s.Bool(ctx, key, false)
	if err != nil {
		return false, err
	}
	next := !current
	if err := s.SetBool(ctx, key, next); err != nil {
		return current, err
	}
	return next, nil
}

// EditorInit reports the EditorInitEnabled flag. Read failures are logged and
// treated as the default, false.
func (s *Store) EditorInit(ctx context.Context) bool {
	v, err := s.Bool(ctx, EditorInitEnabled, false)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read editor init preference, using default")
		return false
	}
	return v
}
