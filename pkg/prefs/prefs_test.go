package prefs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/bootcoord/pkg/stores"
)

func openStore(t *testing.T, path string) *stores.SQLiteStore {
	t.Helper()

	db, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := db.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoolDefault(t *testing.T) {
	s := New(openStore(t, stores.MemoryPath), nil)
	ctx := context.Background()

	v, err := s.Bool(ctx, EditorInitEnabled, false)
	if err != nil || v {
		t.Errorf("Bool() = %v, %v; want false, nil", v, err)
	}
	if s.EditorInit(ctx) {
		t.Error("EditorInit() = true before any write")
	}
}

func TestSetBoolAndToggle(t *testing.T) {
	s := New(openStore(t, stores.MemoryPath), nil)
	ctx := context.Background()

	if err := s.SetBool(ctx, EditorInitEnabled, true); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if !s.EditorInit(ctx) {
		t.Error("EditorInit() = false after SetBool(true)")
	}

	v, err := s.Toggle(ctx, EditorInitEnabled)
	if err != nil || v {
		t.Errorf("Toggle() = %v, %v; want false, nil", v, err)
	}
	v, err = s.Toggle(ctx, EditorInitEnabled)
	if err != nil || !v {
		t.Errorf("Toggle() = %v, %v; want true, nil", v, err)
	}
}

func TestBoolRejectsGarbage(t *testing.T) {
	db := openStore(t, stores.MemoryPath)
	s := New(db, nil)
	ctx := context.Background()

	if err := db.SetPreference(ctx, EditorInitEnabled, "maybe"); err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}
	if _, err := s.Bool(ctx, EditorInitEnabled, false); err == nil {
		t.Error("Bool() accepted a non-boolean value")
	}
	if s.EditorInit(ctx) {
		t.Error("EditorInit() should fall back to false")
	}
}

func TestWatcherSeesExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.db")
	local := New(openStore(t, path), nil)
	remote := New(openStore(t, path), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(local, path, EditorInitEnabled, 20*time.Millisecond)
	changes := make(chan bool, 4)
	if err := w.Watch(ctx, func(v bool) { changes <- v }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	if err := remote.SetBool(context.Background(), EditorInitEnabled, true); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}

	select {
	case v := <-changes:
		if !v {
			t.Errorf("onChange(%v), want true", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the external write")
	}
	if !w.Last() {
		t.Error("Last() = false after change")
	}

	// Rewriting the same value is not a change.
	if err := remote.SetBool(context.Background(), EditorInitEnabled, true); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	select {
	case v := <-changes:
		t.Errorf("unexpected onChange(%v) for unchanged value", v)
	case <-time.After(200 * time.Millisecond):
	}
}
