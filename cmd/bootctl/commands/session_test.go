package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/bootcoord/pkg/boot"
	"github.com/openfroyo/bootcoord/pkg/config"
	"github.com/openfroyo/bootcoord/pkg/hostsync"
	"github.com/openfroyo/bootcoord/pkg/scene"
	"github.com/openfroyo/bootcoord/pkg/stores"
	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Catalog.Dir = filepath.Join(dir, "catalog")
	cfg.State.Path = filepath.Join(dir, "state", "state.db")
	cfg.Prefs.Watch = false
	cfg.Telemetry.Logging.Level = "error"
	cfg.Telemetry.Metrics.Enabled = false

	if err := os.MkdirAll(cfg.Catalog.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	defs := map[string]string{
		"runtime.cue": "address: \"BootSettings_Runtime\"\nname: \"RuntimeBoot\"\ntemplates: [{name: \"Audio\"}, {name: \"Input\"}]\n",
		"editor.yaml": "address: BootSettings_Editor\nname: EditorBoot\ntemplates: [{name: Gizmos}, null]\n",
	}
	for name, content := range defs {
		if err := os.WriteFile(filepath.Join(cfg.Catalog.Dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func startSession(t *testing.T, cfg *config.Config) (*session, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()

	rt, err := newRuntime(ctx, cfg, true, "test")
	if err != nil {
		t.Fatalf("newRuntime() error = %v", err)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	go func() { _ = rt.syncer.Run(loopCtx) }()
	t.Cleanup(func() {
		cancel()
		_ = rt.Close(context.Background())
	})

	if err := rt.graph.OpenDocument("Main"); err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	s := &session{rt: rt, out: out}
	if err := s.dispatch(ctx, hostsync.ProcessStart); err != nil {
		t.Fatal(err)
	}
	return s, out
}

func run(t *testing.T, s *session, line string) {
	t.Helper()
	if err := s.exec(context.Background(), line); err != nil && !errors.Is(err, errQuit) {
		t.Fatalf("exec(%q) error = %v", line, err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	s, _ := startSession(t, cfg)

	if got := s.rt.coord.Phase(); got != boot.PhaseUninitialized {
		t.Fatalf("Phase() with preference unset = %s", got)
	}

	run(t, s, "toggle")
	if !s.rt.coord.IsInitialized() {
		t.Fatalf("Phase() after toggle = %s, want initialized", s.rt.coord.Phase())
	}
	// Two containers, Gizmos, Audio, Input.
	if got := s.rt.graph.Count(); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}

	run(t, s, "spawn Player")
	docPath := filepath.Join(t.TempDir(), "main.yaml")
	run(t, s, "save "+docPath)

	doc, err := scene.LoadDocument(docPath)
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].Name != "Player" {
		t.Errorf("saved nodes = %+v, want only Player", doc.Nodes)
	}
	if !s.rt.coord.IsInitialized() {
		t.Error("not re-initialized after save")
	}

	run(t, s, "play")
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.rt.coord.WaitInitialized(waitCtx); err != nil {
		t.Fatalf("WaitInitialized() in run mode error = %v", err)
	}

	run(t, s, "stop")
	if s.rt.host.InRunMode() || !s.rt.coord.IsInitialized() {
		t.Errorf("after stop: run mode = %v, phase = %s", s.rt.host.InRunMode(), s.rt.coord.Phase())
	}

	run(t, s, "quit")
	if got := s.rt.coord.Phase(); got != boot.PhaseUninitialized {
		t.Errorf("Phase() after quit = %s", got)
	}
	if got := s.rt.graph.Count(); got != 1 {
		t.Errorf("Count() after quit = %d, want only Player", got)
	}

	entries, err := s.rt.store.ListJournal(ctx, stores.JournalFilter{Type: telemetry.EventTypePhaseChanged})
	if err != nil {
		t.Fatalf("ListJournal() error = %v", err)
	}
	if len(entries) == 0 {
		t.Error("no phase changes journaled")
	}
}

func TestSessionCloseAndOpen(t *testing.T) {
	cfg := testConfig(t)
	s, _ := startSession(t, cfg)

	run(t, s, "toggle")
	run(t, s, "close")
	if s.rt.coord.IsInitialized() {
		t.Fatal("still initialized after close")
	}
	if s.rt.graph.Count() != 0 {
		t.Errorf("Count() after close = %d", s.rt.graph.Count())
	}

	run(t, s, "open Level2")
	if !s.rt.coord.IsInitialized() {
		t.Errorf("Phase() after open = %s, want initialized", s.rt.coord.Phase())
	}
	if got := s.rt.graph.ActiveDocument(); got != "Level2" {
		t.Errorf("ActiveDocument() = %q", got)
	}
}

func TestSessionErrors(t *testing.T) {
	cfg := testConfig(t)
	s, _ := startSession(t, cfg)
	ctx := context.Background()

	for _, line := range []string{"bogus", "save", "stop", "spawn", "open"} {
		if err := s.exec(ctx, line); err == nil {
			t.Errorf("exec(%q) succeeded", line)
		}
	}
	if err := s.exec(ctx, ""); err != nil {
		t.Errorf("exec(\"\") error = %v", err)
	}
}

func TestSessionStatus(t *testing.T) {
	cfg := testConfig(t)
	s, out := startSession(t, cfg)

	run(t, s, "toggle")
	out.Reset()
	run(t, s, "status")

	for _, want := range []string{"phase:       initialized", "document:    Main", boot.InteractiveKey, boot.ProductionKey} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSessionServe(t *testing.T) {
	cfg := testConfig(t)
	s, out := startSession(t, cfg)

	in := strings.NewReader("toggle\nstatus\nquit\nstatus\n")
	if err := s.serve(context.Background(), in); err != nil {
		t.Fatalf("serve() error = %v", err)
	}
	if s.rt.coord.IsInitialized() {
		t.Error("still initialized after quit")
	}
	if strings.Count(out.String(), "phase:") != 1 {
		t.Error("commands after quit were executed")
	}
}
