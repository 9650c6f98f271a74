package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openfroyo/bootcoord/pkg/boot"
	"github.com/openfroyo/bootcoord/pkg/hostsync"
	"github.com/openfroyo/bootcoord/pkg/prefs"
)

// errQuit ends an edit session.
var errQuit = errors.New("quit")

const sessionHelp = `Commands:
  play            enter run mode
  stop            leave run mode
  spawn <name>    add an object to the open document
  save <path>     save the open document
  close           close the open document
  open <name>     open a document
  toggle          flip the editor init preference
  status          show coordinator state
  quit            shut down and exit`

// session drives an interactive host from text commands, translating each into
// the host events an authoring tool would fire.
type session struct {
	rt  *runtime
	out io.Writer
}

// Status is the state printed by the status command.
type Status struct {
	Phase      boot.Phase           `json:"phase"`
	RunMode    bool                 `json:"run_mode"`
	Document   string               `json:"document,omitempty"`
	EditorInit bool                 `json:"editor_init"`
	Nodes      int                  `json:"nodes"`
	Resources  []boot.ResourceState `json:"resources"`
	Armed      []hostsync.Event     `json:"armed"`
}

// serve reads commands from in until quit, EOF, or ctx is done.
func (s *session) serve(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprint(s.out, "> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := s.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			fmt.Fprint(s.out, "> ")
		}
	}
}

// exec runs one command line.
func (s *session) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "play":
		if s.rt.host.InRunMode() {
			return fmt.Errorf("already in run mode")
		}
		s.rt.host.SetEnteringRunMode(true)
		if err := s.dispatch(ctx, hostsync.ExitingEditMode); err != nil {
			return err
		}
		s.rt.setRunMode(true)
		return s.dispatch(ctx, hostsync.EnteredRunMode)

	case "stop":
		if !s.rt.host.InRunMode() {
			return fmt.Errorf("not in run mode")
		}
		if err := s.dispatch(ctx, hostsync.ExitingRunMode); err != nil {
			return err
		}
		s.rt.setRunMode(false)
		return s.dispatch(ctx, hostsync.EnteredEditMode)

	case "spawn":
		if len(args) != 1 {
			return fmt.Errorf("usage: spawn <name>")
		}
		if s.rt.graph.ActiveDocument() == "" {
			return fmt.Errorf("no document open")
		}
		id, err := s.rt.graph.Instantiate(ctx, &boot.Template{Name: args[0]}, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "spawned %s (%s)\n", args[0], id)
		return nil

	case "save":
		if len(args) != 1 {
			return fmt.Errorf("usage: save <path>")
		}
		if s.rt.graph.ActiveDocument() == "" {
			return fmt.Errorf("no document open")
		}
		if err := s.dispatch(ctx, hostsync.DocumentSaving); err != nil {
			return err
		}
		doc, saveErr := s.rt.graph.SaveDocument(args[0])
		// The host reports completion even when the write failed.
		if err := s.dispatch(ctx, hostsync.DocumentSaved); err != nil {
			return err
		}
		if saveErr != nil {
			return saveErr
		}
		fmt.Fprintf(s.out, "saved %s: %d root object(s)\n", args[0], len(doc.Nodes))
		return nil

	case "close":
		if s.rt.graph.ActiveDocument() == "" {
			return fmt.Errorf("no document open")
		}
		if err := s.dispatch(ctx, hostsync.DocumentClosing); err != nil {
			return err
		}
		return s.rt.graph.CloseDocument()

	case "open":
		if len(args) != 1 {
			return fmt.Errorf("usage: open <name>")
		}
		if s.rt.graph.ActiveDocument() != "" {
			if err := s.dispatch(ctx, hostsync.DocumentClosing); err != nil {
				return err
			}
		}
		if err := s.rt.graph.OpenDocument(args[0]); err != nil {
			return err
		}
		return s.dispatch(ctx, hostsync.ActiveDocumentChanged)

	case "toggle":
		v, err := s.rt.prefs.Toggle(ctx, prefs.EditorInitEnabled)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s = %t\n", prefs.EditorInitEnabled, v)
		return s.dispatch(ctx, hostsync.PreferenceToggled)

	case "status":
		return s.printStatus(ctx)

	case "help":
		fmt.Fprintln(s.out, sessionHelp)
		return nil

	case "quit", "exit":
		if err := s.dispatch(ctx, hostsync.Quitting); err != nil {
			return err
		}
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

func (s *session) dispatch(ctx context.Context, ev hostsync.Event) error {
	action, err := s.rt.syncer.Dispatch(ctx, ev)
	if err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", ev, err)
	}
	if action != hostsync.ActionNone {
		fmt.Fprintf(s.out, "%s: %s\n", ev, action)
	}
	return nil
}

func (s *session) status(ctx context.Context) Status {
	return Status{
		Phase:      s.rt.coord.Phase(),
		RunMode:    s.rt.host.InRunMode(),
		Document:   s.rt.graph.ActiveDocument(),
		EditorInit: s.rt.prefs.EditorInit(ctx),
		Nodes:      s.rt.graph.Count(),
		Resources:  s.rt.coord.Snapshot(),
		Armed:      s.rt.syncer.Armed(),
	}
}

func (s *session) printStatus(ctx context.Context) error {
	st := s.status(ctx)
	if jsonOutput {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Fprintf(s.out, "phase:       %s\n", st.Phase)
	fmt.Fprintf(s.out, "run mode:    %t\n", st.RunMode)
	fmt.Fprintf(s.out, "document:    %s\n", st.Document)
	fmt.Fprintf(s.out, "editor init: %t\n", st.EditorInit)
	fmt.Fprintf(s.out, "nodes:       %d\n", st.Nodes)
	for _, r := range st.Resources {
		fmt.Fprintf(s.out, "  %-24s %-16s active=%t instances=%d\n", r.Key, r.Name, r.Active, r.Instances)
	}
	fmt.Fprintf(s.out, "armed:       %v\n", st.Armed)
	return nil
}
