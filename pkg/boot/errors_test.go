package boot

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	cause := fmt.Errorf("%w: BootSettings_Runtime", ErrNotFound)

	tests := []struct {
		name          string
		err           error
		resolution    bool
		instantiation bool
		config        bool
	}{
		{"resolution", NewResolutionError("k", cause), true, false, false},
		{"instantiation", NewInstantiationError("r", 2, errors.New("x")), false, true, false},
		{"teardown", NewTeardownError("k", "release", ErrReleased), false, false, false},
		{"config", NewConfigError("bad definition", nil), false, false, true},
		{"wrapped", fmt.Errorf("outer: %w", NewResolutionError("k", cause)), true, false, false},
		{"plain", errors.New("plain"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsResolution(tt.err); got != tt.resolution {
				t.Errorf("IsResolution() = %v", got)
			}
			if got := IsInstantiation(tt.err); got != tt.instantiation {
				t.Errorf("IsInstantiation() = %v", got)
			}
			if got := IsConfig(tt.err); got != tt.config {
				t.Errorf("IsConfig() = %v", got)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := NewResolutionError("BootSettings_Runtime", fmt.Errorf("%w: missing", ErrNotFound))
	if !errors.Is(err, ErrNotFound) {
		t.Error("resolution error should unwrap to ErrNotFound")
	}
	if !errors.Is(err, &Error{Class: ClassResolution}) {
		t.Error("errors.Is should match by class")
	}

	msg := err.Error()
	for _, part := range []string{"[resolution]", "key=BootSettings_Runtime", "operation=resolve", "missing"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}
}

func TestPhaseValidate(t *testing.T) {
	for _, p := range []Phase{PhaseUninitialized, PhaseInitializing, PhaseInitialized, PhaseDeInitializing} {
		if err := p.Validate(); err != nil {
			t.Errorf("%s.Validate() error = %v", p, err)
		}
		if p.Ordinal() < 0 {
			t.Errorf("%s.Ordinal() = %d", p, p.Ordinal())
		}
	}
	if err := Phase("bogus").Validate(); err == nil {
		t.Error("invalid phase validated")
	}
	if !PhaseInitializing.IsTransient() || PhaseInitialized.IsTransient() {
		t.Error("IsTransient() wrong")
	}
}

func TestDefaultKeys(t *testing.T) {
	if keys := DefaultKeys(ContextInteractive); len(keys) != 2 || keys[0] != InteractiveKey || keys[1] != ProductionKey {
		t.Errorf("DefaultKeys(interactive) = %v", keys)
	}
	if keys := DefaultKeys(ContextProduction); len(keys) != 1 || keys[0] != ProductionKey {
		t.Errorf("DefaultKeys(production) = %v", keys)
	}
}
