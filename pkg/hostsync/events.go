package hostsync

// Event is a host lifecycle event.
type Event string

const (
	// ProcessStart is posted once when the host process starts.
	ProcessStart Event = "process_start"

	// ExitingEditMode is posted when an interactive host is about to enter run mode.
	ExitingEditMode Event = "exiting_edit_mode"

	// EnteredEditMode is posted when an interactive host is back in edit mode.
	EnteredEditMode Event = "entered_edit_mode"

	// EnteredRunMode is posted once an interactive host is in run mode.
	EnteredRunMode Event = "entered_run_mode"

	// ExitingRunMode is posted when an interactive host is about to leave run mode.
	ExitingRunMode Event = "exiting_run_mode"

	// DocumentSaving is posted before the active document is written.
	DocumentSaving Event = "document_saving"

	// DocumentSaved is posted after the active document was written.
	DocumentSaved Event = "document_saved"

	// DocumentClosing is posted before the active document is closed.
	DocumentClosing Event = "document_closing"

	// ActiveDocumentChanged is posted after a different document became active.
	ActiveDocumentChanged Event = "active_document_changed"

	// Quitting is posted when the host is shutting down.
	Quitting Event = "quitting"

	// PreferenceToggled is posted after the editor init preference changed.
	PreferenceToggled Event = "preference_toggled"
)

// Events lists every event in declaration order.
var Events = []Event{
	ProcessStart,
	ExitingEditMode,
	EnteredEditMode,
	EnteredRunMode,
	ExitingRunMode,
	DocumentSaving,
	DocumentSaved,
	DocumentClosing,
	ActiveDocumentChanged,
	Quitting,
	PreferenceToggled,
}

// Action is the coordinator call chosen for an event.
type Action string

const (
	ActionNone         Action = "none"
	ActionInitialize   Action = "initialize"
	ActionDeinitialize Action = "deinitialize"
)
