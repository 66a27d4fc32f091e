package ingest

import (
	"errors"

	"github.com/tinytelemetry/testtrace/internal/attr"
	"github.com/tinytelemetry/testtrace/internal/timeline"
)

// KeyHandle is the backend-interned handle for a declared attribute key.
type KeyHandle uint32

// ErrNoTimelineOpen is returned by metadata and event calls issued while
// no timeline is selected.
var ErrNoTimelineOpen = errors.New("ingest: no timeline open")

// Gateway is the collaborator contract the session core drives. One
// timeline is selected at a time; metadata and event submissions target
// the current selection.
type Gateway interface {
	// OpenTimeline selects id as the target for subsequent metadata and
	// event calls, creating the timeline at the backend if needed.
	OpenTimeline(id timeline.ID) error

	// CloseTimeline deselects the current timeline. Deselecting with no
	// selection is a no-op.
	CloseTimeline()

	// DeclareKey interns an attribute key name at the backend. The backend
	// treats repeated declarations of one name as idempotent, but callers
	// are expected to cache handles and declare each name once.
	DeclareKey(name string) (KeyHandle, error)

	// WriteTimelineMetadata attaches attributes to the selected timeline.
	WriteTimelineMetadata(attrs map[KeyHandle]attr.Value) error

	// SubmitEvent records one event on the selected timeline. ordering is
	// the strictly increasing submission token assigned by the caller.
	SubmitEvent(ordering uint64, attrs map[KeyHandle]attr.Value) error

	// Flush blocks until all previously submitted events are durably sent.
	Flush() error

	// Close releases the gateway connection.
	Close() error
}
