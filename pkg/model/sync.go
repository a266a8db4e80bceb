package model

// SyncState tracks whether an entity's values have been confirmed by the
// device.
type SyncState uint8

const (
	// Confirmed values match the last device snapshot.
	Confirmed SyncState = iota

	// Pending values were changed locally and the command has been sent, but
	// no snapshot has echoed them yet.
	Pending

	// PendingDelete entities have been deleted by the user and are waiting
	// for the renderer to acknowledge removal.
	PendingDelete
)

// String returns the sync state name.
func (s SyncState) String() string {
	switch s {
	case Confirmed:
		return "CONFIRMED"
	case Pending:
		return "PENDING"
	case PendingDelete:
		return "PENDING_DELETE"
	default:
		return "UNKNOWN"
	}
}
