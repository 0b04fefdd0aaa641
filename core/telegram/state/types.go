package state

// State identifies the prompt a user is expected to answer next.
type State string

const (
	// StateIdle indicates there is no pending prompt for the user.
	StateIdle State = "idle"
)

// Manager records at most one open slot per user.
type Manager interface {
	// Open sets the user's slot, replacing any slot left unanswered.
	Open(userID int64, st State)
	// Peek returns the open slot or StateIdle.
	Peek(userID int64) State
	// Take returns the open slot and closes it in one step.
	Take(userID int64) State
	// Close discards the user's slot. Closing an idle user is a no-op.
	Close(userID int64)
	// InProgress reports whether the user has an open slot.
	InProgress(userID int64) bool
	// Len returns the number of users with an open slot.
	Len() int
}
