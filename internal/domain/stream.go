package domain

const (
	// CursorLayout formats packet import times so that lexicographic order
	// matches chronological order.
	CursorLayout = "2006-01-02 15:04:05"

	// EpochCursor is the watermark before the first successful poll.
	EpochCursor = "1970-01-01 00:00:00"
)

// TailEvent is one emission from a packet tail. Either Packet is set, or Err
// carries a transient poll failure; the stream continues after either.
// Cursor is the session watermark at emission time.
type TailEvent struct {
	Packet *Packet
	Cursor string
	Err    error
}
