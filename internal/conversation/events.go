package conversation

// EventKind labels the union of facts a Conversation can append to its
// log. Each kind carries exactly the fields needed to reproduce the
// corresponding server wire message (internal/frame.ServerMessage), but
// Seq here is a full uint64 so the log can stay strictly increasing and
// dense across an arbitrarily long game; it is truncated to the wire's
// 16-bit Seq at the Connection boundary.
type EventKind int

const (
	EventPlayerAdded EventKind = iota
	EventPlayerName
	EventPlayerFlags
	EventTileChanged
	EventPlayerShouted
	EventMessage
	EventNTiles
	EventLanguage
	EventSync
	EventEnd
)

// Event is one entry in a Conversation's append-only log.
type Event struct {
	Seq  uint64
	Kind EventKind

	// PLAYER_ADDED / PLAYER_NAME / PLAYER_FLAGS / PLAYER_SHOUTED
	Num   uint8
	Name  string
	Flags Flags

	// TILE_CHANGED
	Tile Tile

	// MESSAGE
	SenderNum uint8
	Text      string

	// N_TILES
	NTiles uint8

	// LANGUAGE
	Language string

	// SYNC
	SyncPayload []byte
}

// eventLogCapacity bounds how many events stay live in the ring before the
// oldest are compacted behind a synthetic SYNC snapshot. Sized generously
// above a worst-case full 122-tile game's tile-draw and flag churn so
// compaction is rare in practice and only kicks in for long chat-heavy
// sessions or very slow reconnects.
const eventLogCapacity = 4096

// eventLog is a fixed-capacity ring buffer of Events. Sequence numbers are
// assigned by the log itself, starting at 1 and increasing by exactly 1
// per append, for the lifetime of the Conversation — even across
// compaction, so a sequence number always identifies a unique fact.
type eventLog struct {
	data    []Event
	head    int // index of the oldest retained entry
	count   int
	nextSeq uint64
}

func newEventLog() *eventLog {
	return &eventLog{
		data:    make([]Event, eventLogCapacity),
		nextSeq: 1,
	}
}

// append assigns ev.Seq and stores it, evicting the oldest entry if the
// ring is full. O(1).
func (l *eventLog) append(ev Event) Event {
	ev.Seq = l.nextSeq
	l.nextSeq++

	if l.count == len(l.data) {
		l.data[l.head] = ev
		l.head = (l.head + 1) % len(l.data)
	} else {
		idx := (l.head + l.count) % len(l.data)
		l.data[idx] = ev
		l.count++
	}
	return ev
}

// baseline is the sequence number of the oldest event still retained, or
// nextSeq if the log is empty. Any seq strictly less than baseline has
// been compacted away.
func (l *eventLog) baseline() uint64 {
	if l.count == 0 {
		return l.nextSeq
	}
	return l.nextSeq - uint64(l.count)
}

// get returns the event with the given sequence number, if still retained.
func (l *eventLog) get(seq uint64) (Event, bool) {
	if seq < l.baseline() || seq >= l.nextSeq {
		return Event{}, false
	}
	offset := seq - l.baseline()
	idx := (l.head + int(offset)) % len(l.data)
	return l.data[idx], true
}

// from returns every retained event with Seq >= seq, in order.
func (l *eventLog) from(seq uint64) []Event {
	base := l.baseline()
	if seq < base {
		seq = base
	}
	if seq >= l.nextSeq {
		return nil
	}
	start := int(seq - base)
	out := make([]Event, 0, l.count-start)
	for i := start; i < l.count; i++ {
		idx := (l.head + i) % len(l.data)
		out = append(out, l.data[idx])
	}
	return out
}
