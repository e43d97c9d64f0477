package conversation

import (
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bpeel/verda-sxtelo-sub002/internal/tiledata"
)

// MaxNameBytes and MaxMessageBytes bound AddPlayer's name and
// SendMessage's text, matching the wire codec's own string bounds
// (internal/frame.MaxNameLen / MaxMessageLen).
const (
	MaxNameBytes    = 256
	MaxMessageBytes = 1000
)

// Conversation is one in-progress or finished game: its player roster,
// shared tile bag and table, chat log and shout arbitration, plus the
// append-only event log that Connections replay from. All exported
// methods lock internally; callers never touch the mutex.
type Conversation struct {
	mu sync.Mutex

	id       uint64
	language string

	players [NPlayersMax]*Player
	nPlayers int

	tiles        []Tile
	nTilesDrawn  int
	nTileTargets int

	state State

	nextTurnHolder uint8 // NoPlayer until the first player joins

	shoutingPlayer uint8 // NoPlayer if nobody is mid-shout
	shoutDeadline  time.Time

	log *eventLog

	lastActivity time.Time

	rng *rand.Rand

	notifyMu sync.Mutex
	notify   chan struct{}
}

// Wait returns a channel that closes the next time any operation
// appends to the event log, so a Connection can block on new events
// instead of polling EventsFrom in a loop. Always re-fetch events and
// call Wait again after it fires, since another goroutine may have
// already consumed the wakeup.
func (c *Conversation) Wait() <-chan struct{} {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	return c.notify
}

// wake closes the current notify channel and replaces it, releasing
// every goroutine blocked in Wait. It uses its own mutex, distinct from
// c.mu, so it is safe to call with or without c.mu held.
func (c *Conversation) wake() {
	c.notifyMu.Lock()
	close(c.notify)
	c.notify = make(chan struct{})
	c.notifyMu.Unlock()
}

// New creates a conversation in StateAwaitingStart for the given
// language and target tile count (tiledata.ShortTileCount or
// tiledata.LongTileCount), seeded from rng (pass a fresh
// rand.New(rand.NewSource(...)) per conversation; tests can inject a
// deterministic source).
func New(id uint64, language string, nTileTargets int, rng *rand.Rand) (*Conversation, error) {
	letters, err := tiledata.FillBag(language, nTileTargets, rng)
	if err != nil {
		return nil, err
	}

	tiles := make([]Tile, len(letters))
	for i, letter := range letters {
		tiles[i] = Tile{
			Index:      uint8(i),
			Letter:     letter,
			LastPlayer: NoPlayer,
			InBag:      true,
		}
	}

	return &Conversation{
		id:             id,
		language:       language,
		tiles:          tiles,
		nTileTargets:   nTileTargets,
		nextTurnHolder: NoPlayer,
		shoutingPlayer: NoPlayer,
		log:            newEventLog(),
		lastActivity:   time.Now(),
		rng:            rng,
		notify:         make(chan struct{}),
	}, nil
}

// ID returns the conversation's allocator-assigned identifier.
func (c *Conversation) ID() uint64 { return c.id }

// IndexID implements hashindex.Identified.
func (c *Conversation) IndexID() uint64 { return c.id }

// State returns the current lifecycle state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Language returns the conversation's configured language.
func (c *Conversation) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// NPlayers returns the number of occupied seats.
func (c *Conversation) NPlayers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nPlayers
}

// HasFreeSeat reports whether a seat is open and the conversation has not
// finished (whether the game has started is not considered); used by matchmaking to pick a candidate public game before
// attempting the join under its own lock.
func (c *Conversation) HasFreeSeat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nPlayers < NPlayersMax && c.state != StateFinished
}

func (c *Conversation) touch() {
	c.lastActivity = time.Now()
}

// IdleSince returns the time of the most recent operation that changed
// the conversation (a join, a game action, a chat line or a leave);
// callers compare it against ConversationIdleTimeout.
func (c *Conversation) IdleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Players returns every seated player (connected or not), for callers that
// need to walk the full roster, such as the registry cleaning up its
// player index when a conversation is torn down.
func (c *Conversation) Players() []*Player {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Player, 0, c.nPlayers)
	for i := 0; i < c.nPlayers; i++ {
		if p := c.players[i]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (c *Conversation) anyConnected() bool {
	for i := 0; i < c.nPlayers; i++ {
		if p := c.players[i]; p != nil && p.Flags&FlagConnected != 0 {
			return true
		}
	}
	return false
}

// AddPlayer seats a new player under the given display name, assigning
// it the next free, densely-increasing seat number. The first player
// ever seated is immediately granted FlagNextTurn, matching join
// behaviour observed end to end: a solo player can call Turn without
// waiting on anyone else.
func (c *Conversation) AddPlayer(id uint64, name string) (*Player, []Event, error) {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if c.state == StateFinished {
		return nil, nil, ErrConversationClosed
	}
	if c.nPlayers >= NPlayersMax {
		return nil, nil, ErrConversationFull
	}
	if len(name) == 0 || len(name) > MaxNameBytes || !utf8.ValidString(name) {
		return nil, nil, ErrInvalidName
	}

	num := uint8(c.nPlayers)
	p := &Player{
		ID:     id,
		Number: num,
		conv:   c,
		Name:   name,
		Flags:  FlagConnected,
	}
	c.players[num] = p
	c.nPlayers++
	c.touch()

	var evs []Event
	evs = append(evs, c.log.append(Event{Kind: EventPlayerAdded, Num: num}))
	evs = append(evs, c.log.append(Event{Kind: EventPlayerName, Num: num, Name: name}))

	if c.nextTurnHolder == NoPlayer {
		c.nextTurnHolder = num
		p.Flags |= FlagNextTurn
	}
	evs = append(evs, c.log.append(Event{Kind: EventPlayerFlags, Num: num, Flags: p.Flags}))

	return p, evs, nil
}

func (c *Conversation) checkOwnership(p *Player) error {
	if p == nil || p.conv != c {
		return ErrWrongConversation
	}
	return nil
}

// SetTyping records whether p is currently composing a chat message.
func (c *Conversation) SetTyping(p *Player, typing bool) ([]Event, error) {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if err := c.checkOwnership(p); err != nil {
		return nil, err
	}
	if c.state == StateFinished {
		return nil, nil // typing indicators are harmless no-ops after END
	}

	if typing {
		p.Flags |= FlagTyping
	} else {
		p.Flags &^= FlagTyping
	}
	c.touch()

	ev := c.log.append(Event{Kind: EventPlayerFlags, Num: p.Number, Flags: p.Flags})
	return []Event{ev}, nil
}

// SendMessage appends a chat line attributed to p.
func (c *Conversation) SendMessage(p *Player, text string) ([]Event, error) {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if err := c.checkOwnership(p); err != nil {
		return nil, err
	}
	if !utf8.ValidString(text) {
		return nil, ErrInvalidUTF8
	}
	if len(text) > MaxMessageBytes {
		return nil, ErrMessageTooLong
	}

	c.touch()
	ev := c.log.append(Event{Kind: EventMessage, SenderNum: p.Number, Text: text})
	return []Event{ev}, nil
}

func (c *Conversation) nextConnectedAfter(from uint8) uint8 {
	if c.nPlayers == 0 {
		return NoPlayer
	}
	for i := 1; i <= c.nPlayers; i++ {
		cand := (int(from) + i) % c.nPlayers
		if p := c.players[cand]; p != nil && p.Flags&FlagConnected != 0 {
			return uint8(cand)
		}
	}
	return NoPlayer
}

// Turn draws one tile from the bag onto the table on p's behalf, then
// advances NEXT_TURN to the next connected player (round robin,
// wrapping back to p itself if nobody else is connected). Calling Turn
// while the conversation is still StateAwaitingStart promotes it to
// StateInProgress as part of the same call.
func (c *Conversation) Turn(p *Player) ([]Event, error) {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if err := c.checkOwnership(p); err != nil {
		return nil, err
	}
	if c.nTilesDrawn >= len(c.tiles) {
		return nil, ErrBagEmpty
	}
	if c.state == StateFinished {
		return nil, ErrConversationClosed
	}
	if c.nextTurnHolder != p.Number {
		return nil, ErrNotYourTurn
	}

	if c.state == StateAwaitingStart {
		c.state = StateInProgress
	}

	tile := &c.tiles[c.nTilesDrawn]
	tile.InBag = false
	tile.LastPlayer = p.Number
	tile.X, tile.Y = c.pickFreePosition()
	c.nTilesDrawn++
	c.touch()

	var evs []Event
	evs = append(evs, c.log.append(Event{Kind: EventTileChanged, Tile: *tile}))

	oldHolder := c.players[c.nextTurnHolder]
	oldHolder.Flags &^= FlagNextTurn
	evs = append(evs, c.log.append(Event{Kind: EventPlayerFlags, Num: oldHolder.Number, Flags: oldHolder.Flags}))

	next := c.nextConnectedAfter(p.Number)
	if next == NoPlayer {
		next = p.Number
	}
	c.nextTurnHolder = next
	newHolder := c.players[next]
	newHolder.Flags |= FlagNextTurn
	evs = append(evs, c.log.append(Event{Kind: EventPlayerFlags, Num: newHolder.Number, Flags: newHolder.Flags}))

	if end, endEvs := c.checkEndCondition(); end {
		evs = append(evs, endEvs...)
	}

	return evs, nil
}

// MoveTile repositions a tile already on the table.
func (c *Conversation) MoveTile(p *Player, index uint8, x, y int16) ([]Event, error) {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if err := c.checkOwnership(p); err != nil {
		return nil, err
	}
	if int(index) >= len(c.tiles) {
		return nil, ErrUnknownTile
	}
	tile := &c.tiles[index]
	if tile.InBag {
		return nil, ErrTileInBag
	}

	tile.X, tile.Y = x, y
	tile.LastPlayer = p.Number
	c.touch()

	ev := c.log.append(Event{Kind: EventTileChanged, Tile: *tile})
	return []Event{ev}, nil
}

// Shout records p shouting out a completed word, subject to
// ShoutInterval cooldown since the last accepted shout.
func (c *Conversation) Shout(p *Player) ([]Event, error) {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if err := c.checkOwnership(p); err != nil {
		return nil, err
	}
	if c.state == StateFinished {
		return nil, ErrConversationClosed
	}
	now := time.Now()
	if c.shoutingPlayer != NoPlayer && now.Before(c.shoutDeadline) {
		return nil, ErrShoutCooldown
	}

	if c.state == StateAwaitingStart {
		c.state = StateInProgress
	}

	c.shoutingPlayer = p.Number
	c.shoutDeadline = now.Add(ShoutInterval)
	c.touch()

	ev := c.log.append(Event{Kind: EventPlayerShouted, Num: p.Number})
	return []Event{ev}, nil
}

// Leave marks p disconnected. The player's seat, name and tiles remain
// part of the conversation; only FlagConnected is cleared, and NEXT_TURN
// is handed to the next connected player if p held it.
func (c *Conversation) Leave(p *Player) ([]Event, error) {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if err := c.checkOwnership(p); err != nil {
		return nil, err
	}
	if p.Flags&FlagConnected == 0 {
		return nil, nil
	}

	p.Flags &^= FlagConnected
	c.touch()
	var evs []Event
	evs = append(evs, c.log.append(Event{Kind: EventPlayerFlags, Num: p.Number, Flags: p.Flags}))

	if c.nextTurnHolder == p.Number && c.state != StateFinished {
		next := c.nextConnectedAfter(p.Number)
		switch {
		case next == NoPlayer:
			// Nobody left connected: NEXT_TURN has nowhere to go, so
			// clear it rather than leave it pinned on a disconnected
			// player (zero players may hold NEXT_TURN at a time).
			c.nextTurnHolder = NoPlayer
			p.Flags &^= FlagNextTurn
			evs = append(evs, c.log.append(Event{Kind: EventPlayerFlags, Num: p.Number, Flags: p.Flags}))
		case next != p.Number:
			c.nextTurnHolder = next
			newHolder := c.players[next]
			newHolder.Flags |= FlagNextTurn
			evs = append(evs, c.log.append(Event{Kind: EventPlayerFlags, Num: newHolder.Number, Flags: newHolder.Flags}))
		}
	}

	return evs, nil
}

// SetNTiles changes the target tile count before the game has started.
// Only the first player (seat 0) may call this.
func (c *Conversation) SetNTiles(p *Player, n int) ([]Event, error) {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if err := c.checkOwnership(p); err != nil {
		return nil, err
	}
	if p.Number != 0 {
		return nil, ErrNotFirstPlayer
	}
	if c.state != StateAwaitingStart {
		return nil, ErrGameStarted
	}

	letters, err := tiledata.FillBag(c.language, n, c.rng)
	if err != nil {
		return nil, err
	}
	tiles := make([]Tile, len(letters))
	for i, letter := range letters {
		tiles[i] = Tile{Index: uint8(i), Letter: letter, LastPlayer: NoPlayer, InBag: true}
	}
	c.tiles = tiles
	c.nTileTargets = n
	c.nTilesDrawn = 0
	c.touch()

	ev := c.log.append(Event{Kind: EventNTiles, NTiles: uint8(n)})
	return []Event{ev}, nil
}

// SetLanguage changes the game's language before it has started. Only
// the first player (seat 0) may call this.
func (c *Conversation) SetLanguage(p *Player, language string) ([]Event, error) {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if err := c.checkOwnership(p); err != nil {
		return nil, err
	}
	if p.Number != 0 {
		return nil, ErrNotFirstPlayer
	}
	if c.state != StateAwaitingStart {
		return nil, ErrGameStarted
	}

	letters, err := tiledata.FillBag(language, c.nTileTargets, c.rng)
	if err != nil {
		return nil, err
	}
	tiles := make([]Tile, len(letters))
	for i, letter := range letters {
		tiles[i] = Tile{Index: uint8(i), Letter: letter, LastPlayer: NoPlayer, InBag: true}
	}
	c.language = language
	c.tiles = tiles
	c.nTilesDrawn = 0
	c.touch()

	ev := c.log.append(Event{Kind: EventLanguage, Language: language})
	return []Event{ev}, nil
}

// checkEndCondition finishes the game once the bag is empty and no
// shout cooldown is still running. It does not track whether each
// connected player has taken a turn since the last shout. Must be
// called with c.mu held.
func (c *Conversation) checkEndCondition() (bool, []Event) {
	if c.state == StateFinished {
		return false, nil
	}
	if c.nTilesDrawn < len(c.tiles) {
		return false, nil
	}
	if c.shoutingPlayer != NoPlayer && time.Now().Before(c.shoutDeadline) {
		return false, nil
	}

	c.state = StateFinished
	ev := c.log.append(Event{Kind: EventEnd})
	return true, []Event{ev}
}

// ForceFinish transitions the conversation straight to StateFinished and
// appends END, regardless of bag/shout state. Used by the registry during
// server shutdown, when every live conversation must be marked finished
// before the listeners stop accepting and connections are torn down. It is
// a no-op, returning no events, if the conversation is already finished.
func (c *Conversation) ForceFinish() []Event {
	c.mu.Lock()
	defer c.wake()
	defer c.mu.Unlock()

	if c.state == StateFinished {
		return nil
	}

	c.state = StateFinished
	ev := c.log.append(Event{Kind: EventEnd})
	return []Event{ev}
}

// NextSeq returns the sequence number the next appended event will
// receive, for reconstructing a truncated wire sequence number on
// reconnect.
func (c *Conversation) NextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.nextSeq
}

// EventsFrom returns every event the caller needs to reach full
// catch-up starting at nextSeq: if nextSeq has already been compacted
// out of the ring, the first returned event is a synthetic SYNC
// snapshot (see snapshot.go) and the caller should resume at its Seq+1
// on any subsequent call.
func (c *Conversation) EventsFrom(nextSeq uint64) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := c.log.baseline()
	if nextSeq >= base {
		return c.log.from(nextSeq)
	}

	snap := c.snapshotLocked()
	snap.Seq = base - 1
	return append([]Event{snap}, c.log.from(base)...)
}

// pickFreePosition finds a table coordinate not already occupied by
// another on-table tile, growing the search radius as the table fills
// up. Must be called with c.mu held.
func (c *Conversation) pickFreePosition() (int16, int16) {
	const cell = 40
	radius := 4
	for attempt := 0; attempt < 10000; attempt++ {
		side := radius*2 + 1
		gx := c.rng.Intn(side) - radius
		gy := c.rng.Intn(side) - radius
		x := int16(gx * cell)
		y := int16(gy * cell)
		if c.positionFree(x, y) {
			return x, y
		}
		if attempt > 0 && attempt%(side*side) == 0 {
			radius++
		}
	}
	return 0, 0
}

func (c *Conversation) positionFree(x, y int16) bool {
	for i := 0; i < c.nTilesDrawn; i++ {
		t := &c.tiles[i]
		if !t.InBag && t.X == x && t.Y == y {
			return false
		}
	}
	return true
}
