// Package connection drives one client socket end to end: handshake,
// dispatch of decoded wire messages onto the registry/conversation, and
// fan-out of conversation events back onto the wire. It is the only
// package that knows about both internal/frame and internal/transport at
// once; internal/conversation and internal/registry never see bytes.
package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bpeel/verda-sxtelo-sub002/internal/conversation"
	"github.com/bpeel/verda-sxtelo-sub002/internal/frame"
	"github.com/bpeel/verda-sxtelo-sub002/internal/registry"
	"github.com/bpeel/verda-sxtelo-sub002/internal/tiledata"
	"github.com/bpeel/verda-sxtelo-sub002/internal/transport"
)

// State is where a Connection sits in its handshake.
type State int

const (
	// StateAwaitingHandshake covers any transport-level preamble below
	// the frame codec. Both transport.Conn implementations finish their
	// own handshake (HTTP upgrade, or nothing at all for raw TCP) before
	// a Connection is constructed, so a fresh Connection always starts
	// in StateAwaitingHeader in practice; the state is kept distinct to
	// mirror the handshake/header/ready lifecycle a reader expects.
	StateAwaitingHandshake State = iota
	StateAwaitingHeader
	StateReady
)

// ReconnectGrace is the reconnect window of the protocol. Nothing in the
// server reads it: a disconnected player stays reachable through
// RECONNECT until the registry's sweep drops the conversation after
// conversation.ConversationIdleTimeout without activity.
const ReconnectGrace = 90 * time.Second

// KeepAliveInterval is the idle read deadline; a client that sends
// nothing for this long (not even KEEP_ALIVE) is dropped.
const KeepAliveInterval = 60 * time.Second

// sendBufferCap bounds how many encoded messages may be queued for a
// slow reader; once it is reached, enqueue blocks until the writer
// drains room.
const sendBufferCap = 256

// Connection owns one client socket for its lifetime.
type Connection struct {
	conn transport.Conn
	reg  *registry.Registry
	log  *slog.Logger

	state  State
	stateMu sync.Mutex

	player *conversation.Player
	conv   *conversation.Conversation
	nextSeq uint64

	out chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps an accepted transport.Conn. Call Run to drive it; Run blocks
// until the connection ends.
func New(conn transport.Conn, reg *registry.Registry, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		conn:   conn,
		reg:    reg,
		log:    logger,
		state:  StateAwaitingHeader,
		out:    make(chan []byte, sendBufferCap),
		closed: make(chan struct{}),
	}
}

func (c *Connection) getState() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Run drives the connection until the peer disconnects, ctx is
// cancelled, or a protocol error forces a close. It always returns once
// the socket is closed.
func (c *Connection) Run(ctx context.Context) {
	defer c.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.eventPump(ctx)
	}()

	c.readLoop(ctx)
	cancel()
	wg.Wait()
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
		if c.player != nil && c.conv != nil {
			if _, err := c.conv.Leave(c.player); err != nil {
				c.log.Debug("leave on close failed", "err", err)
			}
		}
	})
}

func (c *Connection) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.out:
			if !ok {
				return
			}
			if err := c.conn.Write(data); err != nil {
				c.log.Debug("write failed", "remote", c.conn.RemoteAddr(), "err", err)
				return
			}
		}
	}
}

// enqueue queues data for the writer. If the buffer is full the caller
// blocks until the writer makes room, the connection closes, or ctx is
// cancelled: a slow reader pauses its own event-log consumption rather
// than having messages silently dropped or the connection torn down.
// The buffer cap still bounds how much can pile up while paused.
func (c *Connection) enqueue(ctx context.Context, data []byte) {
	select {
	case c.out <- data:
	case <-c.closed:
	case <-ctx.Done():
	}
}

// eventPump waits for new conversation events once the connection has
// joined a game and streams them to the client as they happen.
func (c *Connection) eventPump(ctx context.Context) {
	for {
		if c.getState() != StateReady {
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		conv := c.conv
		wake := conv.Wait()

		events := conv.EventsFrom(c.nextSeq)
		for _, ev := range events {
			msg, ok := eventToServerMessage(ev)
			if ok {
				encoded, err := frame.EncodeServer(&msg)
				if err != nil {
					c.log.Error("encode server event failed", "err", err)
				} else {
					c.enqueue(ctx, encoded)
				}
			}
			c.nextSeq = ev.Seq + 1
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		}
	}
}

func (c *Connection) readLoop(ctx context.Context) {
	var reader frame.Reader
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.conn.SetReadDeadline(time.Now().Add(KeepAliveInterval))
		chunk, err := c.conn.ReadChunk()
		if len(chunk) > 0 {
			reader.Feed(chunk)
			for {
				msg, decErr := reader.Next()
				if decErr == frame.ErrIncomplete {
					break
				}
				if decErr != nil {
					c.log.Debug("protocol error", "remote", c.conn.RemoteAddr(), "err", decErr)
					return
				}
				if handleErr := c.handle(ctx, msg); handleErr != nil {
					c.log.Debug("message rejected", "type", msg.Type, "err", handleErr)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Connection) handle(ctx context.Context, msg *frame.ClientMessage) error {
	if c.getState() == StateAwaitingHeader {
		return c.handleHeader(ctx, msg)
	}
	return c.handleReady(msg)
}

func (c *Connection) handleHeader(ctx context.Context, msg *frame.ClientMessage) error {
	switch msg.Type {
	case frame.TypeNewPlayer:
		return c.join(ctx, func() (*conversation.Player, *conversation.Conversation, error) {
			return c.reg.NewPlayer(msg.Name, msg.Language, tiledata.LongTileCount)
		})
	case frame.TypeNewPrivateGame:
		return c.join(ctx, func() (*conversation.Player, *conversation.Conversation, error) {
			return c.reg.NewPrivateGame(msg.Name, msg.Language, tiledata.LongTileCount)
		})
	case frame.TypeJoinGame:
		return c.join(ctx, func() (*conversation.Player, *conversation.Conversation, error) {
			return c.reg.JoinGame(msg.ConversationID, msg.Name)
		})
	case frame.TypeReconnect:
		return c.reconnect(msg)
	case frame.TypeKeepAlive:
		return nil
	default:
		return errHeaderExpected
	}
}

func (c *Connection) join(ctx context.Context, fn func() (*conversation.Player, *conversation.Conversation, error)) error {
	player, conv, err := fn()
	if err != nil {
		return err
	}
	c.player = player
	c.conv = conv
	c.nextSeq = 1

	ack := frame.ServerMessage{
		Type:           frame.TypePlayerID,
		PlayerID:       player.ID,
		ConversationID: conv.ID(),
		YourNumber:     player.Number,
	}
	encoded, err := frame.EncodeServer(&ack)
	if err != nil {
		return err
	}
	c.enqueue(ctx, encoded)
	c.setState(StateReady)
	return nil
}

func (c *Connection) reconnect(msg *frame.ClientMessage) error {
	player, conv, err := c.reg.Reconnect(msg.PlayerID)
	if err != nil {
		return err
	}
	c.player = player
	c.conv = conv
	c.nextSeq = unwrapSeq(conv, msg.NextEventNum)
	c.setState(StateReady)
	return nil
}

func (c *Connection) handleReady(msg *frame.ClientMessage) error {
	var (
		events []conversation.Event
		err    error
	)
	switch msg.Type {
	case frame.TypeKeepAlive:
		return nil
	case frame.TypeLeave:
		events, err = c.conv.Leave(c.player)
	case frame.TypeShout:
		events, err = c.conv.Shout(c.player)
	case frame.TypeTurn:
		events, err = c.conv.Turn(c.player)
	case frame.TypeMoveTile:
		events, err = c.conv.MoveTile(c.player, msg.TileIndex, msg.X, msg.Y)
	case frame.TypeSendMessage:
		events, err = c.conv.SendMessage(c.player, msg.Text)
	case frame.TypeSetTyping:
		events, err = c.conv.SetTyping(c.player, msg.Typing)
	case frame.TypeSetNTiles:
		events, err = c.conv.SetNTiles(c.player, int(msg.NTiles))
	case frame.TypeSetLanguage:
		events, err = c.conv.SetLanguage(c.player, msg.Language)
	default:
		return errUnexpectedAfterReady
	}
	// Events are delivered to every connection (including this one)
	// through eventPump; handleReady only needs to surface errors.
	_ = events
	return err
}

// eventToServerMessage translates one log entry into its wire form.
// EventPlayerAdded carries no wire message of its own — the PLAYER_NAME
// that always immediately follows it is what tells a client a new seat
// exists — so it reports ok=false and only advances nextSeq.
func eventToServerMessage(ev conversation.Event) (msg frame.ServerMessage, ok bool) {
	seq := uint16(ev.Seq)
	switch ev.Kind {
	case conversation.EventPlayerAdded:
		return frame.ServerMessage{}, false
	case conversation.EventPlayerName:
		return frame.ServerMessage{Type: frame.TypePlayerName, Seq: seq, Num: ev.Num, Name: ev.Name}, true
	case conversation.EventPlayerFlags:
		return frame.ServerMessage{Type: frame.TypePlayerFlags, Seq: seq, Num: ev.Num, Flags: byte(ev.Flags)}, true
	case conversation.EventTileChanged:
		return frame.ServerMessage{
			Type:       frame.TypeTile,
			Seq:        seq,
			TileIndex:  ev.Tile.Index,
			X:          ev.Tile.X,
			Y:          ev.Tile.Y,
			Letter:     ev.Tile.Letter,
			LastPlayer: ev.Tile.LastPlayer,
		}, true
	case conversation.EventPlayerShouted:
		return frame.ServerMessage{Type: frame.TypePlayerShouted, Seq: seq, Num: ev.Num}, true
	case conversation.EventMessage:
		return frame.ServerMessage{Type: frame.TypeMessage, Seq: seq, SenderNum: ev.SenderNum, Text: ev.Text}, true
	case conversation.EventNTiles:
		return frame.ServerMessage{Type: frame.TypeNTiles, Seq: seq, NTiles: ev.NTiles}, true
	case conversation.EventLanguage:
		return frame.ServerMessage{Type: frame.TypeLanguage, Seq: seq, Language: ev.Language}, true
	case conversation.EventSync:
		return frame.ServerMessage{Type: frame.TypeSync, Seq: seq, SyncPayload: ev.SyncPayload}, true
	case conversation.EventEnd:
		return frame.ServerMessage{Type: frame.TypeEnd, Seq: seq}, true
	default:
		return frame.ServerMessage{}, false
	}
}

// unwrapSeq reconstructs a full sequence number from the 16-bit number of
// the next event a reconnecting client needs, assuming it is within one
// 65536-event window at or below the conversation's current position —
// true for any reconnect short of an implausibly chatty game.
func unwrapSeq(conv *conversation.Conversation, wire uint16) uint64 {
	next := conv.NextSeq()
	const window = uint64(1) << 16
	reconstructed := (next &^ (window - 1)) | uint64(wire)
	if reconstructed > next {
		reconstructed -= window
	}
	return reconstructed
}
