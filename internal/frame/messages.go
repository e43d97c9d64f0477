// Package frame implements the application-layer binary message codec:
// message_type byte followed by a little-endian, null-terminated-string
// payload, as described by the wire catalog the native client already
// speaks. It never blocks and never assumes a message boundary aligns
// with a transport read — callers accumulate bytes from the transport
// (WebSocket payload or raw TCP stream) into a Reader and pull out as
// many complete messages as are available.
package frame

// ClientType identifies a client-to-server message.
type ClientType byte

// Client-to-server message types (§4.5 of the specification).
const (
	TypeNewPlayer       ClientType = 0x80
	TypeReconnect       ClientType = 0x81
	TypeKeepAlive       ClientType = 0x82
	TypeLeave           ClientType = 0x83
	TypeShout           ClientType = 0x84
	TypeTurn            ClientType = 0x85
	TypeMoveTile        ClientType = 0x86
	TypeSendMessage     ClientType = 0x87
	TypeSetTyping       ClientType = 0x88
	TypeSetNTiles       ClientType = 0x89
	TypeSetLanguage     ClientType = 0x8A
	TypeNewPrivateGame  ClientType = 0x8B
	TypeJoinGame        ClientType = 0x8C
)

// ServerType identifies a server-to-client message.
type ServerType byte

// Server-to-client message types (§4.5 of the specification).
const (
	TypePlayerID        ServerType = 0x00
	TypeMessage         ServerType = 0x01
	TypeNTiles          ServerType = 0x02
	TypeLanguage        ServerType = 0x03
	TypePlayerName      ServerType = 0x04
	TypePlayerFlags     ServerType = 0x05
	TypeTile            ServerType = 0x06
	TypePlayerShouted   ServerType = 0x07
	TypeSync            ServerType = 0x08
	TypeEnd             ServerType = 0x09
	TypeConversationID  ServerType = 0x0A
)

// Required protocol version carried in NEW_PLAYER/NEW_PRIVATE_GAME.
const ProtocolVersion = 2

// Per-field string length bounds, named by the message field they bound.
const (
	MaxLanguageLen = 8
	MinLanguageLen = 2
	MaxNameLen     = 256
	MaxMessageLen  = 1000
	MaxLetterLen   = 4
)

// ClientMessage is a decoded C→S message. Type selects which fields are
// meaningful, mirroring the teacher's single-envelope-struct convention
// (see the original ControlMsg) translated to a binary tagged union.
type ClientMessage struct {
	Type ClientType

	// NEW_PLAYER / NEW_PRIVATE_GAME
	ProtoVersion byte
	Language     string
	Name         string

	// RECONNECT
	PlayerID     uint64
	NextEventNum uint16

	// MOVE_TILE
	TileIndex byte
	X, Y      int16

	// SEND_MESSAGE
	Text string

	// SET_TYPING
	Typing bool

	// SET_N_TILES
	NTiles byte

	// JOIN_GAME
	ConversationID uint64
}

// ServerMessage is a to-be-encoded S→C message.
type ServerMessage struct {
	Type ServerType

	Seq uint16

	// PLAYER_ID
	PlayerID       uint64
	ConversationID uint64
	YourNumber     byte

	// MESSAGE
	SenderNum byte
	Text      string

	// N_TILES
	NTiles byte

	// LANGUAGE
	Language string

	// PLAYER_NAME
	Num  byte
	Name string

	// PLAYER_FLAGS
	Flags byte

	// TILE
	TileIndex  byte
	X, Y       int16
	Letter     string
	LastPlayer byte

	// SYNC
	SyncPayload []byte
}
