package conversation

import "errors"

var (
	// ErrConversationFull is returned by AddPlayer when all NPlayersMax
	// seats are occupied.
	ErrConversationFull = errors.New("conversation: full")

	// ErrConversationClosed is returned by AddPlayer and by the mutating
	// operations once the conversation has reached StateFinished.
	ErrConversationClosed = errors.New("conversation: closed")

	// ErrInvalidName is returned by AddPlayer for an empty or over-length
	// player name.
	ErrInvalidName = errors.New("conversation: invalid player name")

	// ErrWrongConversation is returned when a *Player belonging to a
	// different Conversation is passed to an operation.
	ErrWrongConversation = errors.New("conversation: player belongs to a different conversation")

	// ErrNotYourTurn is returned by Turn when the caller does not hold
	// FlagNextTurn.
	ErrNotYourTurn = errors.New("conversation: not your turn")

	// ErrBagEmpty is returned by Turn once every tile has been drawn.
	ErrBagEmpty = errors.New("conversation: bag is empty")

	// ErrShoutCooldown is returned by Shout while another shout's
	// ShoutInterval has not yet elapsed.
	ErrShoutCooldown = errors.New("conversation: shout cooldown active")

	// ErrGameStarted is returned by SetNTiles and SetLanguage once the
	// conversation has left StateAwaitingStart.
	ErrGameStarted = errors.New("conversation: game already started")

	// ErrNotFirstPlayer is returned by SetNTiles and SetLanguage when
	// called by any player other than seat 0.
	ErrNotFirstPlayer = errors.New("conversation: only the first player may change game settings")

	// ErrInvalidUTF8 is returned by SendMessage for a non-UTF-8 payload.
	ErrInvalidUTF8 = errors.New("conversation: message is not valid utf-8")

	// ErrMessageTooLong is returned by SendMessage for an over-length
	// payload.
	ErrMessageTooLong = errors.New("conversation: message too long")

	// ErrUnknownTile is returned by MoveTile for an out-of-range index.
	ErrUnknownTile = errors.New("conversation: unknown tile index")

	// ErrTileInBag is returned by MoveTile for a tile that has not been
	// drawn onto the table yet.
	ErrTileInBag = errors.New("conversation: tile still in bag")
)
