package connection

import "errors"

var (
	// errHeaderExpected is returned when a message other than
	// NEW_PLAYER/NEW_PRIVATE_GAME/JOIN_GAME/RECONNECT/KEEP_ALIVE arrives
	// before the connection has identified a player.
	errHeaderExpected = errors.New("connection: expected a handshake message")

	// errUnexpectedAfterReady is returned for a handshake-only message
	// type arriving after the connection is already joined to a game.
	errUnexpectedAfterReady = errors.New("connection: unexpected message after handshake")
)
