package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrIncomplete is returned by DecodeClient/DecodeServer/Reader.Next when the buffer does not
// yet hold a complete message; the caller should read more bytes from the
// transport and try again without discarding what it already has.
var ErrIncomplete = errors.New("frame: incomplete message")

// ProtocolError indicates malformed wire data — the caller must close the
// connection (§7: wire errors).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "frame: protocol error: " + e.Reason
}

func protoErr(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// Reader accumulates bytes from a transport and decodes as many complete
// client messages as are available, without ever re-parsing bytes it has
// already consumed.
type Reader struct {
	buf []byte
}

// Feed appends newly-read transport bytes to the reader's internal buffer.
func (r *Reader) Feed(data []byte) {
	r.buf = append(r.buf, data...)
}

// Next decodes the next complete message, if any. It returns ErrIncomplete
// (not a ProtocolError) when more bytes are needed; callers should Feed and
// retry. A non-nil, non-ErrIncomplete error is a ProtocolError and the
// connection must be closed.
func (r *Reader) Next() (*ClientMessage, error) {
	msg, consumed, err := DecodeClient(r.buf)
	if err != nil {
		return nil, err
	}
	r.buf = r.buf[consumed:]
	return msg, nil
}

// Buffered reports how many unconsumed bytes remain.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// DecodeClient attempts to decode one client message from the front of
// data. On success it returns the message and the number of bytes
// consumed. It returns ErrIncomplete if data does not yet hold a full
// message, or a *ProtocolError for malformed input.
func DecodeClient(data []byte) (*ClientMessage, int, error) {
	if len(data) < 1 {
		return nil, 0, ErrIncomplete
	}

	typ := ClientType(data[0])
	body := data[1:]

	switch typ {
	case TypeNewPlayer, TypeNewPrivateGame:
		return decodeNewPlayer(typ, body)
	case TypeReconnect:
		return decodeReconnect(body)
	case TypeKeepAlive:
		return &ClientMessage{Type: typ}, 1, nil
	case TypeLeave:
		return &ClientMessage{Type: typ}, 1, nil
	case TypeShout:
		return &ClientMessage{Type: typ}, 1, nil
	case TypeTurn:
		return &ClientMessage{Type: typ}, 1, nil
	case TypeMoveTile:
		return decodeMoveTile(body)
	case TypeSendMessage:
		return decodeSendMessage(body)
	case TypeSetTyping:
		return decodeSetTyping(body)
	case TypeSetNTiles:
		return decodeSetNTiles(body)
	case TypeSetLanguage:
		return decodeSetLanguage(body)
	case TypeJoinGame:
		return decodeJoinGame(body)
	default:
		return nil, 0, protoErr("unknown message type 0x%02x", byte(typ))
	}
}

func decodeNewPlayer(typ ClientType, body []byte) (*ClientMessage, int, error) {
	if len(body) < 1 {
		return nil, 0, ErrIncomplete
	}
	version := body[0]
	rest := body[1:]

	lang, langN, err := readString(rest, MaxLanguageLen)
	if err != nil {
		return nil, 0, err
	}
	rest = rest[langN:]

	name, nameN, err := readString(rest, MaxNameLen)
	if err != nil {
		return nil, 0, err
	}

	if len(lang) < MinLanguageLen {
		return nil, 0, protoErr("language code %q shorter than minimum %d", lang, MinLanguageLen)
	}
	if len(name) < 1 {
		return nil, 0, protoErr("player name must not be empty")
	}
	if version != ProtocolVersion {
		return nil, 0, protoErr("unsupported protocol version %d", version)
	}

	consumed := 1 + 1 + langN + nameN
	return &ClientMessage{
		Type:         typ,
		ProtoVersion: version,
		Language:     lang,
		Name:         name,
	}, consumed, nil
}

func decodeReconnect(body []byte) (*ClientMessage, int, error) {
	if len(body) < 10 {
		return nil, 0, ErrIncomplete
	}
	playerID := binary.LittleEndian.Uint64(body[0:8])
	next := binary.LittleEndian.Uint16(body[8:10])
	return &ClientMessage{
		Type:         TypeReconnect,
		PlayerID:     playerID,
		NextEventNum: next,
	}, 1 + 10, nil
}

func decodeMoveTile(body []byte) (*ClientMessage, int, error) {
	if len(body) < 5 {
		return nil, 0, ErrIncomplete
	}
	idx := body[0]
	x := int16(binary.LittleEndian.Uint16(body[1:3]))
	y := int16(binary.LittleEndian.Uint16(body[3:5]))
	return &ClientMessage{
		Type:      TypeMoveTile,
		TileIndex: idx,
		X:         x,
		Y:         y,
	}, 1 + 5, nil
}

func decodeSendMessage(body []byte) (*ClientMessage, int, error) {
	text, n, err := readString(body, MaxMessageLen)
	if err != nil {
		return nil, 0, err
	}
	if len(text) < 1 {
		return nil, 0, protoErr("message text must not be empty")
	}
	return &ClientMessage{Type: TypeSendMessage, Text: text}, 1 + n, nil
}

func decodeSetTyping(body []byte) (*ClientMessage, int, error) {
	if len(body) < 1 {
		return nil, 0, ErrIncomplete
	}
	if body[0] > 1 {
		return nil, 0, protoErr("boolean field has value %d", body[0])
	}
	return &ClientMessage{Type: TypeSetTyping, Typing: body[0] != 0}, 1 + 1, nil
}

func decodeSetNTiles(body []byte) (*ClientMessage, int, error) {
	if len(body) < 1 {
		return nil, 0, ErrIncomplete
	}
	return &ClientMessage{Type: TypeSetNTiles, NTiles: body[0]}, 1 + 1, nil
}

func decodeSetLanguage(body []byte) (*ClientMessage, int, error) {
	code, n, err := readString(body, MaxLanguageLen)
	if err != nil {
		return nil, 0, err
	}
	if len(code) < MinLanguageLen {
		return nil, 0, protoErr("language code %q shorter than minimum %d", code, MinLanguageLen)
	}
	return &ClientMessage{Type: TypeSetLanguage, Language: code}, 1 + n, nil
}

func decodeJoinGame(body []byte) (*ClientMessage, int, error) {
	if len(body) < 8 {
		return nil, 0, ErrIncomplete
	}
	id := binary.LittleEndian.Uint64(body[0:8])
	name, n, err := readString(body[8:], MaxNameLen)
	if err != nil {
		return nil, 0, err
	}
	if len(name) < 1 {
		return nil, 0, protoErr("player name must not be empty")
	}
	return &ClientMessage{
		Type:           TypeJoinGame,
		ConversationID: id,
		Name:           name,
	}, 1 + 8 + n, nil
}

// readString scans data for a nul terminator within maxLen+1 bytes. It
// returns the string (not including the terminator), the number of bytes
// consumed (including the terminator), and an error: ErrIncomplete if data
// is too short to tell yet, or a *ProtocolError if maxLen+1 bytes were
// available with no terminator among them.
func readString(data []byte, maxLen int) (string, int, error) {
	limit := maxLen + 1
	if limit > len(data) {
		limit = len(data)
	}
	for i := 0; i < limit; i++ {
		if data[i] == 0 {
			return string(data[:i]), i + 1, nil
		}
	}
	if len(data) < maxLen+1 {
		return "", 0, ErrIncomplete
	}
	return "", 0, protoErr("string exceeds maximum length %d with no terminator", maxLen)
}

// EncodeServer serializes msg into its wire form.
func EncodeServer(msg *ServerMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(msg.Type))

	switch msg.Type {
	case TypePlayerID:
		writeUint64(&buf, msg.PlayerID)
		writeUint64(&buf, msg.ConversationID)
		buf.WriteByte(msg.YourNumber)
	case TypeMessage:
		writeUint16(&buf, msg.Seq)
		buf.WriteByte(msg.SenderNum)
		if err := writeString(&buf, msg.Text, MaxMessageLen); err != nil {
			return nil, err
		}
	case TypeNTiles:
		writeUint16(&buf, msg.Seq)
		buf.WriteByte(msg.NTiles)
	case TypeLanguage:
		writeUint16(&buf, msg.Seq)
		if err := writeString(&buf, msg.Language, MaxLanguageLen); err != nil {
			return nil, err
		}
	case TypePlayerName:
		writeUint16(&buf, msg.Seq)
		buf.WriteByte(msg.Num)
		if err := writeString(&buf, msg.Name, MaxNameLen); err != nil {
			return nil, err
		}
	case TypePlayerFlags:
		writeUint16(&buf, msg.Seq)
		buf.WriteByte(msg.Num)
		buf.WriteByte(msg.Flags)
	case TypeTile:
		writeUint16(&buf, msg.Seq)
		buf.WriteByte(msg.TileIndex)
		writeInt16(&buf, msg.X)
		writeInt16(&buf, msg.Y)
		if err := writeString(&buf, msg.Letter, MaxLetterLen); err != nil {
			return nil, err
		}
		buf.WriteByte(msg.LastPlayer)
	case TypePlayerShouted:
		writeUint16(&buf, msg.Seq)
		buf.WriteByte(msg.Num)
	case TypeSync:
		writeUint16(&buf, msg.Seq)
		buf.Write(msg.SyncPayload)
	case TypeEnd:
		writeUint16(&buf, msg.Seq)
	case TypeConversationID:
		writeUint64(&buf, msg.ConversationID)
	default:
		return nil, protoErr("unknown server message type 0x%02x", byte(msg.Type))
	}

	return buf.Bytes(), nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeInt16(buf *bytes.Buffer, v int16) {
	writeUint16(buf, uint16(v))
}

func writeString(buf *bytes.Buffer, s string, maxLen int) error {
	if len(s) > maxLen {
		return fmt.Errorf("frame: string %q exceeds maximum length %d", s, maxLen)
	}
	buf.WriteString(s)
	buf.WriteByte(0)
	return nil
}

// DecodeServer parses a server message previously produced by
// EncodeServer. It is used by tests (round-trip) and by any debugging
// client built against this module.
func DecodeServer(data []byte) (*ServerMessage, int, error) {
	if len(data) < 1 {
		return nil, 0, ErrIncomplete
	}
	typ := ServerType(data[0])
	body := data[1:]

	need := func(n int) bool { return len(body) < n }

	switch typ {
	case TypePlayerID:
		if need(17) {
			return nil, 0, ErrIncomplete
		}
		return &ServerMessage{
			Type:           typ,
			PlayerID:       binary.LittleEndian.Uint64(body[0:8]),
			ConversationID: binary.LittleEndian.Uint64(body[8:16]),
			YourNumber:     body[16],
		}, 1 + 17, nil
	case TypeMessage:
		if need(3) {
			return nil, 0, ErrIncomplete
		}
		seq := binary.LittleEndian.Uint16(body[0:2])
		sender := body[2]
		text, n, err := readString(body[3:], MaxMessageLen)
		if err != nil {
			return nil, 0, err
		}
		return &ServerMessage{Type: typ, Seq: seq, SenderNum: sender, Text: text}, 1 + 3 + n, nil
	case TypeNTiles:
		if need(3) {
			return nil, 0, ErrIncomplete
		}
		return &ServerMessage{
			Type:   typ,
			Seq:    binary.LittleEndian.Uint16(body[0:2]),
			NTiles: body[2],
		}, 1 + 3, nil
	case TypeLanguage:
		if need(2) {
			return nil, 0, ErrIncomplete
		}
		seq := binary.LittleEndian.Uint16(body[0:2])
		code, n, err := readString(body[2:], MaxLanguageLen)
		if err != nil {
			return nil, 0, err
		}
		return &ServerMessage{Type: typ, Seq: seq, Language: code}, 1 + 2 + n, nil
	case TypePlayerName:
		if need(3) {
			return nil, 0, ErrIncomplete
		}
		seq := binary.LittleEndian.Uint16(body[0:2])
		num := body[2]
		name, n, err := readString(body[3:], MaxNameLen)
		if err != nil {
			return nil, 0, err
		}
		return &ServerMessage{Type: typ, Seq: seq, Num: num, Name: name}, 1 + 3 + n, nil
	case TypePlayerFlags:
		if need(4) {
			return nil, 0, ErrIncomplete
		}
		return &ServerMessage{
			Type:  typ,
			Seq:   binary.LittleEndian.Uint16(body[0:2]),
			Num:   body[2],
			Flags: body[3],
		}, 1 + 4, nil
	case TypeTile:
		if need(7) {
			return nil, 0, ErrIncomplete
		}
		seq := binary.LittleEndian.Uint16(body[0:2])
		idx := body[2]
		x := int16(binary.LittleEndian.Uint16(body[3:5]))
		y := int16(binary.LittleEndian.Uint16(body[5:7]))
		letter, n, err := readString(body[7:], MaxLetterLen)
		if err != nil {
			return nil, 0, err
		}
		rest := body[7+n:]
		if len(rest) < 1 {
			return nil, 0, ErrIncomplete
		}
		lastPlayer := rest[0]
		return &ServerMessage{
			Type: typ, Seq: seq, TileIndex: idx, X: x, Y: y,
			Letter: letter, LastPlayer: lastPlayer,
		}, 1 + 7 + n + 1, nil
	case TypePlayerShouted:
		if need(3) {
			return nil, 0, ErrIncomplete
		}
		return &ServerMessage{
			Type: typ,
			Seq:  binary.LittleEndian.Uint16(body[0:2]),
			Num:  body[2],
		}, 1 + 3, nil
	case TypeSync:
		if need(2) {
			return nil, 0, ErrIncomplete
		}
		seq := binary.LittleEndian.Uint16(body[0:2])
		// SYNC payloads carry no overall length prefix (see
		// conversation/snapshot.go); here we just hand back everything
		// remaining since this path is test/debug-only.
		return &ServerMessage{Type: typ, Seq: seq, SyncPayload: body[2:]}, 1 + len(body), nil
	case TypeEnd:
		if need(2) {
			return nil, 0, ErrIncomplete
		}
		return &ServerMessage{Type: typ, Seq: binary.LittleEndian.Uint16(body[0:2])}, 1 + 2, nil
	case TypeConversationID:
		if need(8) {
			return nil, 0, ErrIncomplete
		}
		return &ServerMessage{Type: typ, ConversationID: binary.LittleEndian.Uint64(body[0:8])}, 1 + 8, nil
	default:
		return nil, 0, protoErr("unknown server message type 0x%02x", byte(typ))
	}
}
