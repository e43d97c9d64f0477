package frame

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestClientRoundTripNewPlayer(t *testing.T) {
	raw := []byte{byte(TypeNewPlayer), ProtocolVersion}
	raw = append(raw, []byte("en\x00")...)
	raw = append(raw, []byte("alice\x00")...)

	msg, n, err := DecodeClient(raw)
	if err != nil {
		t.Fatalf("DecodeClient: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if msg.Type != TypeNewPlayer || msg.Language != "en" || msg.Name != "alice" || msg.ProtoVersion != ProtocolVersion {
		t.Fatalf("decoded %+v", msg)
	}
}

func TestClientRejectsWrongProtocolVersion(t *testing.T) {
	raw := []byte{byte(TypeNewPlayer), 99}
	raw = append(raw, []byte("en\x00")...)
	raw = append(raw, []byte("alice\x00")...)

	_, _, err := DecodeClient(raw)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestClientMoveTileRoundTrip(t *testing.T) {
	raw := []byte{byte(TypeMoveTile), 7, 0xCE, 0xFF, 0x2C, 0x01}
	msg, n, err := DecodeClient(raw)
	if err != nil {
		t.Fatalf("DecodeClient: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if msg.TileIndex != 7 || msg.X != -50 || msg.Y != 300 {
		t.Fatalf("decoded %+v", msg)
	}
}

func TestClientNoNulWithinBoundIsProtocolError(t *testing.T) {
	raw := []byte{byte(TypeSendMessage)}
	raw = append(raw, bytes.Repeat([]byte{'x'}, MaxMessageLen+1)...)
	// No nul terminator anywhere, and we've supplied maxLen+1 bytes.
	_, _, err := DecodeClient(raw)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestClientPartialReadDoesNotAdvance(t *testing.T) {
	full := []byte{byte(TypeNewPlayer), ProtocolVersion}
	full = append(full, []byte("en\x00")...)
	full = append(full, []byte("alice\x00")...)

	for cut := 0; cut < len(full); cut++ {
		_, _, err := DecodeClient(full[:cut])
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("cut=%d: expected ErrIncomplete, got %v", cut, err)
		}
	}
}

func TestUnknownClientTypeIsProtocolError(t *testing.T) {
	_, _, err := DecodeClient([]byte{0xFF})
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestReaderDecodesMultipleMessagesAcrossFeeds(t *testing.T) {
	var r Reader

	msg1 := []byte{byte(TypeKeepAlive)}
	msg2 := []byte{byte(TypeTurn)}
	msg3 := []byte{byte(TypeMoveTile), 1, 0, 0, 0, 0}

	all := append(append(append([]byte{}, msg1...), msg2...), msg3...)

	// Feed byte-by-byte to exercise partial buffering.
	var got []*ClientMessage
	for i := 0; i < len(all); i++ {
		r.Feed(all[i : i+1])
		for {
			m, err := r.Next()
			if errors.Is(err, ErrIncomplete) {
				break
			}
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			got = append(got, m)
		}
	}

	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	if got[0].Type != TypeKeepAlive || got[1].Type != TypeTurn || got[2].Type != TypeMoveTile {
		t.Fatalf("wrong message sequence: %+v", got)
	}
	if r.Buffered() != 0 {
		t.Fatalf("reader should have no buffered bytes left, has %d", r.Buffered())
	}
}

func TestStreamRestartability(t *testing.T) {
	// Decoding any prefix of the wire stream followed by the remaining
	// bytes yields the same decoded messages as decoding all at once.
	var whole []byte
	whole = append(whole, byte(TypeKeepAlive))
	whole = append(whole, byte(TypeShout))
	mt := []byte{byte(TypeMoveTile), 3, 1, 0, 2, 0}
	whole = append(whole, mt...)

	decodeAll := func(buf []byte) []ClientType {
		var r Reader
		r.Feed(buf)
		var types []ClientType
		for {
			m, err := r.Next()
			if errors.Is(err, ErrIncomplete) {
				break
			}
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			types = append(types, m.Type)
		}
		return types
	}

	baseline := decodeAll(whole)

	for split := 0; split <= len(whole); split++ {
		var r Reader
		r.Feed(whole[:split])
		var types []ClientType
		for {
			m, err := r.Next()
			if errors.Is(err, ErrIncomplete) {
				break
			}
			if err != nil {
				t.Fatalf("split=%d: Next: %v", split, err)
			}
			types = append(types, m.Type)
		}
		r.Feed(whole[split:])
		for {
			m, err := r.Next()
			if errors.Is(err, ErrIncomplete) {
				break
			}
			if err != nil {
				t.Fatalf("split=%d: Next (second half): %v", split, err)
			}
			types = append(types, m.Type)
		}

		if len(types) != len(baseline) {
			t.Fatalf("split=%d: got %d messages, want %d", split, len(types), len(baseline))
		}
		for i := range types {
			if types[i] != baseline[i] {
				t.Fatalf("split=%d: message %d = %v, want %v", split, i, types[i], baseline[i])
			}
		}
	}
}

func TestServerRoundTripEveryType(t *testing.T) {
	cases := []*ServerMessage{
		{Type: TypePlayerID, PlayerID: 0x1122334455667788, ConversationID: 0xAABBCCDDEEFF0011, YourNumber: 3},
		{Type: TypeMessage, Seq: 5, SenderNum: 2, Text: "hello there"},
		{Type: TypeNTiles, Seq: 1, NTiles: 50},
		{Type: TypeLanguage, Seq: 1, Language: "eo"},
		{Type: TypePlayerName, Seq: 2, Num: 0, Name: "alice"},
		{Type: TypePlayerFlags, Seq: 3, Num: 0, Flags: 0x05},
		{Type: TypeTile, Seq: 4, TileIndex: 9, X: -5, Y: 300, Letter: "Ĉ", LastPlayer: 0xff},
		{Type: TypePlayerShouted, Seq: 6, Num: 1},
		{Type: TypeEnd, Seq: 100},
		{Type: TypeConversationID, ConversationID: 0xDEADBEEFCAFEF00D},
	}

	for _, want := range cases {
		encoded, err := EncodeServer(want)
		if err != nil {
			t.Fatalf("EncodeServer(%+v): %v", want, err)
		}
		got, n, err := DecodeServer(encoded)
		if err != nil {
			t.Fatalf("DecodeServer: %v", err)
		}
		if n != len(encoded) {
			t.Fatalf("consumed %d, want %d", n, len(encoded))
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, want)
		}
	}
}

func TestServerSyncRoundTrip(t *testing.T) {
	want := &ServerMessage{Type: TypeSync, Seq: 11, SyncPayload: []byte{1, 2, 3, 4}}
	encoded, err := EncodeServer(want)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := DecodeServer(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if got.Seq != want.Seq || !bytes.Equal(got.SyncPayload, want.SyncPayload) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestEncodeServerRejectsOversizedString(t *testing.T) {
	msg := &ServerMessage{Type: TypeMessage, Text: string(bytes.Repeat([]byte{'a'}, MaxMessageLen+1))}
	if _, err := EncodeServer(msg); err == nil {
		t.Fatal("expected error for oversized text")
	}
}
