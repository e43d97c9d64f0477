package conversation

import (
	"encoding/binary"
)

// snapshotVersion tags the SYNC payload format so a future server can
// recognise a layout change without guessing from length alone.
const snapshotVersion = 1

// snapshotLocked serialises enough of the current game state for a
// reconnecting client to rebuild its view from scratch in one message,
// standing in for every event compacted out of the ring. Must be called
// with c.mu held; the caller is responsible for stamping the returned
// Event's Seq.
//
// Layout: version byte, language (length-prefixed), n_tile_targets
// uint16, player count byte, then per player: number, flags, name
// (length-prefixed); then tile count uint16, then per drawn tile: index,
// x int16, y int16, last_player, letter (length-prefixed). Tiles still
// in the bag are omitted — the receiving client never needed to know
// about them.
func (c *Conversation) snapshotLocked() Event {
	buf := make([]byte, 0, 256)
	buf = append(buf, snapshotVersion)
	buf = appendString(buf, c.language)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(c.nTileTargets))

	buf = append(buf, byte(c.nPlayers))
	for i := 0; i < c.nPlayers; i++ {
		p := c.players[i]
		buf = append(buf, p.Number, byte(p.Flags))
		buf = appendString(buf, p.Name)
	}

	buf = binary.LittleEndian.AppendUint16(buf, uint16(c.nTilesDrawn))
	for i := 0; i < c.nTilesDrawn; i++ {
		t := c.tiles[i]
		buf = append(buf, t.Index)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(t.X))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(t.Y))
		buf = append(buf, t.LastPlayer)
		buf = appendString(buf, t.Letter)
	}

	return Event{Kind: EventSync, SyncPayload: buf}
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}
