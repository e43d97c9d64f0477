// Package registry is the process-wide directory of live players and
// conversations: it allocates IDs, indexes both by ID for O(1) lookup,
// matches anonymous joiners into public games by language, and sweeps
// conversations that have sat idle.
package registry

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/bpeel/verda-sxtelo-sub002/internal/conversation"
	"github.com/bpeel/verda-sxtelo-sub002/internal/hashindex"
	"github.com/bpeel/verda-sxtelo-sub002/internal/idalloc"
)

// MaxConversations bounds how many conversations may be resident at
// once, chosen generously above any realistic concurrent player count
// for a single process (resolves an open question left by the
// distillation: the original never bounded this, relying on host memory
// pressure alone).
const MaxConversations = 20000

var (
	// ErrRegistryFull is returned by any operation that would create a
	// new conversation once MaxConversations is already resident.
	ErrRegistryFull = errors.New("registry: too many conversations")

	// ErrNoSuchConversation is returned by JoinGame for an unknown
	// conversation ID; a finished one yields AddPlayer's
	// conversation.ErrConversationClosed instead.
	ErrNoSuchConversation = errors.New("registry: no such conversation")

	// ErrNoSuchPlayer is returned by Reconnect for an unknown player ID.
	ErrNoSuchPlayer = errors.New("registry: no such player")
)

// Registry owns every live Conversation and Player for one server
// process. The zero value is not usable; construct one with New.
type Registry struct {
	mu sync.Mutex

	players       *hashindex.Index[*conversation.Player]
	conversations *hashindex.Index[*conversation.Conversation]

	// pendingPublic holds, per language, conversations still in
	// StateAwaitingStart that were created via NewPlayer and have at
	// least one free seat, oldest first. NewPlayer always appends to
	// the back and removes from the front, so two joiners racing for
	// the same language are paired deterministically by arrival order.
	pendingPublic map[string][]*conversation.Conversation

	newRand func() *rand.Rand
}

// New returns an empty Registry. newRand is called once per conversation
// to seed its tile-bag shuffling; pass nil to give each conversation its
// own crypto-seeded source, or inject a deterministic one from tests.
func New(newRand func() *rand.Rand) *Registry {
	if newRand == nil {
		newRand = defaultRand
	}
	return &Registry{
		players:       hashindex.New[*conversation.Player](),
		conversations: hashindex.New[*conversation.Conversation](),
		pendingPublic: make(map[string][]*conversation.Conversation),
		newRand:       newRand,
	}
}

func defaultRand() *rand.Rand {
	seed, err := idalloc.Fresh()
	if err != nil {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewSource(int64(seed)))
}

func (r *Registry) freshConversationID() (uint64, error) {
	for {
		id, err := idalloc.Fresh()
		if err != nil {
			return 0, err
		}
		if _, exists := r.conversations.Get(id); !exists {
			return id, nil
		}
	}
}

func (r *Registry) freshPlayerID() (uint64, error) {
	for {
		id, err := idalloc.Fresh()
		if err != nil {
			return 0, err
		}
		if _, exists := r.players.Get(id); !exists {
			return id, nil
		}
	}
}

// NewPlayer seats a fresh player into a public game for the given
// language, joining the oldest pending game with a free seat if one
// exists, or starting a new one otherwise.
func (r *Registry) NewPlayer(name, language string, nTiles int) (*conversation.Player, *conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Drop queued games that have already started.
	for queue := r.pendingPublic[language]; len(queue) > 0 && queue[0].State() != conversation.StateAwaitingStart; queue = r.pendingPublic[language] {
		r.pendingPublic[language] = queue[1:]
	}

	if queue := r.pendingPublic[language]; len(queue) > 0 {
		conv := queue[0]
		playerID, err := r.freshPlayerID()
		if err != nil {
			return nil, nil, err
		}
		p, _, err := conv.AddPlayer(playerID, name)
		if err == nil {
			r.players.Insert(p)
			if !conv.HasFreeSeat() {
				r.pendingPublic[language] = queue[1:]
			}
			return p, conv, nil
		}
		// Conversation became unusable (full or closed) between the
		// HasFreeSeat check that queued it and now; drop it and fall
		// through to starting a new one.
		r.pendingPublic[language] = queue[1:]
	}

	conv, player, err := r.newConversationLocked(name, language, nTiles)
	if err != nil {
		return nil, nil, err
	}
	if conv.HasFreeSeat() {
		r.pendingPublic[language] = append(r.pendingPublic[language], conv)
	}
	return player, conv, nil
}

// NewPrivateGame creates a conversation that is never offered to public
// matchmaking; only JoinGame (via its invite link) can seat further
// players into it.
func (r *Registry) NewPrivateGame(name, language string, nTiles int) (*conversation.Player, *conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, player, err := r.newConversationLocked(name, language, nTiles)
	if err != nil {
		return nil, nil, err
	}
	return player, conv, nil
}

func (r *Registry) newConversationLocked(name, language string, nTiles int) (*conversation.Conversation, *conversation.Player, error) {
	if r.conversations.Len() >= MaxConversations {
		return nil, nil, ErrRegistryFull
	}

	convID, err := r.freshConversationID()
	if err != nil {
		return nil, nil, err
	}
	conv, err := conversation.New(convID, language, nTiles, r.newRand())
	if err != nil {
		return nil, nil, err
	}

	playerID, err := r.freshPlayerID()
	if err != nil {
		return nil, nil, err
	}
	player, _, err := conv.AddPlayer(playerID, name)
	if err != nil {
		return nil, nil, err
	}

	r.conversations.Insert(conv)
	r.players.Insert(player)
	return conv, player, nil
}

// JoinGame seats a new player into an explicitly named conversation, as
// reached via an invite link.
func (r *Registry) JoinGame(conversationID uint64, name string) (*conversation.Player, *conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations.Get(conversationID)
	if !ok {
		return nil, nil, ErrNoSuchConversation
	}

	playerID, err := r.freshPlayerID()
	if err != nil {
		return nil, nil, err
	}
	player, _, err := conv.AddPlayer(playerID, name)
	if err != nil {
		return nil, nil, err
	}
	r.players.Insert(player)
	return player, conv, nil
}

// Reconnect looks up a previously seated player by ID, for the RECONNECT
// client message.
func (r *Registry) Reconnect(playerID uint64) (*conversation.Player, *conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players.Get(playerID)
	if !ok {
		return nil, nil, ErrNoSuchPlayer
	}
	return p, p.Conversation(), nil
}

// Conversation looks up a conversation by ID without seating anyone;
// used to render the /j/:id landing page.
func (r *Registry) Conversation(id uint64) (*conversation.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conversations.Get(id)
}

// NConversations reports how many conversations are currently resident.
func (r *Registry) NConversations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conversations.Len()
}

// NPlayers reports how many players are currently resident.
func (r *Registry) NPlayers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players.Len()
}

// Sweep drops every conversation whose last activity (IdleSince) is at
// least conversation.ConversationIdleTimeout before now, along with its
// players, and returns how many were removed. It does not check whether
// any player is still connected. Call this periodically from the
// scheduler's tick.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []*conversation.Conversation
	r.conversations.All(func(c *conversation.Conversation) {
		if now.Sub(c.IdleSince()) >= conversation.ConversationIdleTimeout {
			stale = append(stale, c)
		}
	})

	for _, c := range stale {
		r.conversations.Remove(c.IndexID())
		for _, p := range c.Players() {
			r.players.Remove(p.IndexID())
		}
		for lang, queue := range r.pendingPublic {
			filtered := queue[:0]
			for _, q := range queue {
				if q != c {
					filtered = append(filtered, q)
				}
			}
			r.pendingPublic[lang] = filtered
		}
	}

	return len(stale)
}

// Shutdown forces every resident conversation to StateFinished, appending
// an END event to each so attached connections flush it to their clients
// before the listeners stop accepting and the process exits. It does not
// itself remove conversations or players from the registry; Sweep (or
// process exit) handles that afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	var live []*conversation.Conversation
	r.conversations.All(func(c *conversation.Conversation) {
		live = append(live, c)
	})
	r.mu.Unlock()

	for _, c := range live {
		c.ForceFinish()
	}
}
