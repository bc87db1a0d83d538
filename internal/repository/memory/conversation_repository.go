package memory

import (
	"sync"
	"time"

	"doc-qa-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// MaxTurns bounds how many completed exchanges a session keeps in memory.
// Older turns fall off the front once the cap is reached.
const MaxTurns = 20

// ConversationRepository holds per-session conversation history in memory.
// History is only a generation aid; the durable record lives in Postgres.
type ConversationRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
}

func NewConversationRepository() *ConversationRepository {
	// Sessions idle for an hour get purged, sweep every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ConversationRepository{
		cache: c,
	}
}

// History returns a copy of the turns recorded for the session, oldest first.
func (r *ConversationRepository) History(sessionID string) []store.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(sessionID)
	if !found {
		return nil
	}
	turns := x.([]store.Turn)
	out := make([]store.Turn, len(turns))
	copy(out, turns)
	return out
}

// Append commits one completed turn. The caller must only do this after the
// full answer has been produced; interrupted turns are never recorded.
func (r *ConversationRepository) Append(sessionID string, turn store.Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var turns []store.Turn
	if x, found := r.cache.Get(sessionID); found {
		turns = x.([]store.Turn)
	}
	turns = append(turns, turn)
	if len(turns) > MaxTurns {
		turns = turns[len(turns)-MaxTurns:]
	}
	r.cache.Set(sessionID, turns, cache.DefaultExpiration)
}

func (r *ConversationRepository) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(sessionID)
}
