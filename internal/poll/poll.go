package poll

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type Choice string

const (
	Join  Choice = "join"
	Maybe Choice = "maybe"
	Cant  Choice = "cant"
)

var (
	ErrExpired       = errors.New("poll expired")
	ErrUnknownChoice = errors.New("unknown poll choice")
)

const customIDPrefix = "ssupoll"

func (c Choice) Valid() bool {
	switch c {
	case Join, Maybe, Cant:
		return true
	}
	return false
}

type Snapshot struct {
	Question string
	Join     int
	Maybe    int
	Cant     int
}

type state struct {
	question string
	votes    map[string]Choice
}

// Tally keeps live poll state in memory only. Polls vanish on restart or once
// the TTL passes, and votes on them are reported as ErrExpired.
type Tally struct {
	mu    sync.Mutex
	polls *cache.Cache
}

// New returns a tally whose polls expire after ttl. A ttl of zero or less keeps
// polls until the process exits.
func New(ttl time.Duration) *Tally {
	expiration := cache.NoExpiration
	cleanup := 10 * time.Minute
	if ttl > 0 {
		expiration = ttl
		if ttl/2 < cleanup {
			cleanup = ttl / 2
		}
	}
	return &Tally{polls: cache.New(expiration, cleanup)}
}

func (t *Tally) Open(pollID, question string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls.Set(pollID, &state{question: question, votes: make(map[string]Choice)}, cache.DefaultExpiration)
}

// Vote moves the voter into the chosen set, removing any earlier choice.
func (t *Tally) Vote(pollID, voterID string, choice Choice) (Snapshot, error) {
	if !choice.Valid() {
		return Snapshot{}, ErrUnknownChoice
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.polls.Get(pollID)
	if !ok {
		return Snapshot{}, ErrExpired
	}
	current := item.(*state)
	current.votes[voterID] = choice
	return current.snapshot(), nil
}

func (t *Tally) Snapshot(pollID string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.polls.Get(pollID)
	if !ok {
		return Snapshot{}, false
	}
	return item.(*state).snapshot(), true
}

func (s *state) snapshot() Snapshot {
	out := Snapshot{Question: s.question}
	for _, choice := range s.votes {
		switch choice {
		case Join:
			out.Join++
		case Maybe:
			out.Maybe++
		case Cant:
			out.Cant++
		}
	}
	return out
}

func CustomID(pollID string, choice Choice) string {
	return customIDPrefix + ":" + pollID + ":" + string(choice)
}

// ParseCustomID splits "ssupoll:<pollID>:<choice>". The choice is returned
// unvalidated so callers can tell a stale button from a foreign one.
func ParseCustomID(customID string) (string, Choice, bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != customIDPrefix || parts[1] == "" {
		return "", "", false
	}
	return parts[1], Choice(parts[2]), true
}
