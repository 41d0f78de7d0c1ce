package qoptim

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/theapemachine/errnie"
)

// SessionValue is a finished session as delivered to whoever awaits it.
type SessionValue struct {
	Result    *SessionResult
	Error     error
	CreatedAt time.Time
}

/*
ResultSpace holds finished session results by session id until they expire or
are pushed out by newer ones. Await can be called before or after a result
lands; waiters registered early are released by Store.
*/
type ResultSpace struct {
	mu      sync.Mutex
	values  *expirable.LRU[string, SessionValue]
	waiting map[string][]chan SessionValue
}

func NewResultSpace(capacity int, ttl time.Duration) *ResultSpace {
	if capacity < 1 {
		capacity = 1
	}

	return &ResultSpace{
		values:  expirable.NewLRU[string, SessionValue](capacity, nil, ttl),
		waiting: make(map[string][]chan SessionValue),
	}
}

func (rs *ResultSpace) Store(id string, result *SessionResult, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	sv := SessionValue{Result: result, Error: err, CreatedAt: time.Now()}
	rs.values.Add(id, sv)

	channels := rs.waiting[id]
	delete(rs.waiting, id)

	for _, ch := range channels {
		ch <- sv
		close(ch)
	}

	errnie.Debug("ResultSpace.Store - %s (err=%v, released %d waiters)", id, err, len(channels))
}

// Await returns a channel that receives the value for id exactly once.
func (rs *ResultSpace) Await(id string) chan SessionValue {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ch := make(chan SessionValue, 1)

	if sv, ok := rs.values.Get(id); ok {
		ch <- sv
		close(ch)
		return ch
	}

	rs.waiting[id] = append(rs.waiting[id], ch)
	return ch
}

func (rs *ResultSpace) Get(id string) (SessionValue, bool) {
	return rs.values.Get(id)
}

func (rs *ResultSpace) Len() int {
	return rs.values.Len()
}

// Close drops every stored value and fails anything still waiting.
func (rs *ResultSpace) Close() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for id, channels := range rs.waiting {
		for _, ch := range channels {
			ch <- SessionValue{Error: ErrPoolClosed, CreatedAt: time.Now()}
			close(ch)
		}
		delete(rs.waiting, id)
	}

	rs.values.Purge()
}
