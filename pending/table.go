package pending

import (
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/treemana/gorelay/log"
)

const (
	// DefaultTTL bounds how long a forwarded query waits for its
	// upstream reply. Entries older than this are fair game for
	// eviction, so an upstream that never answers cannot pin the
	// id space forever.
	DefaultTTL = 30 * time.Second

	idSpace = 1 << 16
)

var ErrFull = errors.New("all transaction ids in flight")

// Entry records where a forwarded query came from.
type Entry struct {
	ID   uint16       // transaction id the client used
	Addr *net.UDPAddr // where the upstream reply goes
}

type entry struct {
	Entry
	deadline time.Time
}

// Table maps the transaction ids the relay put on forwarded queries
// back to their origin. All map work happens under one mutex held only
// for the map operation, never across a socket write.
type Table struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[uint16]entry
	rand    *rand.Rand

	stop chan struct{}
	done chan struct{}
}

func New(ttl time.Duration) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Table{
		ttl:     ttl,
		entries: make(map[uint16]entry, 64),
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Insert stores the origin of a forwarded query under a fresh random
// transaction id and returns that id. The roll and the insert share one
// critical section, so two concurrent inserts can never hand out the
// same id. The surrogate also never equals the id it replaces. An id
// held by an expired entry may be reused.
func (t *Table) Insert(id uint16, addr *net.UDPAddr) (uint16, error) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= idSpace-1 {
		t.evict(now)
	}
	if len(t.entries) == idSpace {
		return 0, ErrFull
	}
	if len(t.entries) == idSpace-1 {
		if _, ok := t.entries[id]; !ok {
			// the one free slot is the id we must not reuse
			return 0, ErrFull
		}
	}

	var sid uint16
	for {
		sid = uint16(t.rand.Intn(idSpace))
		if sid == id {
			continue
		}
		e, ok := t.entries[sid]
		if !ok || now.After(e.deadline) {
			break
		}
	}

	t.entries[sid] = entry{
		Entry:    Entry{ID: id, Addr: addr},
		deadline: now.Add(t.ttl),
	}
	return sid, nil
}

// Remove consumes the entry for sid. The second call for the same id
// reports false, as does a call after the entry expired.
func (t *Table) Remove(sid uint16) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[sid]
	if !ok {
		return Entry{}, false
	}
	delete(t.entries, sid)

	if time.Now().After(e.deadline) {
		return Entry{}, false
	}
	return e.Entry, true
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// evict deletes every expired entry. Caller holds the lock.
func (t *Table) evict(now time.Time) int {
	var n int
	for sid, e := range t.entries {
		if now.After(e.deadline) {
			delete(t.entries, sid)
			n++
		}
	}
	return n
}

// Start launches the background sweeper.
func (t *Table) Start() {
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.sweep()
}

// Stop ends the sweeper and waits for it, if one was started.
func (t *Table) Stop() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
}

func (t *Table) sweep() {
	defer close(t.done)

	ticker := time.NewTicker(t.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.mu.Lock()
			n := t.evict(time.Now())
			t.mu.Unlock()
			if n > 0 {
				log.Sugar.Debugf("pending swept %d expired entries", n)
			}
		case <-t.stop:
			return
		}
	}
}
