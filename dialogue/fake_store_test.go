package dialogue

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/m3rciful/counterbot/counters"
)

// memStore is an in-memory counters.Store for controller tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64][]counters.Counter
	// fail makes every partition call return a PersistenceError.
	fail bool
	// mutations counts successful writes.
	mutations int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64][]counters.Counter)}
}

func (s *memStore) Chat(chatID int64) counters.Partition {
	return &memPartition{s: s, chatID: chatID}
}

func (s *memStore) Stats(context.Context) (counters.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st counters.Stats
	for _, rows := range s.rows {
		if len(rows) > 0 {
			st.Chats++
			st.Counters += int64(len(rows))
		}
	}
	return st, nil
}

func (s *memStore) snapshot(chatID int64) []counters.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]counters.Counter(nil), s.rows[chatID]...)
}

var errDisk = errors.New("disk I/O error")

type memPartition struct {
	s      *memStore
	chatID int64
}

func (p *memPartition) check(op string) error {
	if p.s.fail {
		return &counters.PersistenceError{Op: op, Err: errDisk}
	}
	return nil
}

func (p *memPartition) find(id int64) int {
	for i, c := range p.s.rows[p.chatID] {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (p *memPartition) Create(_ context.Context, name string, initial int64) (int64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.check("create"); err != nil {
		return 0, err
	}
	name, err := counters.NormalizeName(name)
	if err != nil {
		return 0, err
	}
	p.s.nextID++
	p.s.rows[p.chatID] = append(p.s.rows[p.chatID], counters.Counter{ID: p.s.nextID, Name: name, Value: initial})
	p.s.mutations++
	return p.s.nextID, nil
}

func (p *memPartition) List(context.Context) ([]counters.Counter, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.check("list"); err != nil {
		return nil, err
	}
	return append([]counters.Counter{}, p.s.rows[p.chatID]...), nil
}

func (p *memPartition) Get(_ context.Context, id int64) (counters.Counter, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.check("get"); err != nil {
		return counters.Counter{}, err
	}
	i := p.find(id)
	if i < 0 {
		return counters.Counter{}, counters.ErrNotFound
	}
	return p.s.rows[p.chatID][i], nil
}

func (p *memPartition) IncrementBy(_ context.Context, id, delta int64) (int64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.check("increment"); err != nil {
		return 0, err
	}
	i := p.find(id)
	if i < 0 {
		return 0, counters.ErrNotFound
	}
	v := p.s.rows[p.chatID][i].Value
	if (delta > 0 && v > math.MaxInt64-delta) || (delta < 0 && v < math.MinInt64-delta) {
		return 0, &counters.ValidationError{Field: "value", Reason: "out of range"}
	}
	p.s.rows[p.chatID][i].Value += delta
	p.s.mutations++
	return p.s.rows[p.chatID][i].Value, nil
}

func (p *memPartition) SetValue(_ context.Context, id, value int64) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.check("set"); err != nil {
		return err
	}
	i := p.find(id)
	if i < 0 {
		return counters.ErrNotFound
	}
	p.s.rows[p.chatID][i].Value = value
	p.s.mutations++
	return nil
}

func (p *memPartition) Delete(_ context.Context, id int64) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.check("delete"); err != nil {
		return err
	}
	i := p.find(id)
	if i < 0 {
		return counters.ErrNotFound
	}
	rows := p.s.rows[p.chatID]
	p.s.rows[p.chatID] = append(rows[:i:i], rows[i+1:]...)
	p.s.mutations++
	return nil
}
