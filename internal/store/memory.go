package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// FaultFunc lets tests fail individual operations. It receives the operation
// name ("get", "put", "update", "increment", "list") and the path or counter.
type FaultFunc func(op, path string) error

type memoryNode struct {
	value   []byte
	version int64
}

// Memory is an in-process Store. Update functions run under the store lock,
// so they must not call back into the store.
type Memory struct {
	mu       sync.Mutex
	nodes    map[string]memoryNode
	counters map[string]int64
	subs     map[int]*subscriber
	nextSub  int
	fault    FaultFunc
	writes   atomic.Int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nodes:    make(map[string]memoryNode),
		counters: make(map[string]int64),
		subs:     make(map[int]*subscriber),
	}
}

// SetFault installs a fault hook; nil removes it.
func (m *Memory) SetFault(fn FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

// Writes returns how many values have been written so far.
func (m *Memory) Writes() int64 {
	return m.writes.Load()
}

func (m *Memory) check(op, path string) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(op, path)
}

// Get returns the value at path or ErrNotFound.
func (m *Memory) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("get", path); err != nil {
		return nil, err
	}

	node, ok := m.nodes[path]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(node.value), nil
}

// Put replaces the value at path.
func (m *Memory) Put(ctx context.Context, path string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("put", path); err != nil {
		return err
	}

	m.write(path, value)
	return nil
}

// Update applies fn to the current value while holding the store lock.
func (m *Memory) Update(ctx context.Context, path string, fn UpdateFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("update", path); err != nil {
		return nil, err
	}

	var current []byte
	if node, ok := m.nodes[path]; ok {
		current = clone(node.value)
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	m.write(path, next)
	return clone(next), nil
}

// Increment adds one to the named counter.
func (m *Memory) Increment(ctx context.Context, counter string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("increment", counter); err != nil {
		return 0, err
	}

	m.counters[counter]++
	return m.counters[counter], nil
}

// List returns every entry below prefix ordered by path.
func (m *Memory) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("list", prefix); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0)
	for path, node := range m.nodes {
		if strings.HasPrefix(path, prefix) {
			entries = append(entries, Entry{Path: path, Value: clone(node.value), Version: node.version})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

// Subscribe streams changes below prefix until ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, prefix string) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := newSubscriber(prefix)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = sub
	m.mu.Unlock()

	go func() {
		sub.run(ctx)
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}()

	return sub.out, nil
}

// write stores value and fans the change out. Callers hold m.mu.
func (m *Memory) write(path string, value []byte) {
	node := m.nodes[path]
	node.value = clone(value)
	node.version++
	m.nodes[path] = node
	m.writes.Add(1)

	for _, sub := range m.subs {
		if strings.HasPrefix(path, sub.prefix) {
			sub.push(Event{Path: path, Value: clone(value)})
		}
	}
}

// subscriber buffers events without bound so writers never block on a slow
// reader.
type subscriber struct {
	prefix string
	out    chan Event
	notify chan struct{}

	mu    sync.Mutex
	queue []Event
}

func newSubscriber(prefix string) *subscriber {
	return &subscriber{
		prefix: prefix,
		out:    make(chan Event),
		notify: make(chan struct{}, 1),
	}
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) run(ctx context.Context) {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-s.notify:
				continue
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
