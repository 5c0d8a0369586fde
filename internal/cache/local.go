package cache

import (
	"container/list"
	"sync"
	"time"
)

type localEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// Local is the bounded in-process tier. Entries expire individually and the
// oldest inserted entry is evicted first once MaxEntries is reached.
// Overwriting a key keeps its insertion position.
type Local struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front is the oldest insertion
	maxEntries int
	now        func() time.Time
}

// NewLocal creates a local tier holding at most maxEntries entries. Zero means unbounded.
func NewLocal(maxEntries int) *Local {
	return &Local{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the stored value if present and not expired.
func (l *Local) Get(key string) ([]byte, bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.items[key]
	if !ok {
		return nil, false
	}

	e := el.Value.(*localEntry) //nolint:forcetypeassert
	if !now.Before(e.expiresAt) {
		l.removeElement(el)

		return nil, false
	}

	return e.value, true
}

// Set stores value until now+ttl and reports how many entries were evicted to make room.
// A non-positive ttl removes the key.
func (l *Local) Set(key string, value []byte, ttl time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if ttl <= 0 {
		if el, ok := l.items[key]; ok {
			l.removeElement(el)
		}

		return 0
	}

	if el, ok := l.items[key]; ok {
		e := el.Value.(*localEntry) //nolint:forcetypeassert
		e.value = value
		e.expiresAt = now.Add(ttl)

		return 0
	}

	evicted := 0

	for l.maxEntries > 0 && l.order.Len() >= l.maxEntries {
		l.removeElement(l.order.Front())
		evicted++
	}

	l.items[key] = l.order.PushBack(&localEntry{key: key, value: value, expiresAt: now.Add(ttl)})

	return evicted
}

// Delete removes key and reports whether it was present.
func (l *Local) Delete(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.items[key]
	if ok {
		l.removeElement(el)
	}

	return ok
}

// DeletePattern removes every key matching the glob and returns the removed keys.
func (l *Local) DeletePattern(pattern string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []string

	for key, el := range l.items {
		if Match(pattern, key) {
			l.removeElement(el)
			removed = append(removed, key)
		}
	}

	return removed
}

// Purge drops every expired entry and returns how many were dropped.
func (l *Local) Purge() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0

	for el := l.order.Front(); el != nil; {
		next := el.Next()

		if !now.Before(el.Value.(*localEntry).expiresAt) { //nolint:forcetypeassert
			l.removeElement(el)
			n++
		}

		el = next
	}

	return n
}

// Flush removes everything.
func (l *Local) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = make(map[string]*list.Element)
	l.order.Init()
}

// Len returns the number of stored entries, expired ones included until they are touched.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.order.Len()
}

func (l *Local) removeElement(el *list.Element) {
	delete(l.items, el.Value.(*localEntry).key) //nolint:forcetypeassert
	l.order.Remove(el)
}
