package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Memory implementa Client con un map protegido por mutex. GetDel toma el lock
// de escritura, así que es atómico dentro del proceso.
type Memory struct {
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	data map[string]memoryEntry

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero => no expira
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemory crea un cliente en memoria. Si cleanupInterval > 0 arranca un
// janitor que purga expirados; se detiene con Close.
func NewMemory(prefix string, cleanupInterval time.Duration) *Memory {
	m := &Memory{
		prefix: prefix,
		now:    time.Now,
		data:   make(map[string]memoryEntry),
		stop:   make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.janitor(cleanupInterval)
	}
	return m
}

func (m *Memory) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.Cleanup()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[prefixed(m.prefix, key)]
	if !ok || e.expired(m.now()) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[prefixed(m.prefix, key)] = m.entry(value, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := prefixed(m.prefix, key)
	if e, ok := m.data[k]; ok && !e.expired(m.now()) {
		return false, nil
	}
	m.data[k] = m.entry(value, ttl)
	return true, nil
}

func (m *Memory) GetDel(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := prefixed(m.prefix, key)
	e, ok := m.data[k]
	if !ok {
		return "", ErrNotFound
	}
	delete(m.data, k)
	if e.expired(m.now()) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := prefixed(m.prefix, key)
	now := m.now()
	e, ok := m.data[k]
	if !ok || e.expired(now) {
		e = m.entry("0", ttl)
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("cache: %s no es un contador", key)
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	m.data[k] = e
	var left time.Duration
	if !e.expiresAt.IsZero() {
		left = e.expiresAt.Sub(now)
	}
	return n, left, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, prefixed(m.prefix, key))
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// Len cuenta las entradas vivas.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for _, e := range m.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Cleanup elimina entradas expiradas.
func (m *Memory) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
		}
	}
}

func (m *Memory) entry(value string, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}
