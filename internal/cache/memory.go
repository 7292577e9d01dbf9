package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type memoryEntry struct {
	ids       []string
	scope     domain.Scope
	expiresAt time.Time
}

// Memory — in-process кэш ранжирований с индексом по товарам для инвалидации.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	global    map[string]struct{}
	byProduct map[string]map[string]struct{}
	now       func() time.Time

	// поколения: globalGen растёт при каждой инвалидации, productGen по товару
	globalGen  int64
	productGen map[string]int64
}

// MemoryOption настраивает Memory.
type MemoryOption func(*Memory)

// WithClock подменяет источник времени (для тестов TTL).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory создаёт пустой in-memory кэш.
func NewMemory(options ...MemoryOption) *Memory {
	m := &Memory{
		entries:   make(map[string]memoryEntry),
		global:    make(map[string]struct{}),
		byProduct:  make(map[string]map[string]struct{}),
		productGen: make(map[string]int64),
		now:        time.Now,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Get возвращает копию ранжирования или domain.ErrCacheMiss.
func (m *Memory) Get(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.removeLocked(key)
		return nil, domain.ErrCacheMiss
	}

	out := make([]string, len(entry.ids))
	copy(out, entry.ids)
	return out, nil
}

// Generation возвращает поколение scope: для неограниченного scope это счётчик
// всех инвалидаций, для ограниченного сумма счётчиков его товаров.
func (m *Memory) Generation(_ context.Context, scope domain.Scope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generationLocked(scope), nil
}

// Set сохраняет ранжирование. ttl <= 0 означает запись без срока жизни.
func (m *Memory) Set(_ context.Context, key string, scope domain.Scope, ids []string, ttl time.Duration, generation int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generationLocked(scope) != generation {
		return domain.ErrStaleRanking
	}
	m.removeLocked(key)

	stored := make([]string, len(ids))
	copy(stored, ids)
	entry := memoryEntry{ids: stored, scope: scope}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry

	if !scope.Restricted() {
		m.global[key] = struct{}{}
		return nil
	}
	for _, id := range scope.IDs() {
		keys, ok := m.byProduct[id]
		if !ok {
			keys = make(map[string]struct{})
			m.byProduct[id] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// InvalidateProducts удаляет глобальные записи и записи, чей scope содержит один из товаров.
func (m *Memory) InvalidateProducts(_ context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.globalGen++
	for _, id := range productIDs {
		m.productGen[id]++
	}
	for key := range m.global {
		m.removeLocked(key)
	}
	for _, id := range productIDs {
		for key := range m.byProduct[id] {
			m.removeLocked(key)
		}
	}
	return nil
}

// Len возвращает число записей (включая ещё не вычищенные просроченные).
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) generationLocked(scope domain.Scope) int64 {
	if !scope.Restricted() {
		return m.globalGen
	}
	var gen int64
	for _, id := range scope.IDs() {
		gen += m.productGen[id]
	}
	return gen
}

func (m *Memory) removeLocked(key string) {
	entry, ok := m.entries[key]
	if !ok {
		return
	}
	delete(m.entries, key)
	if !entry.scope.Restricted() {
		delete(m.global, key)
		return
	}
	for _, id := range entry.scope.IDs() {
		keys := m.byProduct[id]
		delete(keys, key)
		if len(keys) == 0 {
			delete(m.byProduct, id)
		}
	}
}

var _ domain.RankingCache = (*Memory)(nil)
