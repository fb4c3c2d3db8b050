package document

import (
	"context"
	"sort"
	"sync"
)

// Store: постоянное хранилище документов и настроек мира.
//
// Save работает с оптимистичной блокировкой: запись с Version == 1 вставляется
// (ErrExists при повторе id), иначе обновляется только если в хранилище лежит
// Version-1 (ErrVersionConflict в противном случае).
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, kind, id string) (*Record, error)
	List(ctx context.Context, kind string) ([]*Record, error)
	Delete(ctx context.Context, kind, id string) error
	Count(ctx context.Context) (int, error)

	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}

// MemoryStore: Store в памяти процесса, для тестов и режима без БД.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]map[string]*Record // kind -> id -> запись
	settings map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     map[string]map[string]*Record{},
		settings: map[string]string{},
	}
}

func (m *MemoryStore) Save(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := m.docs[rec.Kind]
	if byID == nil {
		byID = map[string]*Record{}
		m.docs[rec.Kind] = byID
	}
	cur, exists := byID[rec.ID]
	switch {
	case rec.Version <= 1 && exists:
		return ErrExists
	case rec.Version > 1 && (!exists || cur.Version != rec.Version-1):
		return ErrVersionConflict
	}
	byID[rec.ID] = rec.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, kind, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.docs[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) List(ctx context.Context, kind string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, 0, len(m.docs[kind]))
	for _, rec := range m.docs[kind] {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[kind][id]; !ok {
		return ErrNotFound
	}
	delete(m.docs[kind], id)
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, byID := range m.docs {
		n += len(byID)
	}
	return n, nil
}

func (m *MemoryStore) Setting(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *MemoryStore) SetSetting(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
