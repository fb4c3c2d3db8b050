package document

import (
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Collection: загруженные документы мира. Принятые документы доступны
// через Get/List; невалидные дополнительно попадают в отдельный список,
// откуда их можно открыть и исправить.
type Collection struct {
	mu      sync.RWMutex
	docs    map[string]*Record // id -> принятая запись
	invalid map[string]*Record // id -> запись с ошибками валидации
	entropy io.Reader
}

func NewCollection() *Collection {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Collection{
		docs:    map[string]*Record{},
		invalid: map[string]*Record{},
		entropy: ulid.Monotonic(src, 0),
	}
}

// NewID: ULID: монотонный внутри процесса, сортируется по времени создания.
func (c *Collection) NewID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String()
}

// Reset очищает коллекцию перед повторной загрузкой мира.
func (c *Collection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = map[string]*Record{}
	c.invalid = map[string]*Record{}
}

// Put кладёт принятую запись. Валидная запись убирается из списка невалидных.
func (c *Collection) Put(rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := rec.Clone()
	c.docs[rec.ID] = cp
	if !rec.Invalid {
		delete(c.invalid, rec.ID)
	} else {
		c.invalid[rec.ID] = cp
	}
}

// Reject кладёт запись только в список невалидных (строгий режим).
func (c *Collection) Reject(rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, rec.ID)
	cp := rec.Clone()
	cp.Invalid = true
	c.invalid[rec.ID] = cp
}

// Get ищет принятую запись; kind и typ сравниваются без учёта регистра.
func (c *Collection) Get(kind, typ, id string) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.docs[id]
	if !ok || !matches(rec, kind, typ) {
		return nil, false
	}
	return rec.Clone(), true
}

// List: принятые записи (kind, typ) в порядке создания. Пустой typ: все типы kind.
func (c *Collection) List(kind, typ string) []*Record {
	c.mu.RLock()
	out := make([]*Record, 0, len(c.docs))
	for _, rec := range c.docs {
		if matches(rec, kind, typ) {
			out = append(out, rec.Clone())
		}
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Invalid: список невалидных записей.
func (c *Collection) Invalid() []*Record {
	c.mu.RLock()
	out := make([]*Record, 0, len(c.invalid))
	for _, rec := range c.invalid {
		out = append(out, rec.Clone())
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InvalidRecord: невалидная запись по id (в том числе отклонённая).
func (c *Collection) InvalidRecord(id string) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.invalid[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (c *Collection) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, id)
	delete(c.invalid, id)
}

// Counts: число принятых и невалидных записей.
func (c *Collection) Counts() (accepted, invalid int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs), len(c.invalid)
}

func matches(rec *Record, kind, typ string) bool {
	if !strings.EqualFold(rec.Kind, kind) {
		return false
	}
	return typ == "" || strings.EqualFold(rec.Type, typ)
}
