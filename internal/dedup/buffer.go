package dedup

import (
	"fmt"
	"sync"

	"github.com/varwatch/varwatch/pkg/types"
)

// key identifies a logical observation: one instrumentation point plus
// the evaluated primary key. Scoping by point means an equal key value at
// two different points never collides.
type key struct {
	file string
	line int
	key  string
}

// Buffer holds at most one record per key. Safe for concurrent use;
// same-key puts are linearized by the mutex.
type Buffer struct {
	mu   sync.Mutex
	data map[key]types.Record
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{data: make(map[key]types.Record)}
}

// Put stores rec, replacing any existing record with the same key.
func (b *Buffer) Put(rec types.Record) {
	k := key{file: rec.File, line: rec.Line, key: fmt.Sprint(rec.Key)}
	b.mu.Lock()
	b.data[k] = rec
	b.mu.Unlock()
}

// Len returns the current number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// DrainAll atomically removes and returns all buffered records. A put
// concurrent with a drain lands either in this drain or the next one.
// No iteration order is guaranteed.
func (b *Buffer) DrainAll() []types.Record {
	b.mu.Lock()
	data := b.data
	b.data = make(map[key]types.Record)
	b.mu.Unlock()

	if len(data) == 0 {
		return nil
	}
	out := make([]types.Record, 0, len(data))
	for _, rec := range data {
		out = append(out, rec)
	}
	return out
}
