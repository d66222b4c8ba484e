package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/varwatch/varwatch/pkg/types"
)

func rec(file string, line int, key, value any) types.Record {
	return types.Record{File: file, Line: line, Key: key, Value: value, CapturedAt: time.Now()}
}

func TestPut_LastWriteWins(t *testing.T) {
	b := New()
	b.Put(rec("user.py", 19, "t1", 5))
	b.Put(rec("user.py", 19, "t1", 7))

	out := b.DrainAll()
	if len(out) != 1 {
		t.Fatalf("drain: got %d records, want 1", len(out))
	}
	if out[0].Value != 7 {
		t.Errorf("value: got %v, want 7 (last write)", out[0].Value)
	}
}

func TestPut_DistinctKeysKept(t *testing.T) {
	b := New()
	b.Put(rec("user.py", 19, "t1", 5))
	b.Put(rec("user.py", 19, "t2", 7))

	if n := b.Len(); n != 2 {
		t.Errorf("Len: got %d, want 2", n)
	}
}

func TestPut_SameKeyDifferentPointsKept(t *testing.T) {
	// An equal primary key at two different points must not collide.
	b := New()
	b.Put(rec("a.py", 1, "t1", 5))
	b.Put(rec("b.py", 9, "t1", 7))

	if n := b.Len(); n != 2 {
		t.Errorf("Len: got %d, want 2", n)
	}
}

func TestDrainAll_EmptyAndClears(t *testing.T) {
	b := New()
	if out := b.DrainAll(); out != nil {
		t.Errorf("empty drain: got %v, want nil", out)
	}

	b.Put(rec("a.py", 1, "t1", 5))
	if got := len(b.DrainAll()); got != 1 {
		t.Fatalf("first drain: got %d records", got)
	}
	if out := b.DrainAll(); out != nil {
		t.Errorf("second drain should be empty, got %v", out)
	}
}

// TestConservation checks that under concurrent puts and drains every key
// appears in exactly one drain: nothing lost, nothing duplicated.
func TestConservation(t *testing.T) {
	const (
		writers       = 4
		keysPerWriter = 500
	)
	b := New()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < keysPerWriter; i++ {
				b.Put(rec("a.py", 1, fmt.Sprintf("w%d-k%d", w, i), i))
			}
		}(w)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
	)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	collect := func() {
		for _, r := range b.DrainAll() {
			mu.Lock()
			seen[fmt.Sprint(r.Key)]++
			mu.Unlock()
		}
	}

	for {
		select {
		case <-done:
			collect() // final drain picks up the remainder
			total := writers * keysPerWriter
			if len(seen) != total {
				t.Fatalf("keys observed: got %d, want %d", len(seen), total)
			}
			for k, n := range seen {
				if n != 1 {
					t.Fatalf("key %s observed %d times across drains", k, n)
				}
			}
			return
		default:
			collect()
		}
	}
}
