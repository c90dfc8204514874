package survey

import (
	"sync"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()

	if _, ok := store.Get("u1"); ok {
		t.Fatal("empty store returned a session")
	}

	s := NewSession("u1")
	store.Upsert(s)
	got, ok := store.Get("u1")
	if !ok || got.UserID != "u1" {
		t.Fatalf("get after upsert: ok=%v got=%+v", ok, got)
	}

	store.Delete("u1")
	if _, ok := store.Get("u1"); ok {
		t.Fatal("session survived delete")
	}

	// Deleting again is a no-op.
	store.Delete("u1")
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			store.Upsert(NewSession(id))
			store.Get(id)
			store.Delete(id)
		}(i)
	}
	wg.Wait()
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("user")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}
}

func TestCopyAnswersIsDetached(t *testing.T) {
	s := NewSession("u1")
	s.Answers[1] = 5
	cp := s.CopyAnswers()
	s.Answers[1] = 1
	if cp[1] != 5 {
		t.Fatalf("copy shares storage with session: %v", cp)
	}
}
