package repository

import (
	"sync"
	"testing"

	"github.com/atlaschat/core/internal/domain"
)

func TestInMemory_GetOrCreate_IsIdempotent(t *testing.T) {
	r := NewInMemory()
	a := r.GetOrCreate("s1")
	b := r.GetOrCreate("s1")
	if a != b {
		t.Error("expected GetOrCreate to return the same session pointer for the same ID")
	}
}

func TestInMemory_GetOrCreate_Concurrent(t *testing.T) {
	r := NewInMemory()
	var wg sync.WaitGroup
	results := make([]*domain.Session, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("expected all concurrent GetOrCreate calls to return the same session")
		}
	}
}

func TestInMemory_DeleteAndExists(t *testing.T) {
	r := NewInMemory()
	r.GetOrCreate("s1")
	if !r.Exists("s1") {
		t.Fatal("expected session to exist after creation")
	}
	r.Delete("s1")
	if r.Exists("s1") {
		t.Error("expected session to no longer exist after Delete")
	}
}

func TestInMemory_Reset_ClearsHistoryKeepsSession(t *testing.T) {
	r := NewInMemory()
	s := r.GetOrCreate("s1")
	s.Lock()
	s.AppendMessage(domain.NewMessage(domain.RoleUser, "hello"))
	s.Unlock()

	r.Reset("s1")

	if !r.Exists("s1") {
		t.Fatal("expected Reset to keep the session present")
	}
	s2, _ := r.Get("s1")
	if len(s2.History) != 0 {
		t.Errorf("expected history cleared, got %d messages", len(s2.History))
	}
}
