package memory

import (
	"sync"
	"testing"

	"ai-triage-be/pkg/persona"
	"ai-triage-be/pkg/store"
)

func TestSaveGetDelete(t *testing.T) {
	repo := NewSessionRepository()
	nurse := persona.NewRegistry().Nurse()

	sess := store.NewSession("s1", nurse)
	repo.Save(sess)

	got, found := repo.Get("s1")
	if !found {
		t.Fatal("session not found after Save")
	}
	if got.ID != "s1" {
		t.Errorf("ID = %q, want s1", got.ID)
	}

	repo.Delete("s1")
	if _, found := repo.Get("s1"); found {
		t.Error("session still present after Delete")
	}
}

func TestGetMissing(t *testing.T) {
	repo := NewSessionRepository()
	if _, found := repo.Get("nope"); found {
		t.Error("Get on missing id reported found")
	}
}

func TestLockSerializesSameSession(t *testing.T) {
	repo := NewSessionRepository()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := repo.Lock("same")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100 (lost updates under the keyed lock)", counter)
	}
}
