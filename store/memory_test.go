package store

import "testing"

func TestMemoryStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		s, err := NewMemoryStore()
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}
