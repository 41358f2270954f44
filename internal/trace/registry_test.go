package trace

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestRegistryReturnsSameHandlePerID(t *testing.T) {
	reg := NewRegistry(&stubExecutor{}, WithLogger(quietLogger()))

	id := uuid.New()
	first := reg.Handle(id)
	second := reg.Handle(id)
	if first != second {
		t.Fatal("Handle() must return the cached handle for a known identifier")
	}
	if other := reg.Handle(uuid.New()); other == first {
		t.Fatal("Handle() must return distinct handles for distinct identifiers")
	}
	if got := reg.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestRegistryConcurrentHandleCreation(t *testing.T) {
	reg := NewRegistry(&stubExecutor{}, WithLogger(quietLogger()))
	id := uuid.New()

	const callers = 16
	handles := make([]*Handle, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			handles[i] = reg.Handle(id)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < callers; i++ {
		if handles[i] != handles[0] {
			t.Fatal("concurrent Handle() calls for one identifier must share a handle")
		}
	}
	if got := reg.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
}
