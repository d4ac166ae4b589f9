package registry_test

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/filter"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/state"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/state/registry"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRegistry() *registry.InMemory {
	return registry.NewInMemory(newTestLogger())
}

type nopTransport struct{}

func (nopTransport) Send([]byte) {}
func (nopTransport) Close(error) {}

var _ state.Transport = nopTransport{}

func TestSessionLifecycle(t *testing.T) {
	r := newTestRegistry()
	id := uuid.New()

	sess := r.Register(id, nopTransport{}, "127.0.0.1")
	if sess.ID != id {
		t.Errorf("registered session ID mismatch")
	}
	if sess.Filter != nil {
		t.Error("fresh session must have no filter")
	}

	got, found := r.Get(id)
	if !found {
		t.Fatal("Get failed to find registered session")
	}
	if got.ID != id {
		t.Errorf("retrieved session ID mismatch")
	}

	r.Unregister(id)
	if _, found := r.Get(id); found {
		t.Error("found session after it should have been unregistered")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d sessions", r.Len())
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	id := uuid.New()
	r.Register(id, nopTransport{}, "127.0.0.1")

	r.Unregister(id)
	r.Unregister(id) // duplicate disconnect signal
	r.Unregister(uuid.New())

	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d sessions", r.Len())
	}
}

func TestReRegisterResetsFilter(t *testing.T) {
	r := newTestRegistry()
	id := uuid.New()

	r.Register(id, nopTransport{}, "127.0.0.1")
	r.SetFilter(id, filter.New([]string{"10.0.0.1"}))
	if got, _ := r.Get(id); got.Filter == nil {
		t.Fatal("filter not set")
	}

	r.Register(id, nopTransport{}, "127.0.0.1")
	if got, _ := r.Get(id); got.Filter != nil {
		t.Error("re-register must reset the filter to absent")
	}
}

func TestSetFilterOnUnknownSessionIsNoop(t *testing.T) {
	r := newTestRegistry()
	r.SetFilter(uuid.New(), filter.New([]string{"10.0.0.1"}))
	if r.Len() != 0 {
		t.Error("SetFilter must not create sessions")
	}
}

func TestSetFilterReplacesWholesale(t *testing.T) {
	r := newTestRegistry()
	id := uuid.New()
	r.Register(id, nopTransport{}, "127.0.0.1")

	r.SetFilter(id, filter.New([]string{"10.0.0.1", "10.0.0.2"}))
	r.SetFilter(id, filter.New([]string{"10.0.0.3"}))

	got, _ := r.Get(id)
	ips := got.Filter.PseudoIPs()
	if len(ips) != 1 || ips[0] != "10.0.0.3" {
		t.Errorf("expected filter replaced, got %v", ips)
	}
}

func TestSnapshotIsStableUnderMutation(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 10; i++ {
		r.Register(uuid.New(), nopTransport{}, "127.0.0.1")
	}

	snap := r.Snapshot()
	if len(snap) != 10 {
		t.Fatalf("expected snapshot of 10 sessions, got %d", len(snap))
	}

	// Mutating the registry while walking the snapshot must not change it.
	for _, sess := range snap {
		r.Unregister(sess.ID)
		r.Register(uuid.New(), nopTransport{}, "10.9.9.9")
	}
	if len(snap) != 10 {
		t.Errorf("snapshot changed under mutation: %d", len(snap))
	}
}

func TestCountByAddr(t *testing.T) {
	r := newTestRegistry()
	r.Register(uuid.New(), nopTransport{}, "1.1.1.1")
	r.Register(uuid.New(), nopTransport{}, "1.1.1.1")
	r.Register(uuid.New(), nopTransport{}, "2.2.2.2")

	if n := r.CountByAddr("1.1.1.1"); n != 2 {
		t.Errorf("expected 2 sessions for 1.1.1.1, got %d", n)
	}
	if n := r.CountByAddr("9.9.9.9"); n != 0 {
		t.Errorf("expected 0 sessions for unknown addr, got %d", n)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := newTestRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			r.Register(id, nopTransport{}, "127.0.0.1")
			r.SetFilter(id, filter.New([]string{"10.0.0.1"}))
			_ = r.Snapshot()
			r.Unregister(id)
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("expected empty registry after concurrent churn, got %d", r.Len())
	}
}
