package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ricardomussett/ms-server-gps-socket/internal/router"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/filter"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/position"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/state"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/state/registry"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeTransport struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeTransport) Send(message []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
}

func (f *fakeTransport) Close(error) {}

func (f *fakeTransport) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

type fakeSource struct {
	records []position.Record
	err     error
	matcher *filter.Matcher
}

func (f *fakeSource) FilteredPositions(_ context.Context, flt *filter.Filter) ([]position.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []position.Record
	for _, rec := range f.records {
		if f.matcher.Matches(rec, flt) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func requestData(t *testing.T, payload string) []byte {
	t.Helper()
	msg, err := json.Marshal(router.ClientMessage{Event: router.EventRequestData, Payload: json.RawMessage(payload)})
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestRequestDataSendsFilteredSnapshot(t *testing.T) {
	reg := registry.NewInMemory(newTestLogger())
	source := &fakeSource{
		matcher: filter.NewMatcher(filter.PolicyPseudoIP),
		records: []position.Record{
			{position.DeviceIDField: "IP1", "speed": "10"},
			{position.DeviceIDField: "IP2", "speed": "20"},
		},
	}
	r := router.NewEventRouter(newTestLogger(), reg, source, filter.PolicyPseudoIP, false)

	tr := &fakeTransport{}
	id := uuid.New()
	reg.Register(id, tr, "127.0.0.1")

	r.HandleMessage(context.Background(), id, requestData(t, `{"pseudoIPs":["IP1"]}`))

	sent := tr.messages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one push, got %d", len(sent))
	}

	var out struct {
		Event   string            `json:"event"`
		Payload []position.Record `json:"payload"`
	}
	if err := json.Unmarshal(sent[0], &out); err != nil {
		t.Fatalf("unmarshal push: %v", err)
	}
	if out.Event != router.EventInitialPositions {
		t.Errorf("expected %q event, got %q", router.EventInitialPositions, out.Event)
	}
	if len(out.Payload) != 1 || out.Payload[0].DeviceID() != "IP1" {
		t.Errorf("expected only the IP1 record, got %v", out.Payload)
	}

	sess, _ := reg.Get(id)
	if sess.Filter == nil {
		t.Error("expected filter attached to the session")
	}
}

func TestRequestDataEmptySnapshotIsNotPushed(t *testing.T) {
	reg := registry.NewInMemory(newTestLogger())
	source := &fakeSource{matcher: filter.NewMatcher(filter.PolicyPseudoIP)}
	r := router.NewEventRouter(newTestLogger(), reg, source, filter.PolicyPseudoIP, false)

	tr := &fakeTransport{}
	id := uuid.New()
	reg.Register(id, tr, "127.0.0.1")

	r.HandleMessage(context.Background(), id, requestData(t, `{"pseudoIPs":["IP1"]}`))

	if len(tr.messages()) != 0 {
		t.Error("empty snapshot must not produce a push")
	}
}

func TestRequestDataStoreFailureIsSilent(t *testing.T) {
	reg := registry.NewInMemory(newTestLogger())
	source := &fakeSource{err: errors.New("store down")}
	r := router.NewEventRouter(newTestLogger(), reg, source, filter.PolicyPseudoIP, false)

	tr := &fakeTransport{}
	id := uuid.New()
	reg.Register(id, tr, "127.0.0.1")

	r.HandleMessage(context.Background(), id, requestData(t, `{"pseudoIPs":["IP1"]}`))

	if len(tr.messages()) != 0 {
		t.Error("store failure must be invisible to the viewer")
	}
	if sess, _ := reg.Get(id); sess.Filter == nil {
		t.Error("filter must still be registered when the snapshot fails")
	}
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	reg := registry.NewInMemory(newTestLogger())
	source := &fakeSource{matcher: filter.NewMatcher(filter.PolicyPseudoIP)}
	r := router.NewEventRouter(newTestLogger(), reg, source, filter.PolicyPseudoIP, false)

	tr := &fakeTransport{}
	id := uuid.New()
	reg.Register(id, tr, "127.0.0.1")

	r.HandleMessage(context.Background(), id, []byte("not json"))
	r.HandleMessage(context.Background(), id, []byte(`{"event":"no-such-event","payload":{}}`))
	r.HandleMessage(context.Background(), id, requestData(t, `"not an object"`))

	if len(tr.messages()) != 0 {
		t.Error("malformed or unknown messages must produce nothing")
	}
}

func TestRequestDataForUnknownConnectionIsNoop(t *testing.T) {
	reg := registry.NewInMemory(newTestLogger())
	source := &fakeSource{
		matcher: filter.NewMatcher(filter.PolicyPseudoIP),
		records: []position.Record{{position.DeviceIDField: "IP1"}},
	}
	r := router.NewEventRouter(newTestLogger(), reg, source, filter.PolicyPseudoIP, false)

	// Simulates the disconnect / request-data race: the id is gone.
	r.HandleMessage(context.Background(), uuid.New(), requestData(t, `{"pseudoIPs":["IP1"]}`))

	if reg.Len() != 0 {
		t.Error("request-data must never create registry entries")
	}
}

func TestTimeRangePolicyParsesBounds(t *testing.T) {
	reg := registry.NewInMemory(newTestLogger())
	source := &fakeSource{
		matcher: filter.NewMatcher(filter.PolicyTimeRange),
		records: []position.Record{
			{position.DeviceIDField: "IP1", "timestamp": "2024-01-15T00:00:00Z"},
			{position.DeviceIDField: "IP2", "timestamp": "2024-03-01T00:00:00Z"},
		},
	}
	r := router.NewEventRouter(newTestLogger(), reg, source, filter.PolicyTimeRange, false)

	tr := &fakeTransport{}
	id := uuid.New()
	reg.Register(id, tr, "127.0.0.1")

	r.HandleMessage(context.Background(), id, requestData(t, `{"from":"2024-01-01T00:00:00Z","to":"2024-01-31T00:00:00Z"}`))

	sent := tr.messages()
	if len(sent) != 1 {
		t.Fatalf("expected one push, got %d", len(sent))
	}
	var out struct {
		Payload []position.Record `json:"payload"`
	}
	if err := json.Unmarshal(sent[0], &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Payload) != 1 || out.Payload[0].DeviceID() != "IP1" {
		t.Errorf("expected only the in-range record, got %v", out.Payload)
	}
}

var _ state.Transport = (*fakeTransport)(nil)
