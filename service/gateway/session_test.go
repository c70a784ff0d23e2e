package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"TeleProject/service/bus"
)

// fakeDirectory is a mutable in-memory ownership table, so tests can
// transfer devices while a session is live and inject lookup failures.
type fakeDirectory struct {
	mu       sync.Mutex
	owned    map[string][]string // user -> device ids
	failNext int                 // fail this many lookups, then recover
	calls    int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{owned: make(map[string][]string)}
}

func (d *fakeDirectory) OwnedDeviceIDs(ctx context.Context, userID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failNext > 0 {
		d.failNext--
		return nil, errors.New("directory unavailable")
	}
	return append([]string(nil), d.owned[userID]...), nil
}

func (d *fakeDirectory) setOwned(user string, ids ...string) {
	d.mu.Lock()
	d.owned[user] = ids
	d.mu.Unlock()
}

func (d *fakeDirectory) failLookups(n int) {
	d.mu.Lock()
	d.failNext = n
	d.mu.Unlock()
}

func (d *fakeDirectory) lookups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// fakeConn is an in-memory stand-in for the websocket connection:
// ReadMessage parks until the conn is closed, WriteMessage records
// forwarded payloads.
type fakeConn struct {
	writes chan []byte

	closeOnce  sync.Once
	closed     chan struct{}
	writeErr   error
	writeErrMu sync.Mutex
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		writes: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("use of closed connection")
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.writeErrMu.Lock()
	werr := c.writeErr
	c.writeErrMu.Unlock()
	if werr != nil {
		return werr
	}
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	case c.writes <- append([]byte(nil), data...):
		return nil
	}
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) failWrites(err error) {
	c.writeErrMu.Lock()
	c.writeErr = err
	c.writeErrMu.Unlock()
}

func (c *fakeConn) expectWrite(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-c.writes:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("no message pushed to client")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// startSession spins up a session over the memory bus and waits until it
// is ACTIVE and subscribed.
func startSession(t *testing.T, b *bus.MemoryBus, dir *fakeDirectory, user string, devices ...string) (*Session, *fakeConn, *Registry) {
	t.Helper()
	dir.setOwned(user, devices...)
	ws := newFakeConn()
	reg := NewRegistry()
	sess := NewSession("conn-"+user, user, devices, ws, b, NewFilter(dir), reg)

	go func() { _ = sess.Run(context.Background()) }()
	waitFor(t, "session active", func() bool { return sess.State() == StateActive })
	waitFor(t, "subscription live", func() bool { return b.SubscriberCount(bus.BroadcastTopic) > 0 })
	return sess, ws, reg
}

func publish(t *testing.T, b *bus.MemoryBus, topic, payload string) {
	t.Helper()
	if err := b.Publish(context.Background(), topic, []byte(payload)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

func TestSessionForwardsOwnedDevice(t *testing.T) {
	b := bus.NewMemoryBus()
	dir := newFakeDirectory()
	sess, ws, _ := startSession(t, b, dir, "alice", "dev-1")
	defer sess.Close()

	payload := `{"device_id":"dev-1","temperature":21.5}`
	publish(t, b, "device:dev-1", payload)

	if got := string(ws.expectWrite(t)); got != payload {
		t.Fatalf("forwarded payload mismatch: %s", got)
	}

	// Exactly once: nothing further pending.
	select {
	case extra := <-ws.writes:
		t.Fatalf("duplicate delivery: %s", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionNeverForwardsForeignDevice(t *testing.T) {
	b := bus.NewMemoryBus()
	dir := newFakeDirectory()
	dir.setOwned("bob", "dev-2")
	sess, ws, _ := startSession(t, b, dir, "alice", "dev-1")
	defer sess.Close()

	// dev-2 arrives on the broadcast topic alice is subscribed to; the
	// ownership filter must still reject it.
	publish(t, b, bus.BroadcastTopic, `{"device_id":"dev-2","temperature":9.9}`)
	owned := `{"device_id":"dev-1","temperature":21.5}`
	publish(t, b, bus.BroadcastTopic, owned)

	if got := string(ws.expectWrite(t)); got != owned {
		t.Fatalf("broadcast leaked a foreign device reading: %s", got)
	}
}

func TestSessionOwnershipTransferClosesLeak(t *testing.T) {
	b := bus.NewMemoryBus()
	dir := newFakeDirectory()
	sess, ws, _ := startSession(t, b, dir, "alice", "dev-1")
	defer sess.Close()

	// Transfer dev-1 away after connect. The connect-time snapshot still
	// has alice subscribed to device:dev-1, but the per-message re-check
	// must use current ownership.
	dir.setOwned("alice")
	dir.setOwned("bob", "dev-1")

	before := dir.lookups()
	publish(t, b, "device:dev-1", `{"device_id":"dev-1","temperature":1}`)
	waitFor(t, "re-check of transferred device", func() bool { return dir.lookups() > before })

	// Give dev-1 back: the next reading flows again, proving the first
	// one was filtered rather than lost in transit.
	dir.setOwned("alice", "dev-1")
	after := `{"device_id":"dev-1","temperature":2}`
	publish(t, b, "device:dev-1", after)

	if got := string(ws.expectWrite(t)); got != after {
		t.Fatalf("stale snapshot leaked a transferred device: %s", got)
	}
}

func TestSessionMalformedMessageDoesNotKill(t *testing.T) {
	b := bus.NewMemoryBus()
	dir := newFakeDirectory()
	sess, ws, _ := startSession(t, b, dir, "alice", "dev-1")
	defer sess.Close()

	publish(t, b, "device:dev-1", `this is not json`)
	publish(t, b, "device:dev-1", `{"no_device_id":true}`)

	if sess.State() != StateActive {
		t.Fatalf("session state = %v after malformed input", sess.State())
	}

	good := `{"device_id":"dev-1","voltage":3.3}`
	publish(t, b, "device:dev-1", good)
	if got := string(ws.expectWrite(t)); got != good {
		t.Fatalf("well-formed message lost after malformed one: %s", got)
	}
}

func TestSessionDirectoryErrorDropsFailClosed(t *testing.T) {
	b := bus.NewMemoryBus()
	dir := newFakeDirectory()
	sess, ws, _ := startSession(t, b, dir, "alice", "dev-1")
	defer sess.Close()

	// Exactly one lookup fails: the message it was checking is dropped,
	// the next one flows.
	dir.failLookups(1)
	publish(t, b, "device:dev-1", `{"device_id":"dev-1","temperature":1}`)
	after := `{"device_id":"dev-1","temperature":2}`
	publish(t, b, "device:dev-1", after)

	// The message during the outage was dropped; the session survived.
	if got := string(ws.expectWrite(t)); got != after {
		t.Fatalf("fail-closed violated, got: %s", got)
	}
	if sess.State() != StateActive {
		t.Fatalf("session state = %v after directory error", sess.State())
	}
}

func TestSessionCloseReleasesSubscription(t *testing.T) {
	b := bus.NewMemoryBus()
	dir := newFakeDirectory()
	sess, _, reg := startSession(t, b, dir, "alice", "dev-1")

	if reg.Count() != 1 {
		t.Fatalf("registry count = %d", reg.Count())
	}

	sess.Close()

	if sess.State() != StateClosed {
		t.Fatalf("state = %v after close", sess.State())
	}
	if reg.Count() != 0 {
		t.Fatalf("registry count = %d after close", reg.Count())
	}
	if n := b.SubscriberCount("device:dev-1"); n != 0 {
		t.Fatalf("device topic subscriber leak: %d", n)
	}
	if n := b.SubscriberCount(bus.BroadcastTopic); n != 0 {
		t.Fatalf("broadcast subscriber leak: %d", n)
	}

	// Publishing after teardown has no observable effect on the session.
	publish(t, b, "device:dev-1", `{"device_id":"dev-1","temperature":3}`)
}

func TestSessionConcurrentCloseIdempotent(t *testing.T) {
	b := bus.NewMemoryBus()
	dir := newFakeDirectory()
	sess, _, reg := startSession(t, b, dir, "alice", "dev-1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Close()
		}()
	}
	wg.Wait()

	if sess.State() != StateClosed {
		t.Fatalf("state = %v", sess.State())
	}
	if reg.Count() != 0 {
		t.Fatalf("registry count = %d", reg.Count())
	}
}

func TestSessionClientDisconnectTearsDown(t *testing.T) {
	b := bus.NewMemoryBus()
	dir := newFakeDirectory()
	sess, ws, reg := startSession(t, b, dir, "alice", "dev-1")

	// Client goes away: the read loop notices and drives teardown.
	_ = ws.Close()

	waitFor(t, "session closed", func() bool { return sess.State() == StateClosed })
	if reg.Count() != 0 {
		t.Fatalf("registry count = %d", reg.Count())
	}
	if n := b.SubscriberCount(bus.BroadcastTopic); n != 0 {
		t.Fatalf("subscriber leak: %d", n)
	}
}

func TestSessionPushFailureTearsDown(t *testing.T) {
	b := bus.NewMemoryBus()
	dir := newFakeDirectory()
	sess, ws, _ := startSession(t, b, dir, "alice", "dev-1")

	ws.failWrites(errors.New("broken pipe"))
	publish(t, b, "device:dev-1", `{"device_id":"dev-1","temperature":1}`)

	waitFor(t, "session closed", func() bool { return sess.State() == StateClosed })
}

// failBus refuses every subscribe, modeling a bus outage at connect time.
type failBus struct{}

func (failBus) Subscribe(ctx context.Context, topics ...string) (bus.Subscription, error) {
	return nil, errors.New("bus down")
}

func (failBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return errors.New("bus down")
}

func TestSessionSubscribeFailureNoPartialSession(t *testing.T) {
	dir := newFakeDirectory()
	dir.setOwned("alice", "dev-1")
	ws := newFakeConn()
	reg := NewRegistry()
	sess := NewSession("conn-1", "alice", []string{"dev-1"}, ws, failBus{}, NewFilter(dir), reg)

	if err := sess.Run(context.Background()); err == nil {
		t.Fatal("expected subscribe error")
	}
	if sess.State() != StateClosed {
		t.Fatalf("state = %v", sess.State())
	}
	if reg.Count() != 0 {
		t.Fatalf("registry count = %d, partial session left behind", reg.Count())
	}
	select {
	case <-ws.closed:
	default:
		t.Fatal("client socket left open after failed connect")
	}
}

func TestSessionTopics(t *testing.T) {
	sess := NewSession("c", "alice", []string{"dev-1", "dev-2"}, newFakeConn(), bus.NewMemoryBus(), NewFilter(newFakeDirectory()), NewRegistry())
	topics := sess.Topics()
	want := map[string]bool{"device:dev-1": true, "device:dev-2": true, "devices:all": true}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v", topics)
	}
	for _, topic := range topics {
		if !want[topic] {
			t.Fatalf("unexpected topic %s", topic)
		}
	}
}
