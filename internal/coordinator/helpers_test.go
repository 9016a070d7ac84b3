package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-collab/internal/domain"
)

type frame struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"room_id"`
	From     string          `json:"from"`
	Username string          `json:"username"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Payload  json.RawMessage `json:"payload"`
}

type fakeTransport struct {
	mu     sync.Mutex
	frames map[domain.Handle][]frame
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(map[domain.Handle][]frame)}
}

func (f *fakeTransport) Send(h domain.Handle, data []byte) bool {
	var fr frame
	if err := json.Unmarshal(data, &fr); err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames[h] = append(f.frames[h], fr)
	return true
}

func (f *fakeTransport) framesOf(h domain.Handle) []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]frame, len(f.frames[h]))
	copy(out, f.frames[h])
	return out
}

func (f *fakeTransport) typesOf(h domain.Handle) []string {
	var types []string
	for _, fr := range f.framesOf(h) {
		types = append(types, fr.Type)
	}
	return types
}

func (f *fakeTransport) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, frs := range f.frames {
		n += len(frs)
	}
	return n
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = make(map[domain.Handle][]frame)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakePersistence struct {
	mu       sync.Mutex
	created  bool
	rooms    []string
	touched  []string
	messages []*domain.ChatMessage
	canvases map[string][]byte
	canvasCh chan struct{}
}

func newFakePersistence(created bool) *fakePersistence {
	return &fakePersistence{created: created, canvases: make(map[string][]byte), canvasCh: make(chan struct{}, 8)}
}

func (p *fakePersistence) EnsureRoom(ctx context.Context, roomID, createdBy string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms = append(p.rooms, roomID)
	return p.created, nil
}

func (p *fakePersistence) TouchRoom(ctx context.Context, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touched = append(p.touched, roomID)
	return nil
}

func (p *fakePersistence) SaveMessage(ctx context.Context, msg *domain.ChatMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePersistence) SaveCanvas(ctx context.Context, roomID string, state []byte) (string, error) {
	p.mu.Lock()
	p.canvases[roomID] = state
	p.mu.Unlock()
	p.canvasCh <- struct{}{}
	return "canvas/" + roomID + "/latest.json", nil
}

func (p *fakePersistence) savedMessages() []*domain.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.ChatMessage(nil), p.messages...)
}

type fakePublisher struct {
	mu      sync.Mutex
	actions []domain.ActionEntry
	metrics []domain.RoomMetrics
	resets  []string
}

func (p *fakePublisher) PublishAction(ctx context.Context, entry domain.ActionEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, entry)
	return nil
}

func (p *fakePublisher) PublishMetrics(ctx context.Context, m domain.RoomMetrics) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = append(p.metrics, m)
	return nil
}

func (p *fakePublisher) PublishReset(ctx context.Context, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, roomID)
	return nil
}

func (p *fakePublisher) counts() (actions, resets int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.actions), len(p.resets)
}

// newSyncCoordinator returns a coordinator driven directly from the test
// goroutine, without Run.
func newSyncCoordinator(t *testing.T, opts ...Option) (*Coordinator, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	return New(Config{EventLogCap: 100}, tr, opts...), tr
}

func connect(c *Coordinator, handles ...domain.Handle) {
	for _, h := range handles {
		c.handleEvent(event{typ: evConnect, handle: h})
	}
}

func send(t *testing.T, c *Coordinator, h domain.Handle, kind string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"type": kind, "payload": payload})
	require.NoError(t, err)
	c.handleEvent(event{typ: evFrame, handle: h, data: data})
}

func join(t *testing.T, c *Coordinator, h domain.Handle, username, roomID string) {
	t.Helper()
	send(t, c, h, "join", map[string]string{"username": username, "room_id": roomID})
}

// runResume executes the next closure posted back by an async operation.
func runResume(t *testing.T, c *Coordinator) {
	t.Helper()
	select {
	case fn := <-c.resumes:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("no resume posted")
	}
}
