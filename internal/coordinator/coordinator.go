package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// ErrStopped is returned by queries once Run has returned.
var ErrStopped = errors.New("coordinator stopped")

// Transport delivers encoded frames to live connections. Send reports false
// when the handle is gone or its buffer is full.
type Transport interface {
	Send(handle domain.Handle, frame []byte) bool
}

// Persistence stores rooms, chat history and canvas snapshots.
type Persistence interface {
	EnsureRoom(ctx context.Context, roomID, createdBy string) (created bool, err error)
	TouchRoom(ctx context.Context, roomID string) error
	SaveMessage(ctx context.Context, msg *domain.ChatMessage) error
	SaveCanvas(ctx context.Context, roomID string, state []byte) (key string, err error)
}

// Publisher mirrors analytics onto the event bus for durable storage.
type Publisher interface {
	PublishAction(ctx context.Context, entry domain.ActionEntry) error
	PublishMetrics(ctx context.Context, metrics domain.RoomMetrics) error
	PublishReset(ctx context.Context, roomID string) error
}

// Directory advertises which rooms this instance currently hosts.
type Directory interface {
	Register(ctx context.Context, roomID string) error
	Deregister(ctx context.Context, roomID string) error
}

// Config tunes the coordinator.
type Config struct {
	EventLogCap     int
	MetricsWindow   time.Duration
	MetricsInterval time.Duration // 0 disables periodic metrics-update pushes
	PersistTimeout  time.Duration
	QueueSize       int
}

// Option configures optional collaborators.
type Option func(*Coordinator)

func WithPersistence(p Persistence) Option { return func(c *Coordinator) { c.persistence = p } }
func WithPublisher(p Publisher) Option     { return func(c *Coordinator) { c.publisher = p } }
func WithDirectory(d Directory) Option     { return func(c *Coordinator) { c.directory = d } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

type eventType uint8

const (
	evConnect eventType = iota
	evJoin
	evFrame
	evDisconnect
)

// event is a transport callback queued for the loop. Connect, frames and
// disconnect share one queue so each handle's events stay in order.
type event struct {
	typ      eventType
	handle   domain.Handle
	data     []byte
	username string
	roomID   string
}

// Coordinator owns the Registry, RoomIndex and Sink. Run is the only
// goroutine that touches them; everything else talks to it over channels.
type Coordinator struct {
	cfg         Config
	transport   Transport
	persistence Persistence
	publisher   Publisher
	directory   Directory
	now         func() time.Time

	index      *RoomIndex
	registry   *Registry
	reconciler *Reconciler
	router     *Router
	sink       *Sink

	events  chan event
	queries chan func()
	resumes chan func()
	done    chan struct{}
	ctx     context.Context
}

// New builds a coordinator. Call Run to start processing.
func New(cfg Config, transport Transport, opts ...Option) *Coordinator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}

	c := &Coordinator{
		cfg:       cfg,
		transport: transport,
		now:       time.Now,
		events:    make(chan event, cfg.QueueSize),
		queries:   make(chan func()),
		resumes:   make(chan func(), 256),
		done:      make(chan struct{}),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.index = NewRoomIndex()
	c.registry = NewRegistry(c.index, c.now)
	c.reconciler = NewReconciler(c.registry)
	c.router = NewRouter(c.index)
	c.sink = NewSink(cfg.EventLogCap, cfg.MetricsWindow)
	return c
}

// Run processes events until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	c.ctx = ctx
	defer close(c.done)

	var tick <-chan time.Time
	if c.cfg.MetricsInterval > 0 {
		ticker := time.NewTicker(c.cfg.MetricsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	l := pkglog.L()
	l.Info().Dur("metrics_interval", c.cfg.MetricsInterval).Int("queue_size", c.cfg.QueueSize).Msg("coordinator started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Int("connections", c.registry.Len()).Msg("coordinator stopped")
			return
		case ev := <-c.events:
			c.handleEvent(ev)
		case fn := <-c.queries:
			fn()
		case resume := <-c.resumes:
			resume()
		case <-tick:
			c.pushMetrics()
		}
	}
}

// Done is closed when Run returns.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Connect registers a new transport connection.
func (c *Coordinator) Connect(h domain.Handle) {
	c.enqueue(event{typ: evConnect, handle: h})
}

// ConnectAndJoin registers h and immediately joins it to roomID.
func (c *Coordinator) ConnectAndJoin(h domain.Handle, username, roomID string) {
	c.enqueue(event{typ: evConnect, handle: h})
	c.enqueue(event{typ: evJoin, handle: h, username: username, roomID: roomID})
}

// Inbound queues one raw client frame.
func (c *Coordinator) Inbound(h domain.Handle, data []byte) {
	c.enqueue(event{typ: evFrame, handle: h, data: data})
}

// Disconnect tears down h. Repeated calls are harmless.
func (c *Coordinator) Disconnect(h domain.Handle) {
	c.enqueue(event{typ: evDisconnect, handle: h})
}

func (c *Coordinator) enqueue(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// MembersOf returns the live members of a room.
func (c *Coordinator) MembersOf(ctx context.Context, roomID string) ([]domain.Member, error) {
	var members []domain.Member
	if err := c.query(ctx, func() { members = c.index.Members(roomID) }); err != nil {
		return nil, err
	}
	return members, nil
}

// UsernamesOf returns the usernames present in a room.
func (c *Coordinator) UsernamesOf(ctx context.Context, roomID string) ([]string, error) {
	var names []string
	if err := c.query(ctx, func() { names = c.index.UsernamesOf(roomID) }); err != nil {
		return nil, err
	}
	return names, nil
}

// MetricsFor returns the room's current metrics.
func (c *Coordinator) MetricsFor(ctx context.Context, roomID string) (domain.RoomMetrics, error) {
	var m domain.RoomMetrics
	if err := c.query(ctx, func() { m = c.metricsFor(roomID) }); err != nil {
		return domain.RoomMetrics{}, err
	}
	return m, nil
}

// Records returns the room's aggregate records with their event logs.
func (c *Coordinator) Records(ctx context.Context, roomID string) ([]domain.AggregateRecord, error) {
	var recs []domain.AggregateRecord
	if err := c.query(ctx, func() { recs = c.sink.Records(roomID) }); err != nil {
		return nil, err
	}
	return recs, nil
}

// ResetAnalytics clears the room's records, here and in durable storage.
func (c *Coordinator) ResetAnalytics(ctx context.Context, roomID string) error {
	return c.query(ctx, func() { c.resetAnalytics(roomID, "") })
}

// query runs fn on the loop and waits for it to finish.
func (c *Coordinator) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case c.queries <- func() { defer close(finished); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// async runs fn off the loop. A non-nil closure returned by fn is executed
// back on the loop, where it must re-check any state it depends on.
func (c *Coordinator) async(op string, fn func(ctx context.Context) func()) {
	base := c.ctx
	timeout := c.cfg.PersistTimeout
	go func() {
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()

		resume := fn(ctx)
		if resume == nil {
			return
		}
		select {
		case c.resumes <- resume:
		case <-c.done:
			l := pkglog.L()
			l.Debug().Str("op", op).Msg("coordinator stopped, resume dropped")
		}
	}()
}
