package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-collab/internal/audit"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

func (c *Coordinator) handleEvent(ev event) {
	switch ev.typ {
	case evConnect:
		c.registry.OnConnect(ev.handle)
	case evJoin:
		if err := c.handleJoin(ev.handle, ev.username, ev.roomID); err != nil {
			c.replyError(ev.handle, err)
		}
	case evFrame:
		c.handleFrame(ev.handle, ev.data)
	case evDisconnect:
		c.handleDisconnect(ev.handle)
	}
}

// handleFrame decodes and dispatches one client frame. Every error is
// answered to the sender only.
func (c *Coordinator) handleFrame(h domain.Handle, data []byte) {
	if !c.registry.Has(h) {
		l := pkglog.L()
		l.Debug().Str(pkglog.FieldHandle, h.String()).Msg("frame from unregistered handle ignored")
		return
	}

	evt, err := c.decode(h, data)
	if err == nil {
		err = c.dispatch(evt)
	}
	if err != nil {
		c.replyError(h, err)
	}
}

func (c *Coordinator) decode(h domain.Handle, data []byte) (*domain.RoutedEvent, error) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		return nil, fmt.Errorf("%w: frame must be {\"type\", \"payload\"}", domain.ErrMalformedEvent)
	}

	kind, ok := domain.ParseEventKind(env.Type)
	if !ok || !kind.Inbound() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, env.Type)
	}

	var fields domain.EventFields
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &fields); err != nil {
			return nil, fmt.Errorf("%w: payload must be an object", domain.ErrMalformedEvent)
		}
	}

	return &domain.RoutedEvent{
		Kind:      kind,
		RoomID:    fields.RoomID,
		Username:  fields.Username,
		Sender:    h,
		Target:    fields.Target,
		Fields:    fields,
		Payload:   env.Payload,
		Timestamp: c.now(),
	}, nil
}

func (c *Coordinator) dispatch(evt *domain.RoutedEvent) error {
	switch evt.Kind {
	case domain.KindJoin:
		return c.handleJoin(evt.Sender, evt.Username, evt.RoomID)
	case domain.KindLeave:
		c.handleLeave(evt.Sender, domain.ReasonLeft)
		return nil
	case domain.KindPing:
		c.reply(evt.Sender, domain.KindPong, "", nil)
		return nil
	case domain.KindFetchUsers:
		return c.handleFetchUsers(evt)
	case domain.KindSyncCode:
		return c.handleSyncCode(evt)
	case domain.KindChat:
		return c.handleChat(evt)
	case domain.KindUserAction:
		return c.handleUserAction(evt)
	case domain.KindSaveCanvas:
		return c.handleSaveCanvas(evt)
	case domain.KindStartTracking:
		if evt.RoomID == "" {
			return missingRoom(evt.Kind)
		}
		c.reply(evt.Sender, domain.KindTrackingStarted, evt.RoomID, c.metricsFor(evt.RoomID))
		return nil
	case domain.KindStopTracking:
		c.reply(evt.Sender, domain.KindTrackingStopped, evt.RoomID, nil)
		return nil
	case domain.KindFetchAnalytics:
		if evt.RoomID == "" {
			return missingRoom(evt.Kind)
		}
		c.reply(evt.Sender, domain.KindAnalyticsSnapshot, evt.RoomID, domain.AnalyticsSnapshotPayload{
			Metrics: c.metricsFor(evt.RoomID),
			Records: c.sink.Records(evt.RoomID),
		})
		return nil
	case domain.KindResetAnalytics:
		if evt.RoomID == "" {
			return missingRoom(evt.Kind)
		}
		username, err := c.seatOf(evt)
		if err != nil {
			return err
		}
		c.resetAnalytics(evt.RoomID, username)
		return nil
	}

	if PolicyFor(evt.Kind) == PolicyRelayExceptSender {
		return c.relay(evt)
	}
	return fmt.Errorf("%w: %s", domain.ErrUnknownEvent, evt.Kind)
}

func (c *Coordinator) handleJoin(h domain.Handle, username, roomID string) error {
	if username == "" || roomID == "" {
		return domain.ErrInvalidJoin
	}
	conn, ok := c.registry.Get(h)
	if !ok {
		return domain.ErrStaleHandle
	}

	if conn.InRoom() && (conn.RoomID != roomID || conn.Username != username) {
		c.handleLeave(h, domain.ReasonSwitchedRoom)
	}

	wasEmpty := c.index.Size(roomID) == 0

	notice, err := c.reconciler.Reconcile(h, username, roomID)
	if err != nil {
		return err
	}

	now := c.now()
	if notice != nil {
		c.deliver(Outbound{
			Kind:      domain.KindDisconnected,
			RoomID:    roomID,
			Sender:    notice.PriorHandle,
			Username:  username,
			Payload:   domain.DisconnectedPayload{Handle: notice.PriorHandle, Username: username, Reason: domain.ReasonReplaced},
			Timestamp: now,
		})
		c.deliver(Outbound{
			Kind:      domain.KindEvicted,
			RoomID:    roomID,
			Target:    notice.PriorHandle,
			Payload:   domain.EvictedPayload{RoomID: roomID, Username: username, ReplacedBy: h},
			Timestamp: now,
		})
		audit.Log(c.ctx, audit.Entry{
			Action:   audit.ActionEvict,
			RoomID:   roomID,
			Username: username,
			Handle:   notice.PriorHandle.String(),
			Detail:   "replaced by " + h.String(),
		}, "session replaced by newer connection")
	}

	c.deliver(Outbound{
		Kind:      domain.KindJoined,
		RoomID:    roomID,
		Sender:    h,
		Username:  username,
		Payload:   domain.JoinedPayload{Handle: h, Username: username, Clients: c.index.Members(roomID)},
		Timestamp: now,
	})
	audit.Log(c.ctx, audit.Entry{Action: audit.ActionJoin, RoomID: roomID, Username: username, Handle: h.String()}, "joined room")

	if wasEmpty {
		c.registerRoom(roomID)
	}
	c.ensureRoom(roomID, username)
	return nil
}

func (c *Coordinator) handleLeave(h domain.Handle, reason string) {
	conn, ok := c.registry.OnLeave(h)
	if !ok {
		return
	}
	c.afterDeparture(conn, reason)
}

func (c *Coordinator) handleDisconnect(h domain.Handle) {
	conn, ok := c.registry.OnDisconnect(h)
	if !ok {
		return
	}
	if conn.InRoom() {
		c.afterDeparture(conn, domain.ReasonDisconnected)
	}
}

// afterDeparture announces that conn left its room and releases the room
// when it became empty.
func (c *Coordinator) afterDeparture(conn domain.Connection, reason string) {
	c.deliver(Outbound{
		Kind:      domain.KindDisconnected,
		RoomID:    conn.RoomID,
		Sender:    conn.Handle,
		Username:  conn.Username,
		Payload:   domain.DisconnectedPayload{Handle: conn.Handle, Username: conn.Username, Reason: reason},
		Timestamp: c.now(),
	})

	action := audit.ActionLeave
	if reason == domain.ReasonDisconnected {
		action = audit.ActionDisconnect
	}
	audit.Log(c.ctx, audit.Entry{Action: action, RoomID: conn.RoomID, Username: conn.Username, Handle: conn.Handle.String(), Detail: reason}, "left room")

	c.touchRoom(conn.RoomID)
	if c.index.Size(conn.RoomID) == 0 {
		c.deregisterRoom(conn.RoomID)
	}
}

func (c *Coordinator) handleFetchUsers(evt *domain.RoutedEvent) error {
	if evt.RoomID == "" {
		return missingRoom(evt.Kind)
	}
	if _, err := c.seatOf(evt); err != nil {
		return err
	}
	c.deliver(Outbound{
		Kind:      domain.KindUsersFetched,
		RoomID:    evt.RoomID,
		Sender:    evt.Sender,
		Payload:   domain.UsersPayload{Users: c.index.UsernamesOf(evt.RoomID)},
		Timestamp: evt.Timestamp,
	})
	return nil
}

// handleSyncCode forwards shared state to one handle in the same room.
// Targets outside the room are dropped silently.
func (c *Coordinator) handleSyncCode(evt *domain.RoutedEvent) error {
	if evt.RoomID == "" {
		return missingRoom(evt.Kind)
	}
	username, err := c.seatOf(evt)
	if err != nil {
		return err
	}
	if evt.Target == "" {
		return fmt.Errorf("%w: target required for %s", domain.ErrMalformedEvent, evt.Kind)
	}
	if !c.index.Contains(evt.RoomID, evt.Target) {
		return nil
	}
	c.deliver(Outbound{
		Kind:      domain.KindSyncCode,
		RoomID:    evt.RoomID,
		Sender:    evt.Sender,
		Username:  username,
		Target:    evt.Target,
		Payload:   evt.Payload,
		Timestamp: evt.Timestamp,
	})
	return nil
}

// relay forwards evt to the rest of the room and mirrors it into the Sink
// when its kind is recorded.
func (c *Coordinator) relay(evt *domain.RoutedEvent) error {
	if evt.RoomID == "" {
		return missingRoom(evt.Kind)
	}
	username, err := c.seatOf(evt)
	if err != nil {
		return err
	}
	return c.forward(evt, username)
}

// forward relays evt on behalf of username, who already holds a seat in
// the room.
func (c *Coordinator) forward(evt *domain.RoutedEvent, username string) error {
	action, recorded := RecordedAction(evt.Kind)

	c.deliver(Outbound{
		Kind:      evt.Kind,
		RoomID:    evt.RoomID,
		Sender:    evt.Sender,
		Username:  username,
		Payload:   evt.Payload,
		Timestamp: evt.Timestamp,
	})

	if recorded {
		details := evt.Fields.Details
		if details == nil {
			details = summarizePayload(evt.Payload)
		}
		if _, err := c.record(evt.RoomID, username, action, details, evt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) handleChat(evt *domain.RoutedEvent) error {
	if evt.RoomID == "" {
		return missingRoom(evt.Kind)
	}
	username, err := c.seatOf(evt)
	if err != nil {
		return err
	}
	if evt.Fields.Message == "" {
		return fmt.Errorf("%w: message required for %s", domain.ErrMalformedEvent, evt.Kind)
	}
	if err := c.forward(evt, username); err != nil {
		return err
	}
	c.saveMessage(&domain.ChatMessage{
		RoomID:    evt.RoomID,
		Username:  username,
		Message:   evt.Fields.Message,
		Timestamp: evt.Timestamp,
	})
	return nil
}

// handleUserAction validates the action type before it reaches the Sink,
// then broadcasts the log line and refreshed metrics to the room.
func (c *Coordinator) handleUserAction(evt *domain.RoutedEvent) error {
	if evt.RoomID == "" {
		return missingRoom(evt.Kind)
	}
	username, err := c.seatOf(evt)
	if err != nil {
		return err
	}
	if evt.Fields.ActionType == "" {
		return fmt.Errorf("%w: action_type required", domain.ErrMalformedEvent)
	}
	action, err := domain.ParseActionType(evt.Fields.ActionType)
	if err != nil {
		return err
	}

	rec, err := c.record(evt.RoomID, username, action, evt.Fields.Details, evt)
	if err != nil {
		return err
	}

	c.deliver(Outbound{
		Kind:      domain.KindActionLog,
		RoomID:    evt.RoomID,
		Sender:    evt.Sender,
		Username:  username,
		Payload:   domain.ActionLogPayload{Entry: rec.Events[len(rec.Events)-1], Record: rec},
		Timestamp: evt.Timestamp,
	})
	c.deliver(Outbound{
		Kind:      domain.KindMetricsUpdate,
		RoomID:    evt.RoomID,
		Payload:   c.metricsFor(evt.RoomID),
		Timestamp: evt.Timestamp,
	})
	return nil
}

func (c *Coordinator) handleSaveCanvas(evt *domain.RoutedEvent) error {
	if evt.RoomID == "" {
		return missingRoom(evt.Kind)
	}
	if _, err := c.seatOf(evt); err != nil {
		return err
	}
	if len(evt.Fields.State) == 0 {
		return fmt.Errorf("%w: state required for %s", domain.ErrMalformedEvent, evt.Kind)
	}
	if c.persistence == nil {
		return errors.New("canvas storage is not configured")
	}

	h, roomID, state := evt.Sender, evt.RoomID, []byte(evt.Fields.State)
	c.async("save_canvas", func(ctx context.Context) func() {
		key, err := c.persistence.SaveCanvas(ctx, roomID, state)
		return func() {
			// The sender may have disconnected while the write was in flight.
			if !c.registry.Has(h) {
				return
			}
			if err != nil {
				l := pkglog.L()
				l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to save canvas")
				c.replyError(h, errors.New("failed to save canvas"))
				return
			}
			c.reply(h, domain.KindCanvasSaved, roomID, domain.CanvasSavedPayload{Key: key})
		}
	})
	return nil
}

// record mirrors an accepted action into the Sink and onto the event bus.
func (c *Coordinator) record(roomID, username string, action domain.ActionType, details map[string]interface{}, evt *domain.RoutedEvent) (*domain.AggregateRecord, error) {
	rec, err := c.sink.Record(roomID, username, action, details, evt.Timestamp)
	if err != nil {
		return nil, err
	}
	c.publishAction(rec.Events[len(rec.Events)-1])
	return rec, nil
}

func (c *Coordinator) resetAnalytics(roomID, requestedBy string) {
	c.sink.Reset(roomID)
	audit.Log(c.ctx, audit.Entry{Action: audit.ActionResetAnalytics, RoomID: roomID, Username: requestedBy}, "analytics reset")

	if c.publisher != nil {
		c.async("publish_reset", func(ctx context.Context) func() {
			if err := c.publisher.PublishReset(ctx, roomID); err != nil {
				l := pkglog.L()
				l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to publish analytics reset")
			}
			return nil
		})
	}

	c.deliver(Outbound{
		Kind:      domain.KindMetricsUpdate,
		RoomID:    roomID,
		Payload:   c.metricsFor(roomID),
		Timestamp: c.now(),
	})
}

// pushMetrics broadcasts metrics to every occupied room.
func (c *Coordinator) pushMetrics() {
	for _, roomID := range c.index.Rooms() {
		m := c.metricsFor(roomID)
		c.deliver(Outbound{Kind: domain.KindMetricsUpdate, RoomID: roomID, Payload: m, Timestamp: m.ComputedAt})
		c.publishMetrics(m)
	}
}

func (c *Coordinator) metricsFor(roomID string) domain.RoomMetrics {
	return c.sink.MetricsFor(roomID, c.index.Size(roomID), c.now())
}

// seatOf returns the username the sender joined evt's room under. A sender
// that holds no seat there, including one replaced by a newer session, gets
// ErrStaleHandle and its event is dropped without a reply.
func (c *Coordinator) seatOf(evt *domain.RoutedEvent) (string, error) {
	conn, ok := c.registry.Get(evt.Sender)
	if !ok || conn.RoomID != evt.RoomID || !c.index.Contains(evt.RoomID, evt.Sender) {
		l := pkglog.L()
		l.Debug().
			Str(pkglog.FieldHandle, evt.Sender.String()).
			Str(pkglog.FieldRoomID, evt.RoomID).
			Str(pkglog.FieldEventKind, evt.Kind.String()).
			Msg("event from non-member dropped")
		return "", fmt.Errorf("%w: not a member of room %s", domain.ErrStaleHandle, evt.RoomID)
	}
	return conn.Username, nil
}

// deliver routes out and hands the frame to the transport.
func (c *Coordinator) deliver(out Outbound) {
	d, err := c.router.Route(out)
	if err != nil {
		l := pkglog.L()
		l.Error().Err(err).Str(pkglog.FieldEventKind, out.Kind.String()).Msg("failed to route event")
		return
	}

	for _, h := range d.Recipients {
		if !c.transport.Send(h, d.Frame) {
			l := pkglog.L()
			l.Debug().Str(pkglog.FieldHandle, h.String()).Str(pkglog.FieldEventKind, out.Kind.String()).Msg("frame not delivered")
		}
	}
}

func (c *Coordinator) reply(h domain.Handle, kind domain.EventKind, roomID string, payload interface{}) {
	c.deliver(Outbound{Kind: kind, RoomID: roomID, Sender: h, Payload: payload, Timestamp: c.now()})
}

// replyError sends a single error frame to h. Stale handles get nothing.
func (c *Coordinator) replyError(h domain.Handle, err error) {
	if errors.Is(err, domain.ErrStaleHandle) {
		return
	}

	code := domain.ErrorCode(err)
	msg := err.Error()
	if code == domain.ErrCodeInternalError {
		l := pkglog.L()
		l.Error().Err(err).Str(pkglog.FieldHandle, h.String()).Msg("event failed")
	}

	frame, mErr := json.Marshal(domain.NewErrorMessage(code, msg))
	if mErr != nil {
		return
	}
	c.transport.Send(h, frame)
}

func missingRoom(kind domain.EventKind) error {
	return fmt.Errorf("%w: room_id required for %s", domain.ErrMalformedEvent, kind)
}

// summarizePayload keeps the small scalar fields of a relayed payload for
// the event log. Bulk content such as code or image data is left out.
func summarizePayload(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var all map[string]interface{}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil
	}

	out := make(map[string]interface{})
	for k, v := range all {
		if k == "room_id" || k == "username" {
			continue
		}
		switch val := v.(type) {
		case bool, float64:
			out[k] = val
		case string:
			if len(val) <= 64 {
				out[k] = val
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
