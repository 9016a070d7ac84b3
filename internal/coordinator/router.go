package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

// Policy decides which connections receive an outbound event.
type Policy uint8

const (
	// PolicyNone marks inbound kinds the coordinator consumes itself.
	PolicyNone Policy = iota
	PolicyBroadcastRoom
	PolicyRelayExceptSender
	PolicyTargeted
	PolicyReplySender
)

func (p Policy) String() string {
	switch p {
	case PolicyBroadcastRoom:
		return "broadcast-to-room"
	case PolicyRelayExceptSender:
		return "relay-to-room-except-sender"
	case PolicyTargeted:
		return "targeted-by-handle"
	case PolicyReplySender:
		return "reply-to-sender"
	default:
		return "none"
	}
}

type route struct {
	policy Policy
	// action is recorded in the Sink for every accepted event of this kind.
	action domain.ActionType
}

// routes binds every EventKind to exactly one policy.
var routes = map[domain.EventKind]route{
	domain.KindJoin:       {policy: PolicyNone},
	domain.KindLeave:      {policy: PolicyNone},
	domain.KindFetchUsers: {policy: PolicyNone},

	domain.KindJoined:       {policy: PolicyBroadcastRoom},
	domain.KindDisconnected: {policy: PolicyBroadcastRoom},
	domain.KindRoomCreated:  {policy: PolicyBroadcastRoom},
	domain.KindUsersFetched: {policy: PolicyBroadcastRoom},
	domain.KindEvicted:      {policy: PolicyTargeted},

	domain.KindCodeChange:  {policy: PolicyRelayExceptSender, action: domain.ActionCodeChange},
	domain.KindSyncCode:    {policy: PolicyTargeted},
	domain.KindTypingStart: {policy: PolicyRelayExceptSender},
	domain.KindTypingEnd:   {policy: PolicyRelayExceptSender},
	domain.KindFileCreated: {policy: PolicyRelayExceptSender, action: domain.ActionFileOperation},
	domain.KindFileDeleted: {policy: PolicyRelayExceptSender, action: domain.ActionFileOperation},
	domain.KindFileRenamed: {policy: PolicyRelayExceptSender, action: domain.ActionFileOperation},

	domain.KindDrawingUpdate: {policy: PolicyRelayExceptSender, action: domain.ActionDrawingUpdate},
	domain.KindShapeAdd:      {policy: PolicyRelayExceptSender, action: domain.ActionCanvasEdit},
	domain.KindTextAdd:       {policy: PolicyRelayExceptSender, action: domain.ActionCanvasEdit},
	domain.KindImageAdd:      {policy: PolicyRelayExceptSender, action: domain.ActionCanvasEdit},
	domain.KindElementMove:   {policy: PolicyRelayExceptSender, action: domain.ActionCanvasEdit},
	domain.KindCanvasReset:   {policy: PolicyRelayExceptSender, action: domain.ActionCanvasEdit},
	domain.KindSaveCanvas:    {policy: PolicyNone},
	domain.KindCanvasSaved:   {policy: PolicyReplySender},

	domain.KindCompilerStatus:    {policy: PolicyRelayExceptSender, action: domain.ActionCompilerStatus},
	domain.KindCompilerInput:     {policy: PolicyRelayExceptSender},
	domain.KindCompilerOutput:    {policy: PolicyRelayExceptSender},
	domain.KindCompilerTestCases: {policy: PolicyRelayExceptSender},

	domain.KindChat: {policy: PolicyRelayExceptSender, action: domain.ActionChatMessage},

	domain.KindUserAction:        {policy: PolicyNone},
	domain.KindActionLog:         {policy: PolicyBroadcastRoom},
	domain.KindMetricsUpdate:     {policy: PolicyBroadcastRoom},
	domain.KindStartTracking:     {policy: PolicyNone},
	domain.KindTrackingStarted:   {policy: PolicyReplySender},
	domain.KindStopTracking:      {policy: PolicyNone},
	domain.KindTrackingStopped:   {policy: PolicyReplySender},
	domain.KindFetchAnalytics:    {policy: PolicyNone},
	domain.KindAnalyticsSnapshot: {policy: PolicyReplySender},
	domain.KindResetAnalytics:    {policy: PolicyNone},

	domain.KindPing:  {policy: PolicyNone},
	domain.KindPong:  {policy: PolicyReplySender},
	domain.KindError: {policy: PolicyReplySender},
}

// PolicyFor returns the fan-out policy bound to kind.
func PolicyFor(kind domain.EventKind) Policy {
	return routes[kind].policy
}

// RecordedAction returns the action type mirrored into the Sink for kind.
func RecordedAction(kind domain.EventKind) (domain.ActionType, bool) {
	r := routes[kind]
	return r.action, r.action != ""
}

// Outbound is an event about to be fanned out.
type Outbound struct {
	Kind      domain.EventKind
	RoomID    string
	Sender    domain.Handle
	Username  string
	Target    domain.Handle
	Payload   interface{}
	Timestamp time.Time
}

// Delivery is the resolved recipient set and the encoded frame.
type Delivery struct {
	Kind       domain.EventKind
	Recipients []domain.Handle
	Frame      []byte
}

// Router resolves recipients against the RoomIndex. It never mutates state.
type Router struct {
	index *RoomIndex
}

func NewRouter(index *RoomIndex) *Router {
	return &Router{index: index}
}

// Route applies the kind's policy. A room without members yields an empty
// Delivery and no error.
func (r *Router) Route(out Outbound) (Delivery, error) {
	d := Delivery{Kind: out.Kind}

	switch policy := PolicyFor(out.Kind); policy {
	case PolicyBroadcastRoom:
		if out.RoomID == "" {
			return d, fmt.Errorf("%w: room_id required for %s", domain.ErrMalformedEvent, out.Kind)
		}
		d.Recipients = r.index.MembersOf(out.RoomID)

	case PolicyRelayExceptSender:
		if out.RoomID == "" {
			return d, fmt.Errorf("%w: room_id required for %s", domain.ErrMalformedEvent, out.Kind)
		}
		members := r.index.MembersOf(out.RoomID)
		d.Recipients = make([]domain.Handle, 0, len(members))
		for _, h := range members {
			if h != out.Sender {
				d.Recipients = append(d.Recipients, h)
			}
		}

	case PolicyTargeted:
		if out.Target == "" {
			return d, fmt.Errorf("%w: target required for %s", domain.ErrMalformedEvent, out.Kind)
		}
		d.Recipients = []domain.Handle{out.Target}

	case PolicyReplySender:
		if out.Sender == "" {
			return d, fmt.Errorf("%w: sender required for %s", domain.ErrMalformedEvent, out.Kind)
		}
		d.Recipients = []domain.Handle{out.Sender}

	default:
		return d, fmt.Errorf("%s has no outbound policy (%s)", out.Kind, policy)
	}

	if len(d.Recipients) == 0 {
		return d, nil
	}

	frame, err := json.Marshal(domain.OutboundMessage{
		Type:      out.Kind.String(),
		RoomID:    out.RoomID,
		From:      out.Sender,
		Username:  out.Username,
		Payload:   out.Payload,
		Timestamp: out.Timestamp.UnixMilli(),
	})
	if err != nil {
		return d, fmt.Errorf("failed to encode %s: %w", out.Kind, err)
	}
	d.Frame = frame
	return d, nil
}
