package coordinator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

const (
	DefaultEventLogCap   = 100
	DefaultMetricsWindow = time.Minute
)

type roomAggregate struct {
	users         map[string]*domain.AggregateRecord
	recent        []time.Time
	hourly        [24]int
	collaboration int
}

// Sink accumulates per-user counters for every room. Records are only ever
// removed by Reset.
type Sink struct {
	rooms  map[string]*roomAggregate
	logCap int
	window time.Duration
}

func NewSink(logCap int, window time.Duration) *Sink {
	if logCap <= 0 {
		logCap = DefaultEventLogCap
	}
	if window <= 0 {
		window = DefaultMetricsWindow
	}
	return &Sink{
		rooms:  make(map[string]*roomAggregate),
		logCap: logCap,
		window: window,
	}
}

// Record applies one accepted action and returns a snapshot of the user's record.
func (s *Sink) Record(roomID, username string, action domain.ActionType, details map[string]interface{}, at time.Time) (*domain.AggregateRecord, error) {
	if roomID == "" || username == "" {
		return nil, fmt.Errorf("%w: room_id and username required", domain.ErrMalformedEvent)
	}
	if _, err := domain.ParseActionType(string(action)); err != nil {
		return nil, err
	}

	room, ok := s.rooms[roomID]
	if !ok {
		room = &roomAggregate{users: make(map[string]*domain.AggregateRecord)}
		s.rooms[roomID] = room
	}
	rec, ok := room.users[username]
	if !ok {
		rec = &domain.AggregateRecord{RoomID: roomID, Username: username, FirstActiveAt: at}
		room.users[username] = rec
	}

	rec.TotalActions++
	if at.After(rec.LastActiveAt) {
		rec.LastActiveAt = at
	}
	if at.Before(rec.FirstActiveAt) {
		rec.FirstActiveAt = at
	}

	switch action {
	case domain.ActionCodeChange:
		if n, ok := detailInt(details, "lines_changed", "linesChanged"); ok && n > 0 {
			rec.LinesOfCode += n
		}
	case domain.ActionCompilerStatus:
		if detailBool(details, "is_running", "isRunning") {
			rec.Compilations++
		}
	}

	rec.Events = append(rec.Events, domain.ActionEntry{
		RoomID:     roomID,
		Username:   username,
		ActionType: action,
		Details:    details,
		Timestamp:  at,
	})
	if over := len(rec.Events) - s.logCap; over > 0 {
		rec.Events = append(rec.Events[:0:0], rec.Events[over:]...)
	}

	if action.Collaborative() {
		room.collaboration++
	}
	room.hourly[at.UTC().Hour()]++
	room.recent = append(pruneBefore(room.recent, at.Add(-s.window)), at)

	return rec.Clone(), nil
}

// MetricsFor derives the room's metrics at now. activeUsers comes from the RoomIndex.
func (s *Sink) MetricsFor(roomID string, activeUsers int, now time.Time) domain.RoomMetrics {
	m := domain.RoomMetrics{
		RoomID:           roomID,
		ActiveUsers:      activeUsers,
		PeakActivityTime: domain.PeakActivityNone,
		ComputedAt:       now,
	}

	room, ok := s.rooms[roomID]
	if !ok {
		return m
	}

	from := now.Add(-s.window)
	inWindow := 0
	for _, t := range room.recent {
		if t.After(from) && !t.After(now) {
			inWindow++
		}
	}
	m.ActionsPerMinute = round2(float64(inWindow) / s.window.Minutes())
	m.CollaborationEvents = room.collaboration

	peak, peakCount := -1, 0
	for hour, n := range room.hourly {
		if n > peakCount {
			peak, peakCount = hour, n
		}
	}
	if peak >= 0 {
		m.PeakActivityTime = fmt.Sprintf("%02d:00", peak)
	}

	var sessionMinutes float64
	for _, rec := range room.users {
		m.TotalActions += rec.TotalActions
		m.LinesOfCode += rec.LinesOfCode
		m.Compilations += rec.Compilations
		sessionMinutes += rec.SessionMinutes()
	}
	if len(room.users) > 0 {
		m.AvgSessionTime = round2(sessionMinutes / float64(len(room.users)))
	}

	return m
}

// Records returns copies of the room's records sorted by username.
func (s *Sink) Records(roomID string) []domain.AggregateRecord {
	room, ok := s.rooms[roomID]
	if !ok {
		return []domain.AggregateRecord{}
	}
	out := make([]domain.AggregateRecord, 0, len(room.users))
	for _, rec := range room.users {
		out = append(out, *rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Reset drops every record for the room and reports whether any existed.
func (s *Sink) Reset(roomID string) bool {
	_, ok := s.rooms[roomID]
	delete(s.rooms, roomID)
	return ok
}

// Rooms lists rooms holding records, sorted.
func (s *Sink) Rooms() []string {
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// pruneBefore drops timestamps at or before cutoff, in place.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func detailInt(details map[string]interface{}, keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := details[k].(type) {
		case float64:
			return int(v), true
		case int:
			return v, true
		case int64:
			return int(v), true
		}
	}
	return 0, false
}

func detailBool(details map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if v, ok := details[k].(bool); ok {
			return v
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
