package coordinator

import (
	"time"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

// Registry owns every live Connection and keeps the RoomIndex in step with it.
// It performs no I/O and is not safe for concurrent use: the Coordinator loop
// is its only caller.
type Registry struct {
	conns    map[domain.Handle]*domain.Connection
	sessions map[domain.SessionKey]domain.Handle
	index    *RoomIndex
	now      func() time.Time
}

func NewRegistry(index *RoomIndex, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		conns:    make(map[domain.Handle]*domain.Connection),
		sessions: make(map[domain.SessionKey]domain.Handle),
		index:    index,
		now:      now,
	}
}

// OnConnect registers h with no room. Registering a known handle is a no-op.
func (r *Registry) OnConnect(h domain.Handle) {
	if _, ok := r.conns[h]; ok {
		return
	}
	r.conns[h] = &domain.Connection{Handle: h, ConnectedAt: r.now()}
}

// OnJoin binds h to (username, roomID) and returns the handle that held the
// same session before, already detached from the room. It returns "" when
// there was no other holder.
func (r *Registry) OnJoin(h domain.Handle, username, roomID string) (domain.Handle, error) {
	if username == "" || roomID == "" {
		return "", domain.ErrInvalidJoin
	}
	conn, ok := r.conns[h]
	if !ok {
		return "", domain.ErrStaleHandle
	}

	if conn.InRoom() {
		if conn.RoomID == roomID && conn.Username == username {
			return "", nil
		}
		r.detach(conn)
	}

	key := domain.SessionKey{Username: username, RoomID: roomID}
	var prior domain.Handle
	if holder, ok := r.sessions[key]; ok && holder != h {
		if held, ok := r.conns[holder]; ok {
			r.detach(held)
		}
		delete(r.sessions, key)
		prior = holder
	}

	conn.Username = username
	conn.RoomID = roomID
	conn.JoinedAt = r.now()
	r.sessions[key] = h
	r.index.add(roomID, h, username)

	return prior, nil
}

// OnLeave clears h's room association and returns the connection as it was
// before leaving. ok is false when h is unknown or not in a room.
func (r *Registry) OnLeave(h domain.Handle) (domain.Connection, bool) {
	conn, ok := r.conns[h]
	if !ok || !conn.InRoom() {
		return domain.Connection{}, false
	}
	before := *conn
	r.detach(conn)
	return before, true
}

// OnDisconnect forgets h entirely and returns its last state. Unknown handles
// are ignored, so calling it twice is harmless.
func (r *Registry) OnDisconnect(h domain.Handle) (domain.Connection, bool) {
	conn, ok := r.conns[h]
	if !ok {
		return domain.Connection{}, false
	}
	before := *conn
	if conn.InRoom() {
		r.detach(conn)
	}
	delete(r.conns, h)
	return before, true
}

// Get returns a copy of the connection registered under h.
func (r *Registry) Get(h domain.Handle) (domain.Connection, bool) {
	conn, ok := r.conns[h]
	if !ok {
		return domain.Connection{}, false
	}
	return *conn, true
}

func (r *Registry) Has(h domain.Handle) bool {
	_, ok := r.conns[h]
	return ok
}

// Holder returns the handle currently bound to (username, roomID).
func (r *Registry) Holder(username, roomID string) (domain.Handle, bool) {
	h, ok := r.sessions[domain.SessionKey{Username: username, RoomID: roomID}]
	return h, ok
}

func (r *Registry) Len() int {
	return len(r.conns)
}

// detach removes conn from its room. The username is kept for attribution.
func (r *Registry) detach(conn *domain.Connection) {
	key := conn.Session()
	if r.sessions[key] == conn.Handle {
		delete(r.sessions, key)
	}
	r.index.remove(conn.RoomID, conn.Handle)
	conn.RoomID = ""
	conn.JoinedAt = time.Time{}
}
