package coordinator

import "github.com/weiawesome/wes-io-collab/internal/domain"

// EvictionNotice reports that a newer connection took over a session.
type EvictionNotice struct {
	PriorHandle domain.Handle
	NewHandle   domain.Handle
	Username    string
	RoomID      string
}

// Reconciler enforces one live connection per (username, room). Identity is
// the username within the room, not the transport: a second tab or a page
// refresh replaces the older connection.
type Reconciler struct {
	registry *Registry
}

func NewReconciler(registry *Registry) *Reconciler {
	return &Reconciler{registry: registry}
}

// Reconcile joins h and returns a notice when an older handle was displaced.
func (r *Reconciler) Reconcile(h domain.Handle, username, roomID string) (*EvictionNotice, error) {
	prior, err := r.registry.OnJoin(h, username, roomID)
	if err != nil {
		return nil, err
	}
	if prior == "" {
		return nil, nil
	}
	return &EvictionNotice{
		PriorHandle: prior,
		NewHandle:   h,
		Username:    username,
		RoomID:      roomID,
	}, nil
}
