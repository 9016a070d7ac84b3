package registry

import (
	"context"
	"errors"
)

// ErrRoomNotHosted is returned by Lookup when no instance advertises the room.
var ErrRoomNotHosted = errors.New("room is not hosted by any instance")

// Registry maps rooms to the address of the instance holding their members.
type Registry interface {
	Register(ctx context.Context, roomID string) error
	Deregister(ctx context.Context, roomID string) error
	Lookup(ctx context.Context, roomID string) (string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
