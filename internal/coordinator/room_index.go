package coordinator

import (
	"sort"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

// RoomIndex maps each non-empty room to its member handles and usernames.
// Only the Registry mutates it.
type RoomIndex struct {
	rooms map[string]map[domain.Handle]string
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[domain.Handle]string)}
}

func (x *RoomIndex) add(roomID string, h domain.Handle, username string) {
	members, ok := x.rooms[roomID]
	if !ok {
		members = make(map[domain.Handle]string)
		x.rooms[roomID] = members
	}
	members[h] = username
}

func (x *RoomIndex) remove(roomID string, h domain.Handle) {
	members, ok := x.rooms[roomID]
	if !ok {
		return
	}
	delete(members, h)
	if len(members) == 0 {
		delete(x.rooms, roomID)
	}
}

// MembersOf returns the room's handles in a stable order.
func (x *RoomIndex) MembersOf(roomID string) []domain.Handle {
	members := x.rooms[roomID]
	handles := make([]domain.Handle, 0, len(members))
	for h := range members {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// UsernamesOf returns the room's usernames, sorted.
func (x *RoomIndex) UsernamesOf(roomID string) []string {
	members := x.rooms[roomID]
	names := make([]string, 0, len(members))
	for _, name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Members returns presence entries sorted by username.
func (x *RoomIndex) Members(roomID string) []domain.Member {
	members := x.rooms[roomID]
	out := make([]domain.Member, 0, len(members))
	for h, name := range members {
		out = append(out, domain.Member{Handle: h, Username: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}

func (x *RoomIndex) Size(roomID string) int {
	return len(x.rooms[roomID])
}

func (x *RoomIndex) Contains(roomID string, h domain.Handle) bool {
	_, ok := x.rooms[roomID][h]
	return ok
}

// Rooms returns every non-empty room, sorted.
func (x *RoomIndex) Rooms() []string {
	ids := make([]string, 0, len(x.rooms))
	for id := range x.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
