package coordinator

import (
	"context"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// ensureRoom creates the persisted room on first join. When it was created
// and the room still has members, room-created is broadcast.
func (c *Coordinator) ensureRoom(roomID, createdBy string) {
	if c.persistence == nil {
		return
	}
	c.async("ensure_room", func(ctx context.Context) func() {
		created, err := c.persistence.EnsureRoom(ctx, roomID, createdBy)
		if err != nil {
			l := pkglog.L()
			l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to ensure room")
			return nil
		}
		if !created {
			return nil
		}
		return func() {
			if c.index.Size(roomID) == 0 {
				return
			}
			c.deliver(Outbound{
				Kind:      domain.KindRoomCreated,
				RoomID:    roomID,
				Payload:   domain.RoomCreatedPayload{RoomID: roomID, CreatedBy: createdBy},
				Timestamp: c.now(),
			})
		}
	})
}

func (c *Coordinator) touchRoom(roomID string) {
	if c.persistence == nil {
		return
	}
	c.async("touch_room", func(ctx context.Context) func() {
		if err := c.persistence.TouchRoom(ctx, roomID); err != nil {
			l := pkglog.L()
			l.Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to update room activity")
		}
		return nil
	})
}

func (c *Coordinator) saveMessage(msg *domain.ChatMessage) {
	if c.persistence == nil {
		return
	}
	c.async("save_message", func(ctx context.Context) func() {
		if err := c.persistence.SaveMessage(ctx, msg); err != nil {
			l := pkglog.L()
			l.Error().Err(err).Str(pkglog.FieldRoomID, msg.RoomID).Str(pkglog.FieldUsername, msg.Username).Msg("failed to save chat message")
		}
		return nil
	})
}

func (c *Coordinator) publishAction(entry domain.ActionEntry) {
	if c.publisher == nil {
		return
	}
	c.async("publish_action", func(ctx context.Context) func() {
		if err := c.publisher.PublishAction(ctx, entry); err != nil {
			l := pkglog.L()
			l.Warn().Err(err).Str(pkglog.FieldRoomID, entry.RoomID).Str(pkglog.FieldActionType, string(entry.ActionType)).Msg("failed to publish action")
		}
		return nil
	})
}

func (c *Coordinator) publishMetrics(m domain.RoomMetrics) {
	if c.publisher == nil {
		return
	}
	c.async("publish_metrics", func(ctx context.Context) func() {
		if err := c.publisher.PublishMetrics(ctx, m); err != nil {
			l := pkglog.L()
			l.Warn().Err(err).Str(pkglog.FieldRoomID, m.RoomID).Msg("failed to publish metrics")
		}
		return nil
	})
}

// registerRoom advertises the room when it gains its first local member.
// If the room emptied again before the write finished, the entry is removed.
func (c *Coordinator) registerRoom(roomID string) {
	if c.directory == nil {
		return
	}
	c.async("register_room", func(ctx context.Context) func() {
		if err := c.directory.Register(ctx, roomID); err != nil {
			l := pkglog.L()
			l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to register room")
			return nil
		}
		return func() {
			if c.index.Size(roomID) == 0 {
				c.deregisterRoom(roomID)
			}
		}
	})
}

func (c *Coordinator) deregisterRoom(roomID string) {
	if c.directory == nil {
		return
	}
	c.async("deregister_room", func(ctx context.Context) func() {
		if err := c.directory.Deregister(ctx, roomID); err != nil {
			l := pkglog.L()
			l.Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to deregister room")
		}
		return nil
	})
}
