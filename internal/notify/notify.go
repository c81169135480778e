// Package notify carries user notifications from the worker processors to the
// chat gateway over Redis pub/sub. The two services share no in-process state,
// so the channel is the only delivery path.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "notify:user:"

// Notification is a rendered, user-facing notification
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publisher publishes notifications to a per-user channel
type Publisher struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewPublisher(rdb *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{rdb: rdb, logger: logger}
}

// Publish sends the notification to the user's channel. Delivery is
// best-effort: a notification published while the user has no live
// connections is dropped.
func (p *Publisher) Publish(ctx context.Context, n *Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.rdb.Publish(ctx, channelPrefix+n.UserID, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	p.logger.Debug("Notification published",
		slog.String("user_id", n.UserID),
		slog.String("type", n.Type),
	)
	return nil
}

// Subscriber receives notifications for all users
type Subscriber struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewSubscriber(rdb *redis.Client, logger *slog.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, logger: logger}
}

// Run subscribes to all user channels and invokes handle for each
// notification until the context is canceled.
func (s *Subscriber) Run(ctx context.Context, handle func(userID string, n *Notification)) error {
	pubsub := s.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	s.logger.Info("Notification subscriber started")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Notification subscriber stopped")
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("notification subscription closed")
			}

			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				s.logger.Error("Discarding malformed notification",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()),
				)
				continue
			}

			userID := strings.TrimPrefix(msg.Channel, channelPrefix)
			handle(userID, &n)
		}
	}
}
