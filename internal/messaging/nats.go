package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to the recipient ID to form the notification subject
const SubjectPrefix = "notifications."

// Publisher sends a payload on a subject. Satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, payload []byte) error
}

// Notification is the payload delivered to a post owner
type Notification struct {
	CreatedAt   time.Time `json:"createdAt"`
	RecipientID string    `json:"recipientId"`
	ActorID     string    `json:"actorId"`
	PostID      string    `json:"postId"`
	Kind        string    `json:"kind"`
}

// NATSNotifier publishes owner notifications on notifications.<recipientId>
type NATSNotifier struct {
	pub Publisher
	now func() time.Time
}

// NewNATSNotifier creates a notifier over any publisher
func NewNATSNotifier(pub Publisher) *NATSNotifier {
	return &NATSNotifier{
		pub: pub,
		now: time.Now,
	}
}

// NotifyLiked publishes a "like" notification for the post owner
func (n *NATSNotifier) NotifyLiked(ctx context.Context, ownerID, actorID, postID string) error {
	if ownerID == "" {
		return errors.New("notification recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(Notification{
		RecipientID: ownerID,
		ActorID:     actorID,
		PostID:      postID,
		Kind:        "like",
		CreatedAt:   n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if err := n.pub.Publish(SubjectPrefix+ownerID, payload); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Connect opens a NATS connection
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("fanvault-appview"))
}

// ConnectWithRetry keeps dialing until the server answers or timeout elapses
func ConnectWithRetry(url string, timeout time.Duration) (*nats.Conn, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := Connect(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("connect nats timeout after %s: %w", timeout, lastErr)
}

// Close drains and closes the connection
func Close(conn *nats.Conn) {
	if conn == nil {
		return
	}
	_ = conn.Drain()
	conn.Close()
}
