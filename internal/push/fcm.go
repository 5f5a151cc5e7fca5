// Package push wraps the external push gateway behind a small port. The
// rest of the system treats delivery as an opaque
// send(token, title, body) -> id | error capability.
package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Gateway delivers one notification to one device token.
type Gateway interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) (string, error)
}

// FCM is the Firebase Cloud Messaging gateway.
type FCM struct {
	client *messaging.Client
}

func NewFCM(ctx context.Context, credentialsFile string) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FCM{client: client}, nil
}

// Send returns the gateway message id. The error is returned unwrapped so
// callers can classify it; the caller bounds the context.
func (f *FCM) Send(ctx context.Context, token, title, body string, data map[string]string) (string, error) {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	return f.client.Send(ctx, msg)
}

// Terminal reports whether a send failure is permanent for this message:
// retrying the same token and payload cannot succeed. Everything else
// (unavailable, internal, timeout) is transient and worth a redelivery.
func Terminal(err error) bool {
	return messaging.IsUnregistered(err) || errorutils.IsInvalidArgument(err)
}
