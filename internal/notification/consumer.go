package notification

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/giftree/giftree/internal/push"
	"github.com/giftree/giftree/pkg/messaging"
	"github.com/giftree/giftree/pkg/observability"
)

// Consumer processes deliveries drained from the notification queue. Per
// message it validates the payload and pushes through the gateway, then
// settles the delivery:
//
//   - malformed JSON, unknown type code: dead-letter, never retried
//   - missing token/title/body: acknowledged and dropped with a warning
//   - terminal gateway failure: dead-letter
//   - transient gateway failure: one broker redelivery, then dead-letter
//
// Persistence happened on the producer side before the event was published,
// so a duplicate delivery costs at most a duplicate push (accepted
// at-least-once semantics), never a duplicate row.
type Consumer struct {
	gateway push.Gateway
	logger  *observability.Logger
	timeout time.Duration
}

func NewConsumer(gateway push.Gateway, logger *observability.Logger, timeout time.Duration) *Consumer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Consumer{gateway: gateway, logger: logger, timeout: timeout}
}

// Handle settles one delivery. redelivered bounds the retry count: a message
// that already failed once goes to the dead-letter queue on the next failure.
func (c *Consumer) Handle(body []byte, redelivered bool) messaging.Action {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		c.logger.Error("malformed notification event, dead-lettering", "error", err)
		PushAttempts.WithLabelValues("dead_letter").Inc()
		return messaging.DeadLetter
	}

	if ev.FCMToken == "" || ev.Title == "" || ev.Body == "" {
		c.logger.Warn("incomplete notification event, dropping",
			"user_id", ev.UserID, "type", ev.TypeCode)
		PushAttempts.WithLabelValues("dropped").Inc()
		return messaging.Ack
	}

	if !ev.TypeCode.Valid() {
		c.logger.Error("unknown notification type, dead-lettering", "type", ev.TypeCode)
		PushAttempts.WithLabelValues("dead_letter").Inc()
		return messaging.DeadLetter
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	timer := prometheus.NewTimer(PushLatency)
	messageID, err := c.gateway.Send(ctx, ev.FCMToken, ev.Title, ev.Body, eventData(&ev))
	timer.ObserveDuration()

	if err != nil {
		if push.Terminal(err) {
			c.logger.Error("permanent push failure, dead-lettering",
				"user_id", ev.UserID, "type", ev.TypeCode, "error", err)
			PushAttempts.WithLabelValues("dead_letter").Inc()
			return messaging.DeadLetter
		}
		if redelivered {
			c.logger.Error("push retry exhausted, dead-lettering",
				"user_id", ev.UserID, "type", ev.TypeCode, "error", err)
			PushAttempts.WithLabelValues("dead_letter").Inc()
			return messaging.DeadLetter
		}
		c.logger.Warn("transient push failure, requeueing",
			"user_id", ev.UserID, "type", ev.TypeCode, "error", err)
		PushAttempts.WithLabelValues("retry").Inc()
		return messaging.Retry
	}

	PushAttempts.WithLabelValues("sent").Inc()
	c.logger.Info("push delivered",
		"message_id", messageID, "user_id", ev.UserID, "type", ev.TypeCode)
	return messaging.Ack
}

// eventData builds the FCM data fields the mobile clients use for deep links.
func eventData(ev *Event) map[string]string {
	data := map[string]string{
		"notificationTypeCode": string(ev.TypeCode),
	}
	if ev.ReferenceEntityType != "" {
		data["referenceEntityType"] = ev.ReferenceEntityType
	}
	if ev.ReferenceEntityID != 0 {
		data["referenceEntityId"] = strconv.Itoa(ev.ReferenceEntityID)
	}
	if ev.UserID != 0 {
		data["userId"] = strconv.Itoa(ev.UserID)
	}
	return data
}
