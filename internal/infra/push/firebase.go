// Package push delivers fired reminders as Firebase Cloud Messaging notifications.
package push

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"petcare_reminders/internal/domain/notification"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const androidChannelID = "pet_reminders"

// NewFirebaseApp initializes the Firebase app shared by Firestore and messaging.
// An empty credentials path falls back to application default credentials.
func NewFirebaseApp(ctx context.Context, credentialsPath, projectID string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	return app, nil
}

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMDispatcher sends one push per registered device token of the owner.
type FCMDispatcher struct {
	client messagingClient
	tokens notification.DeviceTokens
	logger *logrus.Entry
}

func NewFCMDispatcher(ctx context.Context, app *firebase.App, tokens notification.DeviceTokens, logger *logrus.Entry) (*FCMDispatcher, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}
	return &FCMDispatcher{client: client, tokens: tokens, logger: logger}, nil
}

func (d *FCMDispatcher) Deliver(ctx context.Context, n notification.Delivery) error {
	log := d.logger.WithFields(logrus.Fields{"reminder_id": n.ReminderID, "owner_id": n.OwnerID})

	tokens, err := d.tokens.DeviceTokens(ctx, n.OwnerID)
	if err != nil {
		return fmt.Errorf("error resolving device tokens: %w", err)
	}
	if len(tokens) == 0 {
		log.Warn("No device tokens registered; notification dropped")
		return nil
	}

	var errs []error
	for _, token := range tokens {
		id, err := d.client.Send(ctx, buildMessage(token, n))
		if err != nil {
			if messaging.IsUnregistered(err) {
				log.WithError(err).Warn("Device token is no longer registered")
			}
			errs = append(errs, fmt.Errorf("error sending push: %w", err))
			continue
		}
		log.WithField("message_id", id).Debug("Push sent")
	}
	return errors.Join(errs...)
}

func buildMessage(token string, n notification.Delivery) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: "Pet care reminder",
			Body:  n.Title,
		},
		Data: map[string]string{
			"type":           "reminder",
			"reminderId":     n.ReminderID,
			"notificationId": string(n.Handle),
			"firedAt":        strconv.FormatInt(n.FiredAt.Unix(), 10),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:    androidChannelID,
				DefaultSound: true,
			},
		},
	}
}
