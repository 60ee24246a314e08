// README: Firebase Admin SDK initialisation, ID token verifier and FCM booking notifications.
package infra

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"rental/internal/modules/booking"
	"rental/internal/types"
)

// FirebaseToken holds the verified token data used by downstream middleware.
type FirebaseToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw Firebase ID token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

// NewFirebaseApp initialises the Admin SDK. If credentialsFile is empty,
// application-default credentials / GOOGLE_APPLICATION_CREDENTIALS are used.
func NewFirebaseApp(ctx context.Context, projectID, credentialsFile string) (*firebase.App, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	return app, nil
}

type firebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (TokenVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
}

// MessageSender is the part of the FCM client the notifier needs.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier publishes booking status changes to the renter's FCM topic
// ("user_<uid>"); the mobile app subscribes to its own topic after sign-in.
type PushNotifier struct {
	sender MessageSender
}

func NewPushNotifier(ctx context.Context, app *firebase.App) (*PushNotifier, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase messaging client: %w", err)
	}
	return &PushNotifier{sender: client}, nil
}

func NewPushNotifierWithSender(sender MessageSender) *PushNotifier {
	return &PushNotifier{sender: sender}
}

func UserTopic(userID types.ID) string {
	return "user_" + string(userID)
}

func (n *PushNotifier) BookingChanged(ctx context.Context, b *booking.Booking, ev booking.Event) error {
	title, body := bookingMessage(b, ev)
	msg := &messaging.Message{
		Topic: UserTopic(b.UserID),
		Data: map[string]string{
			"type":                "booking_status",
			"booking_id":          string(b.ID),
			"confirmation_number": b.ConfirmationNumber,
			"vehicle_id":          string(b.VehicleID),
			"from_status":         string(ev.FromStatus),
			"to_status":           string(ev.ToStatus),
			"start_date":          types.FormatDate(b.StartDate),
			"end_date":            types.FormatDate(b.EndDate),
		},
		Notification: &messaging.Notification{Title: title, Body: body},
		Android:      &messaging.AndroidConfig{Priority: "high"},
	}

	messageID, err := n.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM for booking %s: %w", string(b.ID), err)
	}
	log.Printf("FCM sent for booking %s (%s), message_id=%s", string(b.ID), ev.ToStatus, messageID)
	return nil
}

func bookingMessage(b *booking.Booking, ev booking.Event) (string, string) {
	dates := types.FormatDate(b.StartDate) + " to " + types.FormatDate(b.EndDate)
	switch ev.ToStatus {
	case booking.StatusPending:
		return "Booking received", fmt.Sprintf("%s for %s is awaiting payment", b.ConfirmationNumber, dates)
	case booking.StatusConfirmed:
		return "Booking confirmed", fmt.Sprintf("%s for %s is confirmed", b.ConfirmationNumber, dates)
	case booking.StatusCancelled:
		body := fmt.Sprintf("%s for %s was cancelled", b.ConfirmationNumber, dates)
		if c := b.Cancellation; c != nil {
			body += fmt.Sprintf(", refund %s", c.Refund)
		}
		return "Booking cancelled", body
	case booking.StatusCompleted:
		return "Trip completed", fmt.Sprintf("Thanks for renting with us (%s)", b.ConfirmationNumber)
	default:
		return "Booking updated", fmt.Sprintf("%s is now %s", b.ConfirmationNumber, ev.ToStatus)
	}
}
