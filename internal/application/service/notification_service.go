package service

import (
	"context"
	"fmt"

	"github.com/garyjia/lease-agent/internal/application/dispatcher"
	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/event"
	domainwf "github.com/garyjia/lease-agent/internal/domain/workflow"
)

// NotificationService tells requestors about reviews and final outcomes
type NotificationService interface {
	// Register subscribes the service to the events it reports on
	Register(d dispatcher.Dispatcher)

	NotifyReviewRequired(ctx context.Context, evt *event.Event) error
	NotifyCompleted(ctx context.Context, evt *event.Event) error
	NotifyFailed(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier: notifier,
		logger:   logger,
	}
}

// Register subscribes the service to review and terminal events
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeReviewRequired, "notify-review-required", s.NotifyReviewRequired)
	d.SubscribeNamed(event.TypeRequestCompleted, "notify-completed", s.NotifyCompleted)
	d.SubscribeNamed(event.TypeRequestFailed, "notify-failed", s.NotifyFailed)
}

// NotifyReviewRequired tells the requestor a step is waiting for review
func (s *notificationServiceImpl) NotifyReviewRequired(ctx context.Context, evt *event.Event) error {
	step := evt.GetPayloadInt(event.KeyStepNumber)
	stepName := fmt.Sprintf("Step %d", step)
	if tmpl, err := domainwf.Lookup(step); err == nil {
		stepName = tmpl.Name
	}

	body := fmt.Sprintf(
		"Lease request %s for %s needs review.\n\nStep: %s\nDocument: %s\nConfidence: %.0f%%",
		evt.RequestID,
		evt.GetPayloadString(event.KeyTenantName),
		stepName,
		evt.GetPayloadString(event.KeyDocumentID),
		evt.GetPayloadFloat(event.KeyConfidenceScore)*100,
	)
	return s.send(ctx, evt, "Lease request requires review", body)
}

// NotifyCompleted tells the requestor the lease is active
func (s *notificationServiceImpl) NotifyCompleted(ctx context.Context, evt *event.Event) error {
	body := fmt.Sprintf(
		"Lease request %s for %s has completed all workflow steps.",
		evt.RequestID,
		evt.GetPayloadString(event.KeyTenantName),
	)
	return s.send(ctx, evt, "Lease request completed", body)
}

// NotifyFailed tells the requestor processing stopped
func (s *notificationServiceImpl) NotifyFailed(ctx context.Context, evt *event.Event) error {
	body := fmt.Sprintf(
		"Lease request %s for %s failed at step %d.",
		evt.RequestID,
		evt.GetPayloadString(event.KeyTenantName),
		evt.GetPayloadInt(event.KeyStepNumber),
	)
	return s.send(ctx, evt, "Lease request failed", body)
}

func (s *notificationServiceImpl) send(ctx context.Context, evt *event.Event, title, body string) error {
	recipient := evt.GetPayloadString(event.KeyRequestorEmail)
	if recipient == "" {
		s.logger.Info("No requestor to notify", "request_id", evt.RequestID, "event_type", evt.Type)
		return nil
	}

	err := s.notifier.Notify(ctx, port.Notification{
		RequestID: evt.RequestID,
		Recipient: recipient,
		Title:     title,
		Body:      body,
	})
	if err != nil {
		s.logger.Error("Failed to send notification", "request_id", evt.RequestID, "recipient", recipient, "error", err)
		return fmt.Errorf("send notification: %w", err)
	}

	s.logger.Info("Notification sent", "request_id", evt.RequestID, "recipient", recipient, "event_type", evt.Type)
	return nil
}
