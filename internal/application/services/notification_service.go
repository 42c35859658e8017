package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/notifications"
)

// NotificationService forwards batch outcomes to a configured webhook
// and records every delivery attempt. Deliveries are best-effort; a
// failed webhook never affects the analysis that triggered it.
type NotificationService struct {
	db       *sqlx.DB
	sender   *notifications.WebhookSender
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *sqlx.DB, sender *notifications.WebhookSender, eventBus providers.EventBus) *NotificationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationService{
		db:       db,
		sender:   sender,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// WebhookPayload is the JSON summary posted per batch outcome
type WebhookPayload struct {
	Event          string    `json:"event"`
	UserID         string    `json:"user_id"`
	BatchTimestamp string    `json:"batch_timestamp,omitempty"`
	Mode           string    `json:"mode,omitempty"`
	Total          int       `json:"total"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	Timestamp      time.Time `json:"timestamp"`
}

// Start begins listening for analysis events and delivering webhooks
func (n *NotificationService) Start() error {
	eventChan, err := n.eventBus.Subscribe(n.ctx, providers.EventChannelAnalysisUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to analysis updates: %w", err)
	}

	go n.processEvents(eventChan)
	log.Printf("Notification service started, delivering to %s", n.sender.URL())
	return nil
}

// Stop stops the notification service
func (n *NotificationService) Stop() {
	n.cancel()
	log.Println("Notification service stopped")
}

func (n *NotificationService) processEvents(eventChan <-chan *entities.AnalysisEvent) {
	for {
		select {
		case <-n.ctx.Done():
			return
		case event := <-eventChan:
			if event == nil {
				continue
			}
			n.handleEvent(event)
		}
	}
}

// handleEvent delivers terminal batch outcomes. Intermediate events and
// per-verdict events stay internal.
func (n *NotificationService) handleEvent(event *entities.AnalysisEvent) {
	switch event.EventType {
	case entities.AnalysisEventBatchCompleted, entities.AnalysisEventBatchFailed:
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	if err := n.Notify(ctx, event); err != nil {
		log.Printf("Warning: webhook delivery failed for event %s: %v", event.ID, err)
	}
}

// Notify posts one event summary to the webhook, recording the attempt
// before sending and its outcome after.
func (n *NotificationService) Notify(ctx context.Context, event *entities.AnalysisEvent) error {
	notification := &entities.AnalysisNotification{
		ID:        uuid.New().String(),
		UserID:    event.UserID,
		EventType: event.EventType,
		Recipient: n.sender.URL(),
		Status:    entities.NotificationStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if event.BatchTimestamp != "" {
		ts := event.BatchTimestamp
		notification.BatchTimestamp = &ts
	}

	if err := n.createNotification(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification record: %w", err)
	}

	payload := WebhookPayload{
		Event:          string(event.EventType),
		UserID:         event.UserID,
		BatchTimestamp: event.BatchTimestamp,
		Mode:           string(event.Mode),
		Total:          event.Total,
		Succeeded:      event.Succeeded,
		Failed:         event.Failed,
		Timestamp:      event.Timestamp,
	}

	statusCode, sendErr := n.sender.Send(ctx, payload)

	now := time.Now()
	notification.UpdatedAt = now
	if statusCode != 0 {
		notification.StatusCode = &statusCode
	}
	if sendErr != nil {
		errMsg := sendErr.Error()
		notification.Status = entities.NotificationStatusFailed
		notification.FailedAt = &now
		notification.ErrorMessage = &errMsg
	} else {
		notification.Status = entities.NotificationStatusSent
		notification.SentAt = &now
	}

	if err := n.updateNotification(ctx, notification); err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}

	return sendErr
}

// Database operations
func (n *NotificationService) createNotification(ctx context.Context, notification *entities.AnalysisNotification) error {
	query := `
		INSERT INTO analysis_notifications
		(id, user_id, event_type, batch_timestamp, recipient, status, status_code,
		 sent_at, failed_at, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := n.db.ExecContext(ctx, query,
		notification.ID, notification.UserID, notification.EventType, notification.BatchTimestamp,
		notification.Recipient, notification.Status, notification.StatusCode, notification.SentAt,
		notification.FailedAt, notification.ErrorMessage, notification.CreatedAt, notification.UpdatedAt,
	)
	return err
}

func (n *NotificationService) updateNotification(ctx context.Context, notification *entities.AnalysisNotification) error {
	query := `
		UPDATE analysis_notifications
		SET status = $1, status_code = $2, sent_at = $3, failed_at = $4,
		    error_message = $5, updated_at = $6
		WHERE id = $7
	`
	_, err := n.db.ExecContext(ctx, query,
		notification.Status, notification.StatusCode, notification.SentAt, notification.FailedAt,
		notification.ErrorMessage, notification.UpdatedAt, notification.ID,
	)
	return err
}
