package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pmv/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationJourneyPaired    NotificationType = "JOURNEY_PAIRED"
	NotificationDrivingStarted   NotificationType = "JOURNEY_STARTED"
	NotificationDrivingStopped   NotificationType = "JOURNEY_STOPPED"
	NotificationJourneyEnded     NotificationType = "JOURNEY_ENDED"
	NotificationPaymentCompleted NotificationType = "PAYMENT_COMPLETED"
	NotificationReceiptReady     NotificationType = "RECEIPT_READY"
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	RecipientID string           `json:"recipient_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        map[string]any   `json:"data,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Publisher delivers an encoded event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// NotificationService handles notification delivery.
type NotificationService struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewNotificationService creates a new NotificationService. With a nil
// publisher notifications are only logged.
func NewNotificationService(publisher Publisher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		publisher: publisher,
		logger:    logger,
	}
}

// NotifyPaired tells the rider the vehicle is reserved for them.
func (s *NotificationService) NotifyPaired(ctx context.Context, journey *domain.Journey, vehicle domain.VehicleID) error {
	origin := journey.Origin()
	return s.send(ctx, Notification{
		Type:        NotificationJourneyPaired,
		RecipientID: journey.User().Username(),
		Title:       "Vehicle Paired",
		Message:     fmt.Sprintf("Vehicle %s is ready for you", vehicle),
		Data: map[string]any{
			"journey_id": journey.ID(),
			"vehicle_id": vehicle.String(),
			"origin_lat": origin.Latitude(),
			"origin_lng": origin.Longitude(),
		},
	})
}

// NotifyDrivingStarted tells the rider the vehicle is under way.
func (s *NotificationService) NotifyDrivingStarted(ctx context.Context, journey *domain.Journey, vehicle domain.VehicleID) error {
	return s.send(ctx, Notification{
		Type:        NotificationDrivingStarted,
		RecipientID: journey.User().Username(),
		Title:       "Journey Started",
		Message:     "Your journey has started. Ride safe!",
		Data: map[string]any{
			"journey_id": journey.ID(),
			"vehicle_id": vehicle.String(),
		},
	})
}

// NotifyDrivingStopped tells the rider the vehicle has stopped.
func (s *NotificationService) NotifyDrivingStopped(ctx context.Context, journey *domain.Journey, vehicle domain.VehicleID) error {
	return s.send(ctx, Notification{
		Type:        NotificationDrivingStopped,
		RecipientID: journey.User().Username(),
		Title:       "Vehicle Stopped",
		Message:     "Unpair the vehicle to finish your journey.",
		Data: map[string]any{
			"journey_id": journey.ID(),
			"vehicle_id": vehicle.String(),
		},
	})
}

// NotifyJourneyEnded tells the rider the journey is closed and what it costs.
func (s *NotificationService) NotifyJourneyEnded(ctx context.Context, journey *domain.Journey, vehicle domain.VehicleID, summary domain.JourneySummary) error {
	return s.send(ctx, Notification{
		Type:        NotificationJourneyEnded,
		RecipientID: journey.User().Username(),
		Title:       "Journey Completed",
		Message:     fmt.Sprintf("Your journey has ended. Total fare: %.2f", summary.Fare),
		Data: map[string]any{
			"journey_id":   journey.ID(),
			"vehicle_id":   vehicle.String(),
			"service_id":   summary.ServiceID.ID(),
			"duration_min": summary.Metrics.DurationMinutes,
			"distance_km":  summary.Metrics.DistanceKm,
			"fare":         summary.Fare,
			"ended_at":     summary.EndedAt,
		},
	})
}

// NotifyPaymentCompleted tells the rider the fare has been settled.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, journey *domain.Journey, summary domain.JourneySummary, method domain.PaymentMethod) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentCompleted,
		RecipientID: journey.User().Username(),
		Title:       "Payment Successful",
		Message:     fmt.Sprintf("Payment of %.2f by %s was successful", summary.Fare, method.Name()),
		Data: map[string]any{
			"journey_id": journey.ID(),
			"service_id": summary.ServiceID.ID(),
			"amount":     summary.Fare,
			"method":     method.Name(),
		},
	})
}

// NotifyReceiptReady notifies the rider that the receipt is ready.
func (s *NotificationService) NotifyReceiptReady(ctx context.Context, receipt *domain.Receipt) error {
	return s.send(ctx, Notification{
		Type:        NotificationReceiptReady,
		RecipientID: receipt.Username,
		Title:       "Receipt Ready",
		Message:     fmt.Sprintf("Your receipt for %.2f is ready", receipt.Fare),
		Data: map[string]any{
			"receipt_id": receipt.ID,
			"journey_id": receipt.JourneyID,
			"fare":       receipt.Fare,
		},
	})
}

// RoutingKey is the key a notification of type t is published under.
func RoutingKey(t NotificationType) string {
	return "journey." + strings.ToLower(string(t))
}

func (s *NotificationService) send(ctx context.Context, n Notification) error {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now()

	s.logger.Info("notification",
		zap.String("type", string(n.Type)),
		zap.String("recipient", n.RecipientID),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	)

	if s.publisher == nil {
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, RoutingKey(n.Type), body); err != nil {
		s.logger.Warn("notification not published", zap.String("type", string(n.Type)), zap.Error(err))
		return err
	}
	return nil
}
