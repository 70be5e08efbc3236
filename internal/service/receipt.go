package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pmv/internal/domain"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	tariff              Tariff
	notificationService *NotificationService

	mu     sync.Mutex
	issued issuedReceipt
}

// issuedReceipt is the identity of the receipt last issued, reused while
// the same journey is asked for again.
type issuedReceipt struct {
	journeyID string
	id        string
	createdAt time.Time
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(tariff Tariff, notificationService *NotificationService) *ReceiptService {
	return &ReceiptService{
		tariff:              tariff,
		notificationService: notificationService,
	}
}

// GenerateReceipt generates a receipt for a finished journey.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, journey *domain.Journey, vehicle domain.VehicleID) (*domain.Receipt, error) {
	if journey == nil {
		return nil, ErrNoJourney
	}
	summary, ok := journey.Summary()
	if !ok {
		return nil, ErrNoFare
	}

	s.mu.Lock()
	first := s.issued.journeyID != journey.ID()
	if first {
		s.issued = issuedReceipt{journeyID: journey.ID(), id: uuid.New().String(), createdAt: time.Now()}
	}
	issued := s.issued
	s.mu.Unlock()

	origin := journey.Origin()
	receipt := &domain.Receipt{
		ID:              issued.id,
		JourneyID:       journey.ID(),
		ServiceID:       summary.ServiceID.ID(),
		VehicleID:       vehicle.String(),
		Username:        journey.User().Username(),
		OriginStation:   journey.OriginStation().String(),
		OriginLat:       origin.Latitude(),
		OriginLng:       origin.Longitude(),
		EndLat:          summary.EndPoint.Latitude(),
		EndLng:          summary.EndPoint.Longitude(),
		EndStation:      summary.EndStation.String(),
		DurationMinutes: summary.Metrics.DurationMinutes,
		DistanceKm:      summary.Metrics.DistanceKm,
		AvgSpeedKmh:     summary.Metrics.AvgSpeedKmh,
		DistanceCharge:  summary.Metrics.DistanceKm * s.tariff.RatePerKm,
		TimeCharge:      float64(summary.Metrics.DurationMinutes) * s.tariff.RatePerMinute,
		Fare:            summary.Fare,
		StartedAt:       journey.StartedAt(),
		EndedAt:         summary.EndedAt,
		CreatedAt:       issued.createdAt,
	}
	if methods := journey.PaymentMethods(); len(methods) > 0 {
		receipt.PaymentMethod = methods[len(methods)-1].Name()
	}

	if first && s.notificationService != nil {
		_ = s.notificationService.NotifyReceiptReady(ctx, receipt)
	}

	return receipt, nil
}

// FormatReceipt formats the receipt as plain text.
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder

	line := "=====================================\n"
	rule := "-------------------------------------\n"

	b.WriteString(line)
	b.WriteString("        JOURNEY RECEIPT\n")
	b.WriteString(line)
	fmt.Fprintf(&b, "Receipt ID: %s\n", receipt.ID)
	fmt.Fprintf(&b, "Journey ID: %s\n", receipt.JourneyID)
	fmt.Fprintf(&b, "Service ID: %s\n", receipt.ServiceID)
	fmt.Fprintf(&b, "Date: %s\n\n", receipt.CreatedAt.Format("Jan 02, 2006 3:04 PM"))

	b.WriteString("JOURNEY DETAILS\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "From:      (%s, %s)\n", formatCoord(receipt.OriginLat), formatCoord(receipt.OriginLng))
	fmt.Fprintf(&b, "To:        (%s, %s)\n", formatCoord(receipt.EndLat), formatCoord(receipt.EndLng))
	fmt.Fprintf(&b, "Vehicle:   %s\n", receipt.VehicleID)
	if receipt.OriginStation != "" {
		fmt.Fprintf(&b, "Start at:  %s\n", receipt.OriginStation)
	}
	if receipt.EndStation != "" {
		fmt.Fprintf(&b, "End at:    %s\n", receipt.EndStation)
	}
	fmt.Fprintf(&b, "Duration:  %d min\n", receipt.DurationMinutes)
	fmt.Fprintf(&b, "Distance:  %s km\n", formatFloat(receipt.DistanceKm))
	fmt.Fprintf(&b, "Avg speed: %s km/h\n\n", formatFloat(receipt.AvgSpeedKmh))

	b.WriteString("FARE BREAKDOWN\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "Distance:  %s\n", formatFloat(receipt.DistanceCharge))
	fmt.Fprintf(&b, "Time:      %s\n", formatFloat(receipt.TimeCharge))
	b.WriteString(rule)
	fmt.Fprintf(&b, "TOTAL:     %s\n\n", formatFloat(receipt.Fare))

	b.WriteString("PAYMENT\n")
	b.WriteString(rule)
	method := receipt.PaymentMethod
	if method == "" {
		method = "PENDING"
	}
	fmt.Fprintf(&b, "Method: %s\n", method)
	b.WriteString(line)

	return b.String()
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatCoord(f float64) string {
	return fmt.Sprintf("%.5f", f)
}
