package backend

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pmv/internal/domain"
)

// PaymentGateway charges an external payment method.
type PaymentGateway interface {
	Charge(ctx context.Context, method byte, amount float64) (bool, error)
}

// SimulatedGateway is a PaymentGateway that approves every charge.
type SimulatedGateway struct{}

// NewSimulatedGateway creates a new simulated gateway.
func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{}
}

// Charge always succeeds.
func (g *SimulatedGateway) Charge(ctx context.Context, method byte, amount float64) (bool, error) {
	return true, nil
}

// amountTolerance absorbs float rounding between the fare and the service amount.
const amountTolerance = 0.005

// RegisterPayment charges an external method for a service, once per service.
func (s *Server) RegisterPayment(ctx context.Context, svc domain.ServiceID, user domain.UserAccount, amount float64, method byte) error {
	m, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return err
	}
	if _, ok := m.(domain.ExternalMethod); !ok {
		return domain.Errorf(domain.KindInvalidArguments, "%s payments are not registered with the server", m.Name())
	}
	if svc.IsZero() || user.IsZero() {
		return domain.Errorf(domain.KindInvalidArguments, "payment needs a service and a user")
	}
	if amount <= 0 || math.IsNaN(amount) {
		return domain.Errorf(domain.KindInvalidArguments, "payment amount must be positive")
	}
	if math.Abs(amount-svc.Amount()) > amountTolerance {
		return domain.Errorf(domain.KindInvalidArguments, "payment of %.2f does not match service amount %.2f", amount, svc.Amount())
	}

	idempotencyKey := fmt.Sprintf("payment:%s", svc.ID())

	existing, err := s.repos.Payments.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return storeError(err, "payment lookup failed")
	}
	if existing != nil && existing.Status == domain.PaymentStatusSuccess {
		return nil
	}

	payment := existing
	if payment == nil {
		payment = &domain.PaymentRecord{
			ID:             uuid.New().String(),
			ServiceID:      svc.ID(),
			Username:       user.Username(),
			Amount:         amount,
			Method:         m.Name(),
			Status:         domain.PaymentStatusPending,
			IdempotencyKey: idempotencyKey,
			CreatedAt:      time.Now(),
		}
		if err := s.repos.Payments.Create(ctx, payment); err != nil {
			return storeError(err, "payment could not be stored")
		}
	}

	approved, err := s.gateway.Charge(ctx, method, amount)
	if err != nil {
		_ = s.repos.Payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusFailed)
		return domain.Wrap(domain.KindConnectivity, err, "payment gateway unreachable")
	}
	if !approved {
		if err := s.repos.Payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusFailed); err != nil {
			return storeError(err, "payment status could not be stored")
		}
		return domain.Errorf(domain.KindProcedural, "%s payment of %.2f was declined", m.Name(), amount)
	}

	if err := s.repos.Payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusSuccess); err != nil {
		return storeError(err, "payment status could not be stored")
	}

	s.logger.Info("payment registered",
		zap.String("service_id", svc.ID()),
		zap.String("method", m.Name()),
		zap.Float64("amount", amount),
	)
	return nil
}
