package service

import (
	"context"

	"go.uber.org/zap"

	"pmv/internal/domain"
)

// SelectPaymentMethod settles the closed journey's fare with the method the
// rider picked: 'W' charges the wallet, 'C', 'P' and 'T' are registered with
// the server.
func (s *JourneyService) SelectPaymentMethod(ctx context.Context, code byte) error {
	method, err := domain.ParsePaymentMethod(code)
	if err != nil {
		return err
	}

	journey := s.s.journey
	if journey == nil {
		return ErrNoJourney
	}
	summary, ok := journey.Summary()
	if !ok {
		return ErrNoFare
	}
	if s.s.phase == PhasePaid {
		return ErrAlreadyPaid
	}

	switch m := method.(type) {
	case domain.WalletMethod:
		if err := s.payWithWallet(journey, summary.Fare); err != nil {
			return err
		}
	case domain.ExternalMethod:
		if err := s.registerExternalPayment(ctx, journey, summary, m); err != nil {
			return err
		}
	}

	if err := journey.AddPaymentMethod(method); err != nil {
		return err
	}
	s.s.phase = PhasePaid

	s.logger.Info("journey paid",
		zap.String("journey_id", journey.ID()),
		zap.String("method", method.Name()),
		zap.Float64("amount", summary.Fare),
	)

	if s.notifier != nil {
		_ = s.notifier.NotifyPaymentCompleted(ctx, journey, summary, method)
	}

	return nil
}

func (s *JourneyService) payWithWallet(journey *domain.Journey, fare float64) error {
	if s.wallet == nil {
		return ErrNoWallet
	}
	payment, err := domain.NewWalletPayment(journey, journey.User(), fare, s.wallet)
	if err != nil {
		return err
	}
	return payment.Process()
}

func (s *JourneyService) registerExternalPayment(ctx context.Context, journey *domain.Journey, summary domain.JourneySummary, m domain.ExternalMethod) error {
	err := s.server.RegisterPayment(ctx, summary.ServiceID, journey.User(), summary.Fare, m.Code())
	if err == nil {
		return nil
	}

	s.logger.Warn("external payment was not registered",
		zap.String("journey_id", journey.ID()),
		zap.String("method", m.Name()),
		zap.Error(err),
	)
	if domain.KindOf(err) == domain.KindConnectivity {
		return err
	}
	return domain.Wrap(domain.KindConnectivity, err, "payment could not be registered")
}
