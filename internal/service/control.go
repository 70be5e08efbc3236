package service

import (
	"context"

	"go.uber.org/zap"

	"pmv/internal/domain"
)

// ControlService drives the vehicle's physical controls.
type ControlService struct {
	controller ArduinoMicroController
	logger     *zap.Logger
}

// NewControlService creates a new ControlService.
func NewControlService(controller ArduinoMicroController, logger *zap.Logger) *ControlService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ControlService{
		controller: controller,
		logger:     logger,
	}
}

// Connect opens the Bluetooth link with the vehicle.
func (s *ControlService) Connect(ctx context.Context) error {
	if err := s.controller.SetBTConnection(ctx); err != nil {
		return s.classify(err, "bluetooth connection failed")
	}
	s.logger.Debug("controller connected")
	return nil
}

// Start releases the vehicle's motor.
func (s *ControlService) Start(ctx context.Context) error {
	if err := s.controller.StartDriving(ctx); err != nil {
		return s.classify(err, "vehicle could not be started")
	}
	return nil
}

// Stop brakes the vehicle and locks the motor.
func (s *ControlService) Stop(ctx context.Context) error {
	if err := s.controller.StopDriving(ctx); err != nil {
		return s.classify(err, "vehicle could not be stopped")
	}
	return nil
}

// Disconnect closes the Bluetooth link. It cannot fail.
func (s *ControlService) Disconnect(ctx context.Context) {
	s.controller.UndoBTConnection(ctx)
	s.logger.Debug("controller disconnected")
}

func (s *ControlService) classify(err error, msg string) error {
	s.logger.Warn(msg, zap.Error(err))
	switch domain.KindOf(err) {
	case domain.KindConnectivity, domain.KindVehicleUnavailable, domain.KindProcedural:
		return err
	default:
		return domain.Wrap(domain.KindProcedural, err, msg)
	}
}
