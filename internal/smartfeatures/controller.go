package smartfeatures

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"pmv/internal/domain"
)

// SimulatedController stands in for the vehicle's Arduino board.
type SimulatedController struct {
	mu        sync.Mutex
	connected bool
	driving   bool
	logger    *zap.Logger
}

// NewSimulatedController creates a new SimulatedController.
func NewSimulatedController(logger *zap.Logger) *SimulatedController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedController{logger: logger}
}

func (c *SimulatedController) SetBTConnection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindConnectivity, err, "bluetooth pairing interrupted")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.logger.Debug("bluetooth connected")
	return nil
}

func (c *SimulatedController) StartDriving(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return domain.Errorf(domain.KindConnectivity, "no bluetooth connection with the vehicle")
	}
	if c.driving {
		return domain.Errorf(domain.KindProcedural, "vehicle is already driving")
	}
	c.driving = true
	return nil
}

func (c *SimulatedController) StopDriving(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return domain.Errorf(domain.KindConnectivity, "no bluetooth connection with the vehicle")
	}
	if !c.driving {
		return domain.Errorf(domain.KindProcedural, "vehicle is not driving")
	}
	c.driving = false
	return nil
}

func (c *SimulatedController) UndoBTConnection(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.driving = false
	c.logger.Debug("bluetooth disconnected")
}

// Driving reports whether the motor is released.
func (c *SimulatedController) Driving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driving
}
