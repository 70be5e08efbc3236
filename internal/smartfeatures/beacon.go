package smartfeatures

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"pmv/internal/domain"
)

// Publisher delivers an encoded message under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// StationBeacon is the message a station broadcasts.
type StationBeacon struct {
	StationID string    `json:"station_id"`
	SentAt    time.Time `json:"sent_at"`
}

// BeaconSignal emulates the unbonded Bluetooth beacon by publishing the
// station id on a fanout exchange that every nearby vehicle listens to.
type BeaconSignal struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewBeaconSignal creates a new BeaconSignal.
func NewBeaconSignal(publisher Publisher, logger *zap.Logger) *BeaconSignal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BeaconSignal{publisher: publisher, logger: logger}
}

// Broadcast publishes station. Any delivery failure is a connectivity failure.
func (b *BeaconSignal) Broadcast(ctx context.Context, station domain.StationID) error {
	if station.IsZero() {
		return domain.Errorf(domain.KindInvalidArguments, "station id cannot be empty")
	}

	body, err := json.Marshal(StationBeacon{StationID: station.String(), SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	if err := b.publisher.Publish(ctx, "station."+station.String(), body); err != nil {
		b.logger.Warn("station beacon failed", zap.String("station_id", station.String()), zap.Error(err))
		return domain.Wrap(domain.KindConnectivity, err, "station beacon unreachable")
	}
	return nil
}
