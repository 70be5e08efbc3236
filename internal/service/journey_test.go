package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmv/internal/domain"
	"pmv/internal/service"
)

type journeyFixture struct {
	svc     *service.JourneyService
	server  *MockServer
	decoder *MockQRDecoder
	signal  *MockBTSignal
	pub     *MockPublisher
	clock   *testClock
	vehicle *domain.Vehicle
	wallet  *domain.Wallet
}

func newJourneyFixture(t *testing.T) *journeyFixture {
	t.Helper()

	id, err := domain.NewVehicleID("V12345")
	require.NoError(t, err)
	loc, err := domain.NewGeographicPoint(41.3851, 2.1734)
	require.NoError(t, err)
	vehicle, err := domain.NewVehicle(id, domain.PMVStateAvailable, &loc)
	require.NoError(t, err)
	rider, err := domain.NewUserAccount("rider_01")
	require.NoError(t, err)
	wallet, err := domain.NewWallet(100)
	require.NoError(t, err)

	server := NewMockServer()
	server.AddVehicle(vehicle)

	f := &journeyFixture{
		server:  server,
		decoder: &MockQRDecoder{VehicleID: id},
		signal:  &MockBTSignal{},
		pub:     &MockPublisher{},
		clock:   newTestClock(),
		vehicle: vehicle,
		wallet:  wallet,
	}
	f.svc = service.NewJourneyService(service.JourneyDeps{
		Server:   f.server,
		Decoder:  f.decoder,
		Signal:   f.signal,
		Tariff:   service.DefaultTariff(),
		Rider:    rider,
		Wallet:   wallet,
		Notifier: service.NewNotificationService(f.pub, nil),
		Clock:    f.clock.Now,
	})
	return f
}

// drive scans, drives for 30 minutes to a point about 2.07 km north and stops.
func (f *journeyFixture) drive(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.svc.Scan(ctx, []byte("PMV:V12345")))
	require.NoError(t, f.svc.StartDriving(ctx))

	end, err := domain.NewGeographicPoint(41.4037, 2.1734)
	require.NoError(t, err)
	require.NoError(t, f.svc.RelocateVehicle(ctx, &end, nil))

	f.clock.Advance(30 * time.Minute)
	require.NoError(t, f.svc.StopDriving(ctx))
}

func assertKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, domain.KindOf(err), "unexpected error: %v", err)
}

// ──────────────────────────────────────────────
// 1. HAPPY PATH
// ──────────────────────────────────────────────

func TestJourney_ScanStartStopScenario(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Scan(ctx, []byte("PMV:V12345")))
	assert.Equal(t, domain.PMVStateNotAvailable, f.vehicle.State())
	assert.Equal(t, service.PhaseScanned, f.svc.Snapshot().Phase)

	require.NoError(t, f.svc.StartDriving(ctx))
	assert.Equal(t, domain.PMVStateUnderWay, f.vehicle.State())
	assert.True(t, f.svc.Snapshot().InProgress)

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.svc.StopDriving(ctx))
	assert.Equal(t, domain.PMVStateAvailable, f.vehicle.State())

	view := f.svc.Snapshot()
	assert.False(t, view.InProgress)
	assert.Equal(t, service.PhaseStopped, view.Phase)
	assert.Equal(t, "V12345", view.VehicleID)
	assert.Equal(t, int32(1), f.server.RegisterPairingCallCount)
}

func TestJourney_JourneyStartsAtVehicleLocationAndNow(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)

	require.NoError(t, f.svc.Scan(context.Background(), nil))

	journey, vehicle, ok := f.svc.Journey()
	require.True(t, ok)
	assert.Equal(t, "V12345", vehicle.String())
	assert.Equal(t, 41.3851, journey.Origin().Latitude())
	assert.Equal(t, 2.1734, journey.Origin().Longitude())
	assert.Equal(t, f.clock.Now(), journey.StartedAt())
	assert.Equal(t, "rider_01", journey.User().Username())
	assert.False(t, journey.InProgress())
}

func TestJourney_UnPairComputesMetricsAndFare(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.drive(t)

	summary, err := f.svc.UnPairVehicle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, summary.Metrics.DurationMinutes)
	assert.InDelta(t, 2.07, summary.Metrics.DistanceKm, 0.01)
	assert.InDelta(t, summary.Metrics.DistanceKm*2, summary.Metrics.AvgSpeedKmh, 1e-9)
	assert.InDelta(t, summary.Metrics.DistanceKm*0.5+3.0, summary.Fare, 1e-9)
	assert.Equal(t, summary.Fare, summary.ServiceID.Amount())

	assert.Equal(t, domain.PMVStateAvailable, f.vehicle.State())
	assert.Equal(t, service.PhaseUnpaired, f.svc.Snapshot().Phase)

	req := f.server.LastStopPairing
	assert.Equal(t, int32(1), f.server.StopPairingCallCount)
	assert.Equal(t, "V12345", req.VehicleID.String())
	assert.Equal(t, 30, req.DurationMinutes)
	assert.Equal(t, summary.Fare, req.Fare)
	assert.Equal(t, f.clock.Now(), req.EndedAt)
}

func TestJourney_UnPairWithoutStopDriving(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Scan(ctx, nil))
	require.NoError(t, f.svc.StartDriving(ctx))
	end, _ := domain.NewGeographicPoint(41.39, 2.18)
	require.NoError(t, f.svc.RelocateVehicle(ctx, &end, nil))
	f.clock.Advance(5 * time.Minute)

	_, err := f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PMVStateAvailable, f.vehicle.State())
	assert.False(t, f.svc.Snapshot().InProgress)
}

func TestJourney_FullJourneyPaidByWallet(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.drive(t)
	ctx := context.Background()

	summary, err := f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.SelectPaymentMethod(ctx, 'W'))
	assert.InDelta(t, 100-summary.Fare, f.wallet.Balance(), 1e-9)

	view := f.svc.Snapshot()
	assert.Equal(t, service.PhasePaid, view.Phase)
	require.Len(t, view.Payments, 1)
	assert.Equal(t, "WALLET", view.Payments[0].Name())

	assert.Equal(t, []string{
		"journey.journey_paired",
		"journey.journey_started",
		"journey.journey_stopped",
		"journey.journey_ended",
		"journey.payment_completed",
	}, f.pub.PublishedKeys())
}

func TestJourney_ExternalPaymentRegistersWithServer(t *testing.T) {
	t.Parallel()

	for _, code := range []byte{'C', 'P', 'T'} {
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			f := newJourneyFixture(t)
			f.drive(t)
			ctx := context.Background()

			summary, err := f.svc.UnPairVehicle(ctx)
			require.NoError(t, err)

			require.NoError(t, f.svc.SelectPaymentMethod(ctx, code))
			assert.Equal(t, int32(1), f.server.RegisterPaymentCallCount)
			assert.Equal(t, code, f.server.LastPaymentMethod)
			assert.Equal(t, summary.Fare, f.server.LastPaymentAmount)
			assert.Equal(t, 100.0, f.wallet.Balance())
		})
	}
}

// ──────────────────────────────────────────────
// 2. SEQUENCING
// ──────────────────────────────────────────────

func TestJourney_DoubleScanFailsVehicleUnavailable(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Scan(ctx, nil))
	err := f.svc.Scan(ctx, nil)
	assert.True(t, errors.Is(err, domain.ErrVehicleUnavailable), "got %v", err)
	assert.Equal(t, int32(1), f.server.RegisterPairingCallCount)
}

func TestJourney_ScanWhileJourneyOpenOnOtherVehicle(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Scan(ctx, nil))

	otherID, _ := domain.NewVehicleID("V99999")
	loc, _ := domain.NewGeographicPoint(41.0, 2.0)
	other, _ := domain.NewVehicle(otherID, domain.PMVStateAvailable, &loc)
	f.server.AddVehicle(other)
	f.decoder.VehicleID = otherID

	err := f.svc.Scan(ctx, nil)
	assert.ErrorIs(t, err, service.ErrJourneyOpen)
	assert.Equal(t, domain.PMVStateAvailable, other.State())
}

func TestJourney_StartDrivingBeforeScan(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)

	err := f.svc.StartDriving(context.Background())
	assertKind(t, err, domain.KindProcedural)
	assert.Equal(t, domain.PMVStateAvailable, f.vehicle.State())
}

func TestJourney_StartDrivingTwice(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Scan(ctx, nil))
	require.NoError(t, f.svc.StartDriving(ctx))
	assert.ErrorIs(t, f.svc.StartDriving(ctx), service.ErrVehicleNotReady)
}

func TestJourney_StopDrivingRequiresUnderWay(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	assertKind(t, f.svc.StopDriving(ctx), domain.KindProcedural)

	require.NoError(t, f.svc.Scan(ctx, nil))
	assert.ErrorIs(t, f.svc.StopDriving(ctx), service.ErrVehicleNotUnderWay)
}

func TestJourney_UnPairWithoutJourney(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)

	_, err := f.svc.UnPairVehicle(context.Background())
	assertKind(t, err, domain.KindProcedural)
	assert.Equal(t, int32(0), f.server.StopPairingCallCount)
}

func TestJourney_UnPairTwice(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.drive(t)
	ctx := context.Background()

	_, err := f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)

	_, err = f.svc.UnPairVehicle(ctx)
	assertKind(t, err, domain.KindProcedural)
	assert.Equal(t, int32(1), f.server.StopPairingCallCount)
}

func TestJourney_UnPairUnderAMinute(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Scan(ctx, nil))
	f.clock.Advance(45 * time.Second)

	_, err := f.svc.UnPairVehicle(ctx)
	assert.ErrorIs(t, err, service.ErrInvalidDuration)
	assert.Equal(t, service.PhaseScanned, f.svc.Snapshot().Phase)
}

func TestJourney_UnPairWithoutMovingCannotBePriced(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Scan(ctx, nil))
	f.clock.Advance(10 * time.Minute)

	_, err := f.svc.UnPairVehicle(ctx)
	assertKind(t, err, domain.KindProcedural)
	assert.Equal(t, int32(0), f.server.StopPairingCallCount)
}

func TestJourney_ScanAfterPaymentStartsNewJourney(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.drive(t)
	ctx := context.Background()

	_, err := f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)
	require.NoError(t, f.svc.SelectPaymentMethod(ctx, 'C'))
	first := f.svc.Snapshot().JourneyID

	require.NoError(t, f.svc.Scan(ctx, nil))
	view := f.svc.Snapshot()
	assert.Equal(t, service.PhaseScanned, view.Phase)
	assert.NotEqual(t, first, view.JourneyID)
}

// ──────────────────────────────────────────────
// 3. COLLABORATOR FAILURES
// ──────────────────────────────────────────────

func TestJourney_ScanDecoderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want domain.Kind
	}{
		{"corrupted image", domain.Errorf(domain.KindCorruptedInput, "unreadable"), domain.KindCorruptedInput},
		{"malformed id", domain.Errorf(domain.KindInvalidArguments, "bad id"), domain.KindInvalidArguments},
		{"unexpected", errors.New("camera unplugged"), domain.KindProcedural},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newJourneyFixture(t)
			f.decoder.Error = tt.err

			err := f.svc.Scan(context.Background(), []byte("garbage"))
			assertKind(t, err, tt.want)
			assert.True(t, errors.Is(err, tt.err), "cause must be kept")
			assert.Equal(t, int32(0), f.server.GetVehicleCallCount)
		})
	}
}

func TestJourney_ScanUnknownVehicle(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.decoder.VehicleID, _ = domain.NewVehicleID("NOPE123")

	err := f.svc.Scan(context.Background(), nil)
	assertKind(t, err, domain.KindProcedural)
	assert.True(t, errors.Is(err, domain.ErrVehicleUnavailable), "cause must be kept")
}

func TestJourney_ScanServerFailure(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	cause := errors.New("connection refused")
	f.server.GetVehicleError = cause

	err := f.svc.Scan(context.Background(), nil)
	assertKind(t, err, domain.KindProcedural)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, domain.PMVStateAvailable, f.vehicle.State())
}

func TestJourney_ScanNotAvailableVehicle(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.vehicle.MarkUnderWay()

	err := f.svc.Scan(context.Background(), nil)
	assertKind(t, err, domain.KindVehicleUnavailable)
	assert.Equal(t, int32(0), f.server.RegisterPairingCallCount)
}

func TestJourney_ScanPairingRejected(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	f.server.RegisterPairingError = domain.Errorf(domain.KindVehicleUnavailable, "locked")
	assertKind(t, f.svc.Scan(ctx, nil), domain.KindVehicleUnavailable)

	f.server.RegisterPairingError = errors.New("db down")
	assertKind(t, f.svc.Scan(ctx, nil), domain.KindProcedural)

	assert.Equal(t, domain.PMVStateAvailable, f.vehicle.State())
	assert.Equal(t, service.PhaseNoJourney, f.svc.Snapshot().Phase)
}

func TestJourney_StopPairingFailurePropagatesAndKeepsJourneyOpen(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.drive(t)
	ctx := context.Background()

	cause := domain.Errorf(domain.KindConnectivity, "server unreachable")
	f.server.StopPairingError = cause

	_, err := f.svc.UnPairVehicle(ctx)
	assert.Same(t, cause, err)
	assert.Equal(t, service.PhaseStopped, f.svc.Snapshot().Phase)
	assert.Nil(t, f.svc.Snapshot().Summary)

	f.server.StopPairingError = nil
	_, err = f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)
}

// ──────────────────────────────────────────────
// 4. STATIONS AND LOCATION
// ──────────────────────────────────────────────

func TestJourney_BroadcastStationID(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.BroadcastStationID(ctx, nil), service.ErrMissingStation)

	st, _ := domain.NewStationID("ST01")
	require.NoError(t, f.svc.BroadcastStationID(ctx, &st))
	assert.Equal(t, []domain.StationID{st}, f.signal.Broadcasts)
	assert.Equal(t, "ST01", f.svc.Snapshot().Station)

	require.NoError(t, f.svc.Scan(ctx, nil))
	assert.Equal(t, "ST01", f.svc.Snapshot().OriginStation)
}

func TestJourney_BroadcastFailureIsConnectivity(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.signal.Error = errors.New("adapter off")

	st, _ := domain.NewStationID("ST01")
	err := f.svc.BroadcastStationID(context.Background(), &st)
	assertKind(t, err, domain.KindConnectivity)
	assert.Contains(t, err.Error(), "ST01")
	assert.Empty(t, f.svc.Snapshot().Station)
}

func TestJourney_EndStationRecordedOnUnPair(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.drive(t)
	ctx := context.Background()

	st, _ := domain.NewStationID("ST02")
	require.NoError(t, f.svc.BroadcastStationID(ctx, &st))

	summary, err := f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, summary.EndStation)
	assert.Equal(t, st, f.server.LastStopPairing.EndStation)
}

func TestJourney_RelocateVehicle(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()
	p, _ := domain.NewGeographicPoint(41.40, 2.17)

	assert.ErrorIs(t, f.svc.RelocateVehicle(ctx, &p, nil), service.ErrNoVehicle)

	require.NoError(t, f.svc.Scan(ctx, nil))
	assert.ErrorIs(t, f.svc.RelocateVehicle(ctx, nil, nil), service.ErrMissingLocation)

	st, _ := domain.NewStationID("ST03")
	require.NoError(t, f.svc.RelocateVehicle(ctx, &p, &st))
	assert.Equal(t, int32(1), f.server.RegisterLocationCount)

	loc, ok := f.vehicle.Location()
	require.True(t, ok)
	assert.Equal(t, p, loc)

	f.server.RegisterLocationError = errors.New("timeout")
	assertKind(t, f.svc.RelocateVehicle(ctx, &p, &st), domain.KindProcedural)
}

// ──────────────────────────────────────────────
// 5. PAYMENT
// ──────────────────────────────────────────────

func TestJourney_InvalidPaymentCodeAlwaysProcedural(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	assertKind(t, f.svc.SelectPaymentMethod(ctx, 'X'), domain.KindProcedural)

	f.drive(t)
	assertKind(t, f.svc.SelectPaymentMethod(ctx, 'X'), domain.KindProcedural)

	_, err := f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)
	assertKind(t, f.svc.SelectPaymentMethod(ctx, 'X'), domain.KindProcedural)

	f.svc.SetWallet(nil)
	assertKind(t, f.svc.SelectPaymentMethod(ctx, 'X'), domain.KindProcedural)
	assert.Equal(t, int32(0), f.server.RegisterPaymentCallCount)
}

func TestJourney_PaymentRequiresFare(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.SelectPaymentMethod(ctx, 'W'), service.ErrNoJourney)

	require.NoError(t, f.svc.Scan(ctx, nil))
	assert.ErrorIs(t, f.svc.SelectPaymentMethod(ctx, 'W'), service.ErrNoFare)
	assert.Equal(t, 100.0, f.wallet.Balance())
}

func TestJourney_WalletPaymentFailures(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.drive(t)
	ctx := context.Background()

	_, err := f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)

	f.svc.SetWallet(nil)
	assert.ErrorIs(t, f.svc.SelectPaymentMethod(ctx, 'W'), service.ErrNoWallet)

	poor, _ := domain.NewWallet(1)
	f.svc.SetWallet(poor)
	assertKind(t, f.svc.SelectPaymentMethod(ctx, 'W'), domain.KindInsufficientFunds)
	assert.Equal(t, 1.0, poor.Balance())
	assert.Equal(t, service.PhaseUnpaired, f.svc.Snapshot().Phase)
}

func TestJourney_ExternalPaymentFailureIsConnectivity(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.drive(t)
	ctx := context.Background()

	_, err := f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)

	cause := errors.New("gateway timeout")
	f.server.RegisterPaymentError = cause
	err = f.svc.SelectPaymentMethod(ctx, 'C')
	assertKind(t, err, domain.KindConnectivity)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, f.svc.Snapshot().Payments)
}

func TestJourney_PayTwice(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.drive(t)
	ctx := context.Background()

	_, err := f.svc.UnPairVehicle(ctx)
	require.NoError(t, err)
	require.NoError(t, f.svc.SelectPaymentMethod(ctx, 'W'))
	balance := f.wallet.Balance()

	assert.ErrorIs(t, f.svc.SelectPaymentMethod(ctx, 'W'), service.ErrAlreadyPaid)
	assert.Equal(t, balance, f.wallet.Balance())
}

func TestJourney_NotificationFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()
	f := newJourneyFixture(t)
	f.pub.Error = errors.New("broker down")

	require.NoError(t, f.svc.Scan(context.Background(), nil))
	assert.Empty(t, f.pub.PublishedKeys())
}
