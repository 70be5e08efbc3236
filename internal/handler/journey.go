package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pmv/internal/domain"
	"pmv/internal/service"
)

// JourneyHandler exposes the journey orchestrator over HTTP. Events are
// applied one at a time.
type JourneyHandler struct {
	mu       sync.Mutex
	journeys *service.JourneyService
	receipts *service.ReceiptService
	control  *service.ControlService
	logger   *zap.Logger
}

// NewJourneyHandler creates a new JourneyHandler. control may be nil when no
// vehicle controller is attached.
func NewJourneyHandler(journeys *service.JourneyService, receipts *service.ReceiptService, control *service.ControlService, logger *zap.Logger) *JourneyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JourneyHandler{
		journeys: journeys,
		receipts: receipts,
		control:  control,
		logger:   logger,
	}
}

// ScanRequest is the HTTP request body for scanning a vehicle's QR code.
type ScanRequest struct {
	QR string `json:"qr"`
}

// StationRequest is the HTTP request body for a station broadcast.
type StationRequest struct {
	StationID string `json:"station_id"`
}

// PaymentRequest is the HTTP request body for selecting a payment method.
type PaymentRequest struct {
	Method string `json:"method"` // W, C, P or T
}

// SummaryResponse is the HTTP response for a closed journey.
type SummaryResponse struct {
	ServiceID       string  `json:"service_id"`
	EndLat          float64 `json:"end_lat"`
	EndLng          float64 `json:"end_lng"`
	EndStation      string  `json:"end_station,omitempty"`
	EndedAt         string  `json:"ended_at"`
	DurationMinutes int     `json:"duration_minutes"`
	DistanceKm      float64 `json:"distance_km"`
	AvgSpeedKmh     float64 `json:"avg_speed_kmh"`
	Fare            float64 `json:"fare"`
}

// JourneyResponse is the HTTP response describing the orchestrator state.
type JourneyResponse struct {
	Phase         string           `json:"phase"`
	VehicleID     string           `json:"vehicle_id,omitempty"`
	VehicleState  string           `json:"vehicle_state,omitempty"`
	Lat           *float64         `json:"lat,omitempty"`
	Lng           *float64         `json:"lng,omitempty"`
	Station       string           `json:"station,omitempty"`
	JourneyID     string           `json:"journey_id,omitempty"`
	OriginStation string           `json:"origin_station,omitempty"`
	StartedAt     string           `json:"started_at,omitempty"`
	InProgress    bool             `json:"in_progress"`
	Summary       *SummaryResponse `json:"summary,omitempty"`
	Payments      []string         `json:"payments,omitempty"`
}

// Scan handles POST /v1/journey/scan
func (h *JourneyHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.journeys.Scan(c.Request.Context(), []byte(req.QR)); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, h.view())
}

// BroadcastStation handles POST /v1/journey/station
func (h *JourneyHandler) BroadcastStation(c *gin.Context) {
	var req StationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	var station *domain.StationID
	if req.StationID != "" {
		s, err := domain.NewStationID(req.StationID)
		if err != nil {
			respondError(c, err)
			return
		}
		station = &s
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.journeys.BroadcastStationID(c.Request.Context(), station); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, h.view())
}

// StartDriving handles POST /v1/journey/start
func (h *JourneyHandler) StartDriving(c *gin.Context) {
	ctx := c.Request.Context()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.control != nil && h.journeys.Snapshot().Phase == service.PhaseScanned {
		if err := h.control.Connect(ctx); err != nil {
			respondError(c, err)
			return
		}
		if err := h.control.Start(ctx); err != nil {
			h.control.Disconnect(ctx)
			respondError(c, err)
			return
		}
	}

	if err := h.journeys.StartDriving(ctx); err != nil {
		if h.control != nil && h.journeys.Snapshot().Phase == service.PhaseScanned {
			h.releaseController(ctx)
		}
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, h.view())
}

// StopDriving handles POST /v1/journey/stop
func (h *JourneyHandler) StopDriving(c *gin.Context) {
	ctx := c.Request.Context()

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.journeys.StopDriving(ctx); err != nil {
		respondError(c, err)
		return
	}
	if h.control != nil {
		h.releaseController(ctx)
	}
	respondJSON(c, http.StatusOK, h.view())
}

// releaseController stops the motor and drops the Bluetooth link. Failures
// are logged; the journey state is already settled.
func (h *JourneyHandler) releaseController(ctx context.Context) {
	if err := h.control.Stop(ctx); err != nil {
		h.logger.Warn("controller stop failed", zap.Error(err))
	}
	h.control.Disconnect(ctx)
}

// UnPair handles POST /v1/journey/unpair
func (h *JourneyHandler) UnPair(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	summary, err := h.journeys.UnPairVehicle(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toSummaryResponse(summary))
}

// SelectPayment handles POST /v1/journey/payment
func (h *JourneyHandler) SelectPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if len(req.Method) != 1 {
		respondBadRequest(c, "method must be a single character")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.journeys.SelectPaymentMethod(c.Request.Context(), req.Method[0]); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, h.view())
}

// GetJourney handles GET /v1/journey
func (h *JourneyHandler) GetJourney(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	respondJSON(c, http.StatusOK, h.view())
}

// GetReceipt handles GET /v1/journey/receipt. With ?format=text the
// printable receipt is returned.
func (h *JourneyHandler) GetReceipt(c *gin.Context) {
	h.mu.Lock()
	journey, vehicle, _ := h.journeys.Journey()
	receipt, err := h.receipts.GenerateReceipt(c.Request.Context(), journey, vehicle)
	h.mu.Unlock()
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.receipts.FormatReceipt(receipt))
		return
	}
	respondJSON(c, http.StatusOK, receipt)
}

// relocate moves the vehicle of an open journey. It reports false when id
// is not that vehicle.
func (h *JourneyHandler) relocate(c *gin.Context, id domain.VehicleID, point domain.GeographicPoint, station *domain.StationID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v := h.journeys.Snapshot()
	if v.VehicleID != id.String() {
		return false, nil
	}
	switch v.Phase {
	case service.PhaseScanned, service.PhaseDriving, service.PhaseStopped:
	default:
		return false, nil
	}
	return true, h.journeys.RelocateVehicle(c.Request.Context(), &point, station)
}

// view must be called with h.mu held.
func (h *JourneyHandler) view() JourneyResponse {
	v := h.journeys.Snapshot()
	resp := JourneyResponse{
		Phase:         string(v.Phase),
		VehicleID:     v.VehicleID,
		VehicleState:  string(v.VehicleState),
		Station:       v.Station,
		JourneyID:     v.JourneyID,
		OriginStation: v.OriginStation,
		InProgress:    v.InProgress,
	}
	if v.Location != nil {
		lat, lng := v.Location.Latitude(), v.Location.Longitude()
		resp.Lat, resp.Lng = &lat, &lng
	}
	if !v.StartedAt.IsZero() {
		resp.StartedAt = v.StartedAt.Format(time.RFC3339)
	}
	if v.Summary != nil {
		s := toSummaryResponse(*v.Summary)
		resp.Summary = &s
	}
	for _, m := range v.Payments {
		resp.Payments = append(resp.Payments, m.Name())
	}
	return resp
}

func toSummaryResponse(s domain.JourneySummary) SummaryResponse {
	return SummaryResponse{
		ServiceID:       s.ServiceID.ID(),
		EndLat:          s.EndPoint.Latitude(),
		EndLng:          s.EndPoint.Longitude(),
		EndStation:      s.EndStation.String(),
		EndedAt:         s.EndedAt.Format(time.RFC3339),
		DurationMinutes: s.Metrics.DurationMinutes,
		DistanceKm:      s.Metrics.DistanceKm,
		AvgSpeedKmh:     s.Metrics.AvgSpeedKmh,
		Fare:            s.Fare,
	}
}
