package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pmv/internal/domain"
	"pmv/internal/redis"
)

// Fleet is the backend view of the vehicle fleet.
type Fleet interface {
	GetVehicleByID(ctx context.Context, id domain.VehicleID) (*domain.Vehicle, error)
	CheckPMVAvail(ctx context.Context, id domain.VehicleID) error
	RegisterVehicle(ctx context.Context, vehicle *domain.Vehicle) error
	UpdateVehicleLocation(ctx context.Context, vehicle domain.VehicleID, point domain.GeographicPoint) error
	RegisterLocation(ctx context.Context, vehicle domain.VehicleID, station domain.StationID) error
	FindNearbyVehicles(ctx context.Context, point domain.GeographicPoint, radiusKm float64, limit int) ([]redis.VehicleLocation, error)
}

const (
	defaultNearbyRadiusKm = 1.0
	defaultNearbyLimit    = 20
)

// VehicleHandler handles HTTP requests for vehicles.
type VehicleHandler struct {
	fleet   Fleet
	journey *JourneyHandler
}

// NewVehicleHandler creates a new VehicleHandler. Location reports for the
// vehicle of an open journey are routed through journey when it is set.
func NewVehicleHandler(fleet Fleet, journey *JourneyHandler) *VehicleHandler {
	return &VehicleHandler{fleet: fleet, journey: journey}
}

// RegisterVehicleRequest is the HTTP request body for registering a vehicle.
type RegisterVehicleRequest struct {
	ID  string   `json:"id"`
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// LocationRequest is the HTTP request body for a vehicle position report.
type LocationRequest struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	StationID string   `json:"station_id,omitempty"`
}

// VehicleResponse is the HTTP response describing a vehicle.
type VehicleResponse struct {
	ID        string   `json:"id"`
	State     string   `json:"state"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Available bool     `json:"available"`
}

// NearbyVehicleResponse is one entry of a nearby search.
type NearbyVehicleResponse struct {
	ID     string  `json:"id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	DistKm float64 `json:"dist_km"`
}

// Register handles POST /v1/vehicles
func (h *VehicleHandler) Register(c *gin.Context) {
	var req RegisterVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	id, err := domain.NewVehicleID(req.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	var loc *domain.GeographicPoint
	if req.Lat != nil || req.Lng != nil {
		if req.Lat == nil || req.Lng == nil {
			respondBadRequest(c, "lat and lng must be given together")
			return
		}
		p, err := domain.NewGeographicPoint(*req.Lat, *req.Lng)
		if err != nil {
			respondError(c, err)
			return
		}
		loc = &p
	}

	vehicle, err := domain.NewVehicle(id, domain.PMVStateAvailable, loc)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.fleet.RegisterVehicle(c.Request.Context(), vehicle); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toVehicleResponse(vehicle))
}

// UpdateLocation handles POST /v1/vehicles/:id/location
func (h *VehicleHandler) UpdateLocation(c *gin.Context) {
	id, err := domain.NewVehicleID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		respondBadRequest(c, "lat and lng are required")
		return
	}
	point, err := domain.NewGeographicPoint(*req.Lat, *req.Lng)
	if err != nil {
		respondError(c, err)
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

	if h.journey != nil {
		handled, err := h.journey.relocate(c, id, point, station)
		if err != nil {
			respondError(c, err)
			return
		}
		if handled {
			c.Status(http.StatusNoContent)
			return
		}
	}

	ctx := c.Request.Context()
	if err := h.fleet.UpdateVehicleLocation(ctx, id, point); err != nil {
		respondError(c, err)
		return
	}
	if station != nil {
		if err := h.fleet.RegisterLocation(ctx, id, *station); err != nil {
			respondError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// GetAvailability handles GET /v1/vehicles/:id/availability
func (h *VehicleHandler) GetAvailability(c *gin.Context) {
	id, err := domain.NewVehicleID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	vehicle, err := h.fleet.GetVehicleByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toVehicleResponse(vehicle))
}

// Nearby handles GET /v1/vehicles/nearby?lat=..&lng=..&radius_km=..&limit=..
func (h *VehicleHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		respondBadRequest(c, "lat and lng query parameters are required")
		return
	}
	point, err := domain.NewGeographicPoint(lat, lng)
	if err != nil {
		respondError(c, err)
		return
	}

	radius := defaultNearbyRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		if radius, err = strconv.ParseFloat(raw, 64); err != nil {
			respondBadRequest(c, "radius_km must be a number")
			return
		}
	}
	limit := defaultNearbyLimit
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			respondBadRequest(c, "limit must be a positive integer")
			return
		}
	}

	found, err := h.fleet.FindNearbyVehicles(c.Request.Context(), point, radius, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]NearbyVehicleResponse, 0, len(found))
	for _, v := range found {
		resp = append(resp, NearbyVehicleResponse{ID: v.VehicleID, Lat: v.Lat, Lng: v.Lng, DistKm: v.DistKm})
	}
	respondJSON(c, http.StatusOK, resp)
}

func toVehicleResponse(v *domain.Vehicle) VehicleResponse {
	resp := VehicleResponse{
		ID:        v.ID().String(),
		State:     string(v.State()),
		Available: v.State() == domain.PMVStateAvailable,
	}
	if loc, ok := v.Location(); ok {
		lat, lng := loc.Latitude(), loc.Longitude()
		resp.Lat, resp.Lng = &lat, &lng
	}
	return resp
}
