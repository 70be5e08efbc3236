package domain

// PMVState represents the current state of a vehicle.
type PMVState string

const (
	PMVStateAvailable        PMVState = "AVAILABLE"
	PMVStateNotAvailable     PMVState = "NOT_AVAILABLE"
	PMVStateUnderWay         PMVState = "UNDER_WAY"
	PMVStateTemporaryParking PMVState = "TEMPORARY_PARKING" // reserved, no transition reaches it
)

// ParsePMVState converts a stored state back into a PMVState.
func ParsePMVState(s string) (PMVState, error) {
	switch st := PMVState(s); st {
	case PMVStateAvailable, PMVStateNotAvailable, PMVStateUnderWay, PMVStateTemporaryParking:
		return st, nil
	default:
		return "", Errorf(KindInvalidArguments, "unknown vehicle state %q", s)
	}
}

// Vehicle is a personal mobility vehicle. Transitions are unconditional;
// callers enforce which transitions are legal.
type Vehicle struct {
	id       VehicleID
	state    PMVState
	location *GeographicPoint
}

// NewVehicle returns a vehicle. location may be nil when no fix has been reported yet.
func NewVehicle(id VehicleID, state PMVState, location *GeographicPoint) (*Vehicle, error) {
	if id.IsZero() {
		return nil, Errorf(KindInvalidArguments, "vehicle id is required")
	}
	if _, err := ParsePMVState(string(state)); err != nil {
		return nil, err
	}
	v := &Vehicle{id: id, state: state}
	if location != nil {
		loc := *location
		v.location = &loc
	}
	return v, nil
}

func (v *Vehicle) ID() VehicleID { return v.id }

func (v *Vehicle) State() PMVState { return v.state }

// Location returns the last known position and whether one is known.
func (v *Vehicle) Location() (GeographicPoint, bool) {
	if v.location == nil {
		return GeographicPoint{}, false
	}
	return *v.location, true
}

func (v *Vehicle) MarkUnavailable() { v.state = PMVStateNotAvailable }

func (v *Vehicle) MarkUnderWay() { v.state = PMVStateUnderWay }

func (v *Vehicle) MarkAvailable() { v.state = PMVStateAvailable }

// Relocate replaces the last known position.
func (v *Vehicle) Relocate(point *GeographicPoint) error {
	if point == nil {
		return Errorf(KindInvalidArguments, "vehicle location cannot be empty")
	}
	loc := *point
	v.location = &loc
	return nil
}
