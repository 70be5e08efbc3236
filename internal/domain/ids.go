package domain

import (
	"math"
	"regexp"
)

var (
	vehicleIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{5,15}$`)
	stationIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{3,10}$`)
	usernamePattern  = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
)

// VehicleID identifies a PMV. The zero value is not a valid identifier.
type VehicleID struct {
	id string
}

// NewVehicleID validates id and returns a VehicleID.
func NewVehicleID(id string) (VehicleID, error) {
	if id == "" {
		return VehicleID{}, Errorf(KindInvalidArguments, "vehicle id cannot be empty")
	}
	if !vehicleIDPattern.MatchString(id) {
		return VehicleID{}, Errorf(KindInvalidArguments, "vehicle id must be 5 to 15 alphanumeric characters, got %q", id)
	}
	return VehicleID{id: id}, nil
}

func (v VehicleID) String() string { return v.id }

// IsZero reports whether v was never constructed.
func (v VehicleID) IsZero() bool { return v.id == "" }

// StationID identifies a docking station.
type StationID struct {
	id string
}

// NewStationID validates id and returns a StationID.
func NewStationID(id string) (StationID, error) {
	if id == "" {
		return StationID{}, Errorf(KindInvalidArguments, "station id cannot be empty")
	}
	if !stationIDPattern.MatchString(id) {
		return StationID{}, Errorf(KindInvalidArguments, "station id must be 3 to 10 alphanumeric characters, got %q", id)
	}
	return StationID{id: id}, nil
}

func (s StationID) String() string { return s.id }

func (s StationID) IsZero() bool { return s.id == "" }

// UserAccount is the rider's username.
type UserAccount struct {
	username string
}

// NewUserAccount validates username and returns a UserAccount.
func NewUserAccount(username string) (UserAccount, error) {
	if username == "" {
		return UserAccount{}, Errorf(KindInvalidArguments, "username cannot be empty")
	}
	if !usernamePattern.MatchString(username) {
		return UserAccount{}, Errorf(KindInvalidArguments, "username must be 3 to 20 alphanumeric or underscore characters, got %q", username)
	}
	return UserAccount{username: username}, nil
}

func (u UserAccount) Username() string { return u.username }

func (u UserAccount) String() string { return u.username }

func (u UserAccount) IsZero() bool { return u.username == "" }

// ServiceID links a closed journey to the amount charged for it.
type ServiceID struct {
	id     string
	amount float64
}

// NewServiceID requires a non-empty id and a non-negative amount.
func NewServiceID(id string, amount float64) (ServiceID, error) {
	if id == "" {
		return ServiceID{}, Errorf(KindInvalidArguments, "service id cannot be empty")
	}
	if amount < 0 || math.IsNaN(amount) {
		return ServiceID{}, Errorf(KindInvalidArguments, "service amount cannot be negative")
	}
	return ServiceID{id: id, amount: amount}, nil
}

func (s ServiceID) ID() string { return s.id }

func (s ServiceID) Amount() float64 { return s.amount }

func (s ServiceID) String() string { return s.id }

func (s ServiceID) IsZero() bool { return s.id == "" }
