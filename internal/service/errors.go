package service

import "pmv/internal/domain"

var (
	// ErrNoVehicle is returned when an operation needs a paired vehicle and there is none.
	ErrNoVehicle = &domain.Error{Kind: domain.KindProcedural, Msg: "no vehicle is paired"}

	// ErrNoJourney is returned when an operation needs an open journey and there is none.
	ErrNoJourney = &domain.Error{Kind: domain.KindProcedural, Msg: "no journey is open"}

	// ErrJourneyOpen is returned when scanning a new vehicle while a journey is still open.
	ErrJourneyOpen = &domain.Error{Kind: domain.KindProcedural, Msg: "a journey is already open"}

	// ErrVehicleNotReady is returned when starting to drive a vehicle that is not reserved.
	ErrVehicleNotReady = &domain.Error{Kind: domain.KindProcedural, Msg: "vehicle is not reserved for driving"}

	// ErrVehicleNotUnderWay is returned when stopping a vehicle that is not moving.
	ErrVehicleNotUnderWay = &domain.Error{Kind: domain.KindProcedural, Msg: "vehicle is not under way"}

	// ErrJourneyNotInProgress is returned when stopping a journey that is not in progress.
	ErrJourneyNotInProgress = &domain.Error{Kind: domain.KindProcedural, Msg: "journey is not in progress"}

	// ErrNoPairedVehicle is returned when unpairing with no vehicle bound to the journey.
	ErrNoPairedVehicle = &domain.Error{Kind: domain.KindPairingNotFound, Msg: "no vehicle is bound to the journey"}

	// ErrLocationUnknown is returned when the vehicle has not reported a position.
	ErrLocationUnknown = &domain.Error{Kind: domain.KindProcedural, Msg: "vehicle location is not available"}

	// ErrInvalidDuration is returned when a closing trip lasted less than a minute.
	ErrInvalidDuration = &domain.Error{Kind: domain.KindProcedural, Msg: "trip duration must be positive"}

	// ErrInvalidFare is returned when the computed fare is not positive.
	ErrInvalidFare = &domain.Error{Kind: domain.KindProcedural, Msg: "fare must be positive"}

	// ErrNoFare is returned when paying for a journey that has not been closed.
	ErrNoFare = &domain.Error{Kind: domain.KindProcedural, Msg: "journey has no fare to pay"}

	// ErrAlreadyPaid is returned when paying for a journey twice.
	ErrAlreadyPaid = &domain.Error{Kind: domain.KindProcedural, Msg: "journey is already paid"}

	// ErrNoWallet is returned when paying by wallet without one configured.
	ErrNoWallet = &domain.Error{Kind: domain.KindProcedural, Msg: "no wallet is configured"}

	// ErrMissingStation is returned when broadcasting an empty station id.
	ErrMissingStation = &domain.Error{Kind: domain.KindInvalidArguments, Msg: "station id cannot be empty"}

	// ErrMissingLocation is returned when relocating to an empty position.
	ErrMissingLocation = &domain.Error{Kind: domain.KindInvalidArguments, Msg: "location cannot be empty"}
)
