// Package smartfeatures holds reference adapters for the rider's phone and
// the vehicle's hardware.
package smartfeatures

import (
	"bytes"
	"context"
	"unicode/utf8"

	"pmv/internal/domain"
)

// PayloadPrefix starts every vehicle QR payload.
const PayloadPrefix = "PMV:"

// PayloadDecoder reads the text payload of a vehicle's QR code. Image
// recognition happens on the rider's device; the server receives the payload.
type PayloadDecoder struct{}

// NewPayloadDecoder creates a new PayloadDecoder.
func NewPayloadDecoder() *PayloadDecoder {
	return &PayloadDecoder{}
}

// GetVehicleID decodes "PMV:<vehicle id>".
func (d *PayloadDecoder) GetVehicleID(ctx context.Context, image []byte) (domain.VehicleID, error) {
	payload := bytes.TrimSpace(image)
	if len(payload) == 0 {
		return domain.VehicleID{}, domain.Errorf(domain.KindCorruptedInput, "qr payload is empty")
	}
	if !utf8.Valid(payload) || !bytes.HasPrefix(payload, []byte(PayloadPrefix)) {
		return domain.VehicleID{}, domain.Errorf(domain.KindCorruptedInput, "qr payload is not a vehicle code")
	}
	return domain.NewVehicleID(string(payload[len(PayloadPrefix):]))
}

// EncodePayload returns the payload printed on vehicle's QR code.
func EncodePayload(vehicle domain.VehicleID) []byte {
	return []byte(PayloadPrefix + vehicle.String())
}
