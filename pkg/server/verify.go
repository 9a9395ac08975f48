package server

import (
	"errors"

	"github.com/numena-dex/bookd/pkg/core"
)

// ErrBadSignature is returned when a request's signature fails
// verification.
var ErrBadSignature = errors.New("signature verification failed")

// Verifier authenticates an order request before it reaches the engine.
// The engine itself never sees signatures; whatever passes the verifier
// is treated as an authenticated trader identity.
type Verifier interface {
	Verify(req *SubmitOrderRequest) error
}

// AddressVerifier is the default verifier. It checks that the trader is
// a well formed address and that a signature is present. Cryptographic
// verification belongs to the gateway deployment, which swaps in its
// own Verifier.
type AddressVerifier struct{}

// Verify implements Verifier.
func (AddressVerifier) Verify(req *SubmitOrderRequest) error {
	if !core.IsTraderAddress(req.Trader) {
		return core.ErrInvalidTrader
	}
	if req.Signature == "" {
		return ErrBadSignature
	}
	return nil
}

var _ Verifier = AddressVerifier{}
