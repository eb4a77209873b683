package session

import (
	"context"
	"errors"

	"github.com/newtron-network/netverify/pkg/transport"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// EstablishResult is the outcome of one establishment step.
type EstablishResult int

const (
	// Success means the transport is open and logged in.
	Success EstablishResult = iota
	// NeedsFallback means the credentials were rejected and the family
	// supports a blank-secret interactive retry.
	NeedsFallback
	// Failure is terminal.
	Failure
)

func (r EstablishResult) String() string {
	switch r {
	case Success:
		return "success"
	case NeedsFallback:
		return "needs-fallback"
	default:
		return "failure"
	}
}

// establish performs one dial attempt and classifies the outcome. A
// fallback is only offered on an authentication rejection of a
// non-interactive attempt for a family flagged BlankSecretFallback.
func establish(ctx context.Context, dialer transport.Dialer, t transport.Target, p *vendor.Profile) (transport.Conn, EstablishResult, error) {
	conn, err := dialer.Dial(ctx, t)
	switch {
	case err == nil:
		return conn, Success, nil
	case errors.Is(err, transport.ErrAuthRejected) && p.BlankSecretFallback && !t.Interactive:
		return nil, NeedsFallback, err
	default:
		return nil, Failure, err
	}
}
