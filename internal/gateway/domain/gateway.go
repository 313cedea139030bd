// Package domain defines the outbound payment-gateway capability. The
// gateway's own retry and dispute machinery is its problem; this interface
// only exposes the single charge-retry call the platform needs.
package domain

import (
	"context"

	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

var ErrGatewayUnavailable = errs.External("gateway_unavailable", "payment gateway did not respond")

// ChargeResult is the gateway's verdict on one charge-retry attempt. A
// declined charge is a successful call with Success=false; transport-level
// failures are returned as errors.
type ChargeResult struct {
	Success       bool
	TransactionID string
	ReasonCode    string
}

type Gateway interface {
	ChargeRetry(ctx context.Context, paymentReference string) (ChargeResult, error)
}
