// Package sandbox is the development gateway: every charge retry succeeds
// with a synthetic transaction id.
package sandbox

import (
	"context"

	"github.com/google/uuid"

	"github.com/tidyroundlabs/tidyround/internal/gateway/domain"
)

type Gateway struct{}

func New() *Gateway { return &Gateway{} }

func (Gateway) ChargeRetry(_ context.Context, _ string) (domain.ChargeResult, error) {
	return domain.ChargeResult{
		Success:       true,
		TransactionID: "sandbox_" + uuid.NewString(),
	}, nil
}
