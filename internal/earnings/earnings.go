// Package earnings computes the per-instance employee payout for a
// subscription price, net of processor and platform fees. All amounts are
// integer minor currency units (cents); rounding is half-up.
package earnings

import (
	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

type PaymentMethod string

const (
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodBankDebit PaymentMethod = "bank_debit"
)

var (
	ErrInvalidAmount        = errs.Validation("invalid_amount", "gross amount must be positive")
	ErrUnknownPaymentMethod = errs.Validation("unknown_payment_method", "no fee schedule for payment method")
	ErrNegativeNet          = errs.Invariant("negative_net_earnings", "net employee amount computed below zero")
)

// Breakdown is the derived earnings split for one billing-cycle charge.
type Breakdown struct {
	GrossAmount         int64
	ProcessorFee        int64
	PlatformFee         int64
	NetEmployeeAmount   int64
	PerInstanceEarnings int64
	// Clamped is set when the computed net was negative and forced to zero.
	Clamped bool
}

// FeeSchedule computes the processor fee for one payment method.
type FeeSchedule interface {
	Method() PaymentMethod
	ProcessorFee(gross int64) int64
}

// CardSchedule models a rate-plus-fixed card processor fee (e.g. 2.9% + 30¢).
type CardSchedule struct {
	RateBps  int64
	FixedFee int64
}

func (CardSchedule) Method() PaymentMethod { return PaymentMethodCard }

func (s CardSchedule) ProcessorFee(gross int64) int64 {
	return roundHalfUpBps(gross, s.RateBps) + s.FixedFee
}

// BankDebitSchedule models a capped percentage fee (e.g. 0.8% capped at $5).
type BankDebitSchedule struct {
	RateBps int64
	FeeCap  int64
}

func (BankDebitSchedule) Method() PaymentMethod { return PaymentMethodBankDebit }

func (s BankDebitSchedule) ProcessorFee(gross int64) int64 {
	fee := roundHalfUpBps(gross, s.RateBps)
	if s.FeeCap > 0 && fee > s.FeeCap {
		return s.FeeCap
	}
	return fee
}

type Calculator struct {
	schedules      map[PaymentMethod]FeeSchedule
	platformCutBps int64
	cadenceDivisor int64
}

func NewCalculator(platformCutBps, cadenceDivisor int64, schedules ...FeeSchedule) *Calculator {
	if cadenceDivisor <= 0 {
		cadenceDivisor = 1
	}
	c := &Calculator{
		schedules:      make(map[PaymentMethod]FeeSchedule),
		platformCutBps: platformCutBps,
		cadenceDivisor: cadenceDivisor,
	}
	if len(schedules) == 0 {
		schedules = DefaultSchedules()
	}
	for _, s := range schedules {
		c.schedules[s.Method()] = s
	}
	return c
}

// DefaultSchedules returns the production fee schedules: card 2.9% + 30¢,
// bank debit 0.8% capped at $5.00.
func DefaultSchedules() []FeeSchedule {
	return []FeeSchedule{
		CardSchedule{RateBps: 290, FixedFee: 30},
		BankDebitSchedule{RateBps: 80, FeeCap: 500},
	}
}

// Compute derives the earnings breakdown for one subscription charge. It is
// deterministic and has no side effects. A negative net is clamped to zero
// and reported as ErrNegativeNet alongside the clamped breakdown.
func (c *Calculator) Compute(method PaymentMethod, gross int64) (Breakdown, error) {
	if gross <= 0 {
		return Breakdown{}, ErrInvalidAmount
	}

	schedule, ok := c.schedules[method]
	if !ok {
		return Breakdown{}, ErrUnknownPaymentMethod
	}

	b := Breakdown{
		GrossAmount:  gross,
		ProcessorFee: schedule.ProcessorFee(gross),
		PlatformFee:  roundHalfUpBps(gross, c.platformCutBps),
	}

	net := gross - b.ProcessorFee - b.PlatformFee
	if net < 0 {
		b.Clamped = true
		b.NetEmployeeAmount = 0
		b.PerInstanceEarnings = 0
		return b, ErrNegativeNet
	}
	b.NetEmployeeAmount = net
	b.PerInstanceEarnings = divRoundHalfUp(net, c.cadenceDivisor)
	return b, nil
}

// roundHalfUpBps applies a basis-point rate with half-up rounding.
func roundHalfUpBps(amount, bps int64) int64 {
	return (amount*bps + 5000) / 10000
}

func divRoundHalfUp(n, d int64) int64 {
	return (2*n + d) / (2 * d)
}
