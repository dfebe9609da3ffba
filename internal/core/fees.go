package core

import "github.com/shopspring/decimal"

// FeeSchedule holds the maker and taker fee rates as fractions
// (0.001 = 0.1%). Fees are taken from each side's proceeds: the buyer's
// fee in base currency, the seller's in quote currency, so a reservation
// is never exceeded at settlement.
type FeeSchedule struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// DefaultFeeSchedule is 0.1% maker, 0.2% taker.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Maker: decimal.NewFromFloat(0.001),
		Taker: decimal.NewFromFloat(0.002),
	}
}

// ZeroFees disables fees entirely; handy for embedding and tests.
func ZeroFees() FeeSchedule {
	return FeeSchedule{Maker: decimal.Zero, Taker: decimal.Zero}
}

func (f FeeSchedule) makerFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(f.Maker)
}

func (f FeeSchedule) takerFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(f.Taker)
}
