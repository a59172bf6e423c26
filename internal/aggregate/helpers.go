package aggregate

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
)

const ratioScale = 18

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v.ToBig()
}

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// computeFeeYield is fees earned per unit of closing reserve.
func computeFeeYield(fees *big.Int, reserve *big.Int) *string {
	if fees == nil || fees.Sign() == 0 || reserve == nil || reserve.Sign() <= 0 {
		return nil
	}
	rate := new(big.Rat).SetFrac(fees, reserve).FloatString(ratioScale)
	return &rate
}

func computeAPR(feeYield *string, windowSeconds uint64) *string {
	if windowSeconds == 0 || feeYield == nil {
		return nil
	}
	rat, ok := new(big.Rat).SetString(*feeYield)
	if !ok {
		return nil
	}
	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(rat, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}
