package aggregate

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

const ratioScale = 18

var yearSeconds = decimal.NewFromInt(int64(365 * 24 * time.Hour / time.Second))

func computeFeeRates(fee0, fee1, tvl0, tvl1 *big.Int) (*string, *string) {
	return computeRate(fee0, tvl0), computeRate(fee1, tvl1)
}

func computeRate(fee, tvl *big.Int) *string {
	if fee == nil || fee.Sign() <= 0 || tvl == nil || tvl.Sign() <= 0 {
		return nil
	}
	rate := decimal.NewFromBigInt(fee, 0).DivRound(decimal.NewFromBigInt(tvl, 0), ratioScale).String()
	return &rate
}

// computeAPR annualizes the mean of the available per-token fee rates.
func computeAPR(feeRate0, feeRate1 *string, windowSeconds uint64) *string {
	if windowSeconds == 0 {
		return nil
	}
	var rates []decimal.Decimal
	for _, rate := range []*string{feeRate0, feeRate1} {
		if rate == nil {
			continue
		}
		d, err := decimal.NewFromString(*rate)
		if err != nil {
			return nil
		}
		rates = append(rates, d)
	}
	if len(rates) == 0 {
		return nil
	}

	mean := decimal.Avg(rates[0], rates[1:]...)
	apr := mean.Mul(yearSeconds).DivRound(decimal.NewFromInt(int64(windowSeconds)), ratioScale).String()
	return &apr
}

func stringOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
