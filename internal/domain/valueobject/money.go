package valueobject

import (
	"math"
	"math/bits"

	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

// Amount сумма в минимальных единицах валюты.
type Amount uint64

// MaxAmount наибольшая представимая сумма.
const MaxAmount = Amount(math.MaxUint64)

// BasisPoints ставка в сотых долях процента, 10000 = 100%.
type BasisPoints uint16

const MaxBasisPoints BasisPoints = 10000

func (b BasisPoints) IsValid() bool {
	return b <= MaxBasisPoints
}

func NewBasisPoints(v int64) (BasisPoints, error) {
	if v < 0 || v > int64(MaxBasisPoints) {
		return 0, apperror.Validation("ставка комиссии должна быть в диапазоне 0..%d б.п.", MaxBasisPoints)
	}
	return BasisPoints(v), nil
}

// FeeBreakdown результат расчёта комиссии: Fee + Net == Gross.
type FeeBreakdown struct {
	Gross Amount
	Fee   Amount
	Net   Amount
}

// CalculateFee считает fee = floor(amount*bps/10000) через 128-битное
// промежуточное произведение, поэтому результат точен на всём диапазоне uint64.
func CalculateFee(amount Amount, rate BasisPoints) (FeeBreakdown, error) {
	if !rate.IsValid() {
		return FeeBreakdown{}, apperror.ErrArithmeticOverflow
	}

	fee, err := mulDiv(uint64(amount), uint64(rate), uint64(MaxBasisPoints))
	if err != nil {
		return FeeBreakdown{}, err
	}

	net, err := CheckedSub(amount, Amount(fee))
	if err != nil {
		return FeeBreakdown{}, err
	}

	return FeeBreakdown{Gross: amount, Fee: Amount(fee), Net: net}, nil
}

// SplitBreakdown распределение суммы по спору.
type SplitBreakdown struct {
	BuyerRefund  Amount
	SellerPayout Amount
}

// SplitByPercentage возвращает buyer = floor(amount*pct/100), seller = остаток.
func SplitByPercentage(amount Amount, refundPercentage uint8) (SplitBreakdown, error) {
	if refundPercentage > 100 {
		return SplitBreakdown{}, apperror.Validation("процент возврата должен быть в диапазоне 0..100")
	}

	refund, err := mulDiv(uint64(amount), uint64(refundPercentage), 100)
	if err != nil {
		return SplitBreakdown{}, err
	}

	seller, err := CheckedSub(amount, Amount(refund))
	if err != nil {
		return SplitBreakdown{}, err
	}

	return SplitBreakdown{BuyerRefund: Amount(refund), SellerPayout: seller}, nil
}

func CheckedAdd(a, b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, apperror.ErrArithmeticOverflow
	}
	return Amount(sum), nil
}

func CheckedSub(a, b Amount) (Amount, error) {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	if borrow != 0 {
		return 0, apperror.ErrArithmeticOverflow
	}
	return Amount(diff), nil
}

// mulDiv считает floor(a*b/d) без промежуточного переполнения.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, apperror.ErrArithmeticOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		// частное не помещается в 64 бита
		return 0, apperror.ErrArithmeticOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}
