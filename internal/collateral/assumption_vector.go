package collateral

import (
	"math"

	"github.com/shopspring/decimal"

	finance "github.com/razorpay/go-financial"
	"github.com/razorpay/go-financial/enums/paymentperiod"
)

// twelve is reused across the CPR/SMM conversion and the PMT call.
var twelve = decimal.NewFromInt(12)

// AssumptionVector is the pool-level input to AssumptionVectorSource: a
// single CPR/CDR/Severity triple (or, for a stressed run, a caller may
// construct one AssumptionVectorSource per period-varying scenario) plus
// the static pool terms.
type AssumptionVector struct {
	OriginalBalance decimal.Decimal `json:"original_balance"`
	WAC             decimal.Decimal `json:"wac"`      // annual, e.g. 0.045
	WAM             int             `json:"wam"`      // months remaining at t=0
	CPR             decimal.Decimal `json:"cpr"`      // annual constant prepayment rate, e.g. 0.06
	CDR             decimal.Decimal `json:"cdr"`      // annual constant default rate, e.g. 0.02
	Severity        decimal.Decimal `json:"severity"` // loss severity on defaulted balance, e.g. 0.35
}

// AssumptionVectorSource expands one AssumptionVector into a period-by-
// period Cashflow stream: scheduled amortization via a level-payment
// (PMT) calculation, prepayment via CPR->SMM, and realized loss via
// CDR->MDR x severity.
type AssumptionVectorSource struct {
	vector  AssumptionVector
	balance decimal.Decimal
	period  int
	smm     decimal.Decimal
	mdr     decimal.Decimal
}

// NewAssumptionVectorSource precomputes the SMM and MDR for the life of
// the pool; the level payment is recomputed each period in Next.
func NewAssumptionVectorSource(v AssumptionVector) *AssumptionVectorSource {
	return &AssumptionVectorSource{
		vector:  v,
		balance: v.OriginalBalance,
		smm:     cprToSMM(v.CPR),
		mdr:     cprToSMM(v.CDR), // same 1-(1-x)^(1/12) annual->monthly conversion
	}
}

// cprToSMM converts an annualized rate to its monthly equivalent via
// SMM = 1 - (1 - annualRate)^(1/12); used for both CPR->SMM and
// CDR->MDR conversions.
func cprToSMM(annualRate decimal.Decimal) decimal.Decimal {
	if annualRate.IsZero() {
		return decimal.Zero
	}
	base := decimal.NewFromInt(1).Sub(annualRate)
	// decimal has no native Pow(x, 1/12); use the float64 bridge exactly
	// once per pool (not per period) since this value is cached at
	// construction.
	monthlyFactor := decimal.NewFromFloat(math.Pow(base.InexactFloat64(), 1.0/12.0))
	return decimal.NewFromInt(1).Sub(monthlyFactor)
}

// Next produces the pool's Cashflow for the next period, or ok=false
// once WAM periods have elapsed or the balance reaches zero.
func (s *AssumptionVectorSource) Next() (Cashflow, bool, error) {
	if s.period >= s.vector.WAM || s.balance.LessThanOrEqual(decimal.Zero) {
		return Cashflow{}, false, nil
	}
	s.period++
	remainingTerm := s.vector.WAM - s.period + 1
	monthlyRate := s.vector.WAC.Div(twelve)

	payment, err := levelPayment(s.balance, monthlyRate, remainingTerm)
	if err != nil {
		return Cashflow{}, false, err
	}

	interest := s.balance.Mul(monthlyRate)
	scheduledPrincipal := payment.Sub(interest)
	if remainingTerm == 1 || scheduledPrincipal.GreaterThan(s.balance) {
		scheduledPrincipal = s.balance
	}

	afterScheduled := s.balance.Sub(scheduledPrincipal)

	defaultedBalance := afterScheduled.Mul(s.mdr)
	realizedLoss := defaultedBalance.Mul(s.vector.Severity)
	afterDefault := afterScheduled.Sub(defaultedBalance)

	prepay := afterDefault.Mul(s.smm)
	endBalance := afterDefault.Sub(prepay)
	if endBalance.IsNegative() {
		endBalance = decimal.Zero
	}

	s.balance = endBalance

	return Cashflow{
		InterestCollected:  interest.Round(2),
		PrincipalCollected: scheduledPrincipal.Add(prepay).Round(2),
		RealizedLoss:       realizedLoss.Round(2),
		EndPoolBalance:     endBalance.Round(2),
		WAC:                s.vector.WAC,
		WAM:                remainingTerm - 1,
	}, true, nil
}

// levelPayment computes the fixed monthly payment for balance at
// monthlyRate over nper remaining periods using go-financial's Pmt.
func levelPayment(balance, monthlyRate decimal.Decimal, nper int) (decimal.Decimal, error) {
	if nper <= 0 {
		return decimal.Zero, nil
	}
	pmt := finance.Pmt(monthlyRate, decimal.NewFromInt(int64(nper)), balance.Neg(), decimal.Zero, paymentperiod.END)
	return pmt, nil
}
