package dealstate

import (
	"fmt"

	"github.com/jiangshenghai57/rmbs-engine/internal/rmbserr"
)

var _ rmbserr.RMBSError = (*InvariantViolation)(nil)

// ViolationKind enumerates the invariant checks a DealState mutator can
// fail.
type ViolationKind int

const (
	ViolationOverdraft ViolationKind = iota
	ViolationNegativeBondBalance
	ViolationNonMonotoneLoss
	ViolationUnknownBucket
	ViolationNegativeAmount
)

// InvariantViolation is raised instead of silently truncating when a
// mutator would push cash, a bond balance, or cumulative loss outside
// its allowed range. It is always fatal; callers never suppress it.
type InvariantViolation struct {
	Kind   ViolationKind
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}

// RMBSError marks InvariantViolation as an rmbserr.RMBSError.
func (e *InvariantViolation) RMBSError() {}

func overdraft(bucket string, have, want string) *InvariantViolation {
	return &InvariantViolation{Kind: ViolationOverdraft, Detail: fmt.Sprintf("insufficient funds in %q: have %s, need %s", bucket, have, want)}
}

func unknownBucket(bucket string) *InvariantViolation {
	return &InvariantViolation{Kind: ViolationUnknownBucket, Detail: fmt.Sprintf("cash bucket %q does not exist", bucket)}
}

func negativeAmount(op string, amount string) *InvariantViolation {
	return &InvariantViolation{Kind: ViolationNegativeAmount, Detail: fmt.Sprintf("%s requires a non-negative amount, got %s", op, amount)}
}

func nonMonotoneLoss(ledger string) *InvariantViolation {
	return &InvariantViolation{Kind: ViolationNonMonotoneLoss, Detail: fmt.Sprintf("ledger %q moved backward (cumulative loss must be monotone non-decreasing)", ledger)}
}
