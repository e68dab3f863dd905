/*
ledger.go - Balance and spending-limit decisions

PURPOSE:
  The pure half of the sale workflow. Given a student, the amount already
  spent in each window and a proposed total, decide whether the sale may
  proceed and how it is paid. Nothing here touches the store.

ORDER OF CHECKS:
  1. Daily ceiling   (LimitExceededError{Window: daily})
  2. Monthly ceiling (LimitExceededError{Window: monthly})
  3. Classification  (credito / fiado / InsufficientFundsError)

  When a sale breaks both ceilings the daily error is the one reported.

ARITHMETIC:
  All sums use decimal.Decimal. 0.10 + 0.20 is exactly 0.30 here.
*/
package canteen

import "github.com/shopspring/decimal"

// SaleTotal sums Quantity x UnitPrice over items.
func SaleTotal(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// CheckLimit tests a proposed total against one ceiling. A zero or negative
// limit disables the check.
func CheckLimit(st Student, window LimitWindow, spent, total decimal.Decimal) error {
	limit := st.DailyLimit
	if window == LimitMonthly {
		limit = st.MonthlyLimit
	}
	if !limit.IsPositive() {
		return nil
	}
	if spent.Add(total).GreaterThan(limit) {
		return &LimitExceededError{
			Window:      window,
			StudentName: st.Name,
			Limit:       limit,
			Spent:       spent,
			Requested:   total,
		}
	}
	return nil
}

// Classify decides how a sale of total is paid and returns the balance the
// student will hold afterwards.
func Classify(st Student, total decimal.Decimal) (SaleType, decimal.Decimal, error) {
	if st.Balance.GreaterThanOrEqual(total) {
		return SaleCredito, st.Balance.Sub(total), nil
	}
	if st.AllowCredit {
		return SaleFiado, st.Balance, nil
	}
	return "", st.Balance, &InsufficientFundsError{
		StudentName: st.Name,
		Balance:     st.Balance,
		Requested:   total,
	}
}

// IsLowBalance reports whether balance is under the student's warning
// threshold.
func IsLowBalance(st Student, balance decimal.Decimal) bool {
	return balance.LessThan(st.LowBalanceThreshold)
}

// Refund returns the balance after reversing sale. Only credito sales moved
// money, so fiado sales leave current untouched.
func Refund(sale Sale, current decimal.Decimal) decimal.Decimal {
	if sale.Type != SaleCredito {
		return current
	}
	return current.Add(sale.Total)
}
