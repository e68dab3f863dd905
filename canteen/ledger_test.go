package canteen_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cantina/canteen"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func student(balance string, allowCredit bool) canteen.Student {
	return canteen.Student{
		ID:                  "st-1",
		Name:                "Ana",
		Group:               "5A",
		Balance:             dec(balance),
		DailyLimit:          decimal.Zero,
		MonthlyLimit:        decimal.Zero,
		AllowCredit:         allowCredit,
		LowBalanceThreshold: canteen.DefaultLowBalanceThreshold,
		Active:              true,
	}
}

func TestSaleTotal_ExactDecimal(t *testing.T) {
	// GIVEN: prices that are inexact in binary floating point
	items := []canteen.SaleItem{
		{Quantity: 1, UnitPrice: dec("0.10")},
		{Quantity: 1, UnitPrice: dec("0.20")},
	}

	// THEN: the sum is exactly 0.30
	assert.True(t, canteen.SaleTotal(items).Equal(dec("0.30")))
}

func TestSaleTotal_QuantityTimesPrice(t *testing.T) {
	items := []canteen.SaleItem{
		{Quantity: 2, UnitPrice: dec("3.50")},
		{Quantity: 3, UnitPrice: dec("1.25")},
	}
	assert.Equal(t, "10.75", canteen.SaleTotal(items).StringFixed(2))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		balance     string
		allowCredit bool
		total       string
		wantType    canteen.SaleType
		wantBalance string
		wantErr     error
	}{
		{"balance covers", "50", true, "30", canteen.SaleCredito, "20", nil},
		{"exact balance is credito", "30", false, "30", canteen.SaleCredito, "0", nil},
		{"short with fiado", "20", true, "25", canteen.SaleFiado, "20", nil},
		{"short without fiado", "20", false, "25", "", "20", canteen.ErrInsufficientFunds},
		{"negative balance with fiado", "-5", true, "1", canteen.SaleFiado, "-5", nil},
		{"zero total", "0", false, "0", canteen.SaleCredito, "0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, bal, err := canteen.Classify(student(tt.balance, tt.allowCredit), dec(tt.total))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, typ)
			assert.True(t, bal.Equal(dec(tt.wantBalance)), "balance = %s", bal)
		})
	}
}

func TestCheckLimit_ZeroDisables(t *testing.T) {
	st := student("0", true)
	assert.NoError(t, canteen.CheckLimit(st, canteen.LimitDaily, dec("1000"), dec("1000")))
	assert.NoError(t, canteen.CheckLimit(st, canteen.LimitMonthly, dec("1000"), dec("1000")))
}

func TestCheckLimit_BoundaryIsInclusive(t *testing.T) {
	// GIVEN: a daily ceiling of 20 with 15 already spent
	st := student("100", true)
	st.DailyLimit = dec("20")

	// THEN: reaching the ceiling exactly is allowed, one cent past is not
	assert.NoError(t, canteen.CheckLimit(st, canteen.LimitDaily, dec("15"), dec("5")))

	err := canteen.CheckLimit(st, canteen.LimitDaily, dec("15"), dec("5.01"))
	var limErr *canteen.LimitExceededError
	require.ErrorAs(t, err, &limErr)
	assert.Equal(t, canteen.LimitDaily, limErr.Window)
	assert.True(t, limErr.Limit.Equal(dec("20")))
	assert.True(t, limErr.Spent.Equal(dec("15")))
	assert.Contains(t, err.Error(), "Limite diário")
	assert.Contains(t, err.Error(), "Ana")
}

func TestCheckLimit_MonthlyUsesMonthlyCeiling(t *testing.T) {
	st := student("100", true)
	st.DailyLimit = dec("1")
	st.MonthlyLimit = dec("100")

	assert.NoError(t, canteen.CheckLimit(st, canteen.LimitMonthly, dec("50"), dec("50")))

	err := canteen.CheckLimit(st, canteen.LimitMonthly, dec("50"), dec("51"))
	assert.ErrorIs(t, err, canteen.ErrLimitExceeded)
	assert.Contains(t, err.Error(), "Limite mensal")
}

func TestIsLowBalance(t *testing.T) {
	st := student("0", true)
	assert.True(t, canteen.IsLowBalance(st, dec("9.99")))
	assert.False(t, canteen.IsLowBalance(st, dec("10")))

	st.LowBalanceThreshold = decimal.Zero
	assert.True(t, canteen.IsLowBalance(st, dec("-0.01")))
	assert.False(t, canteen.IsLowBalance(st, decimal.Zero))
}

func TestRefund(t *testing.T) {
	credito := canteen.Sale{Type: canteen.SaleCredito, Total: dec("30")}
	fiado := canteen.Sale{Type: canteen.SaleFiado, Total: dec("25")}

	// Refund applies to the balance as it is now.
	assert.True(t, canteen.Refund(credito, dec("5")).Equal(dec("35")))
	assert.True(t, canteen.Refund(fiado, dec("5")).Equal(dec("5")))
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{&canteen.ValidationError{Field: "x", Message: "m"}, "validation_error"},
		{&canteen.NotFoundError{Kind: canteen.KindStudent, ID: "1"}, "not_found"},
		{&canteen.LimitExceededError{Window: canteen.LimitDaily}, "limit_exceeded"},
		{&canteen.InsufficientFundsError{}, "insufficient_funds"},
		{&canteen.AlreadyCancelledError{SaleID: "1"}, "already_cancelled"},
		{&canteen.DuplicateCodeError{Code: "RA1"}, "duplicate_code"},
		{&canteen.PersistenceError{Op: "x", Err: canteen.ErrConcurrentModification}, "concurrent_modification"},
		{&canteen.PersistenceError{Op: "x", Err: assert.AnError}, "persistence_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, canteen.Code(tt.err), "%T", tt.err)
	}

	assert.True(t, canteen.IsNotFound(&canteen.NotFoundError{Kind: canteen.KindSale}))
	assert.True(t, canteen.IsClientError(&canteen.ValidationError{}))
	assert.False(t, canteen.IsDomainError(&canteen.PersistenceError{Err: assert.AnError}))
	assert.Equal(t, "Venda não encontrada.", (&canteen.NotFoundError{Kind: canteen.KindSale}).Error())
}
