/*
Package canteen implements the point-of-sale and prepaid-balance engine of a
school canteen.

PURPOSE:
  Staff record balance top-ups for students, ring up purchases against a
  student's balance (or on the tab when the balance is short), cancel
  purchases with refund, and export reports. This package holds the data
  model and every workflow; persistence lives behind the Store interface.

KEY CONCEPTS IN THIS FILE (types.go):
  - Student: owns the balance and the spending ceilings
  - Product: read-only catalog entry
  - Sale / SaleItem: a purchase and its price-snapshotted lines
  - Recharge: append-only balance top-up record

SALE TYPES:
  credito  The balance covered the purchase and was debited.
  fiado    The balance was short; the purchase went on the tab and the
           balance was left untouched.

DESIGN PRINCIPLES:
  1. Precision: every amount is decimal.Decimal, never float64
  2. Snapshots: line items carry the unit price charged, so later catalog
     changes never rewrite history
  3. Monotonic status: a sale goes normal -> cancelada once, never back

SEE ALSO:
  - ledger.go: balance and limit decisions
  - sale.go, cancel.go, recharge.go: workflows
  - store.go: persistence contract
*/
package canteen

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STUDENT
// =============================================================================

// Student is a canteen customer with a prepaid balance.
//
// A zero DailyLimit or MonthlyLimit means "no ceiling".
type Student struct {
	ID                  string
	Name                string
	Group               string // class label ("turma")
	Code                string // optional external code ("RA"), unique when set
	Balance             decimal.Decimal
	DailyLimit          decimal.Decimal
	MonthlyLimit        decimal.Decimal
	AllowCredit         bool // "permite_fiado"
	LowBalanceThreshold decimal.Decimal
	Active              bool

	// Version is bumped by the store on every balance write and is used to
	// reject balance updates computed from a stale read.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Defaults applied to new students when the caller leaves fields unset.
var (
	DefaultLowBalanceThreshold = decimal.NewFromInt(10)
)

// =============================================================================
// PRODUCT
// =============================================================================

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// SALE
// =============================================================================

type SaleType string

const (
	SaleCredito SaleType = "credito" // paid from balance
	SaleFiado   SaleType = "fiado"   // extended as store credit
)

type SaleStatus string

const (
	SaleNormal    SaleStatus = "normal"
	SaleCancelled SaleStatus = "cancelada"
)

type Sale struct {
	ID        string
	StudentID string
	SoldAt    time.Time
	Total     decimal.Decimal
	Type      SaleType
	Status    SaleStatus
	CreatedBy string
	Items     []SaleItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaleItem is one line of a sale. UnitPrice is the price charged at sale
// time, not a reference to the live catalog price.
type SaleItem struct {
	ID        string
	SaleID    string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns Quantity x UnitPrice.
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// =============================================================================
// RECHARGE
// =============================================================================

type PaymentMethod string

const (
	PaymentPix  PaymentMethod = "pix"
	PaymentCash PaymentMethod = "dinheiro"
	PaymentCard PaymentMethod = "cartao"
)

// Valid reports whether m is one of the accepted payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPix, PaymentCash, PaymentCard:
		return true
	}
	return false
}

// Recharge is an append-only balance top-up record.
type Recharge struct {
	ID        string
	StudentID string
	Amount    decimal.Decimal
	Method    PaymentMethod
	CreatedBy string
	At        time.Time
}
