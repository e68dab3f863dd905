/*
store.go - Persistence contract for the canteen engine

KEY INTERFACES:
  Store: reads, catalog/student maintenance, reports, and WithTx
  Tx:    the operations a workflow performs inside one atomic unit

LOOKUP CONVENTION:
  Getters return (nil, nil) when the row does not exist. The service turns
  that into a NotFoundError.

LOCKING CONTRACT:
  LockStudent and LockSale must hold the row for the rest of the
  transaction (SELECT ... FOR UPDATE on PostgreSQL, the single writer on
  SQLite, the store mutex in memory). UpdateBalance must additionally
  compare the version read by LockStudent and return
  ErrConcurrentModification when it moved.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL via database/sql
  - store/memory:   in-memory, for tests and local runs
*/
package canteen

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store handles persistence for students, products, sales and recharges.
type Store interface {
	// WithTx executes fn within a transaction.
	// If fn returns error (or panics), the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetStudent(ctx context.Context, id string) (*Student, error)
	// ListStudents returns students ordered by name. A non-empty search
	// matches name or group, case-insensitively.
	ListStudents(ctx context.Context, search string) ([]Student, error)
	// CreateStudent returns ErrDuplicateCode when Code is taken.
	CreateStudent(ctx context.Context, st Student) error
	// UpdateStudentProfile writes every field except Balance and Version.
	UpdateStudentProfile(ctx context.Context, st Student) error

	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
	SaveProduct(ctx context.Context, p Product) error

	GetSale(ctx context.Context, id string) (*Sale, error)

	SalesReport(ctx context.Context, f ReportFilter) ([]SaleReportRow, error)
	RechargesReport(ctx context.Context, f ReportFilter) ([]RechargeReportRow, error)

	Ping(ctx context.Context) error
}

// Tx is the transactional view handed to WithTx callbacks.
type Tx interface {
	LockStudent(ctx context.Context, id string) (*Student, error)
	LockSale(ctx context.Context, id string) (*Sale, error)
	GetProduct(ctx context.Context, id string) (*Product, error)

	// SumSales totals non-cancelled sales of studentID sold within p.
	SumSales(ctx context.Context, studentID string, p Period) (decimal.Decimal, error)

	// InsertSale writes the sale and all its items.
	InsertSale(ctx context.Context, sale Sale) error
	// CancelSale flips status normal -> cancelada. It returns false when the
	// sale was not in status normal.
	CancelSale(ctx context.Context, id string, at time.Time) (bool, error)
	// UpdateBalance sets the balance if the stored version still equals
	// version, bumping it; otherwise ErrConcurrentModification.
	UpdateBalance(ctx context.Context, studentID string, version int64, balance decimal.Decimal, at time.Time) error
	InsertRecharge(ctx context.Context, r Recharge) error
}

// Resetter is implemented by stores that can wipe all data (demo scenarios).
type Resetter interface {
	Reset(ctx context.Context) error
}
