/*
Package sqlstore provides a database/sql implementation of canteen.Store.

PURPOSE:
  Persists students, products, sales (with items) and recharges. The same
  queries run on SQLite (mattn/go-sqlite3) and PostgreSQL (pgx stdlib);
  the dialect only changes placeholders and row locking.

KEY TABLES:
  students:   balance, ceilings and the version counter
  products:   catalog
  sales:      one row per sale, status normal|cancelada
  sale_items: price-snapshotted lines, ordered by line_no
  recharges:  append-only top-ups

STORAGE FORMATS:
  Money is stored as TEXT and moved as decimal.Decimal (Scanner/Valuer),
  so no value ever passes through float64. Timestamps are fixed-width UTC
  text, which keeps range predicates and ORDER BY correct as plain string
  comparisons on both databases.

CONCURRENCY:
  PostgreSQL: LockStudent / LockSale use SELECT ... FOR UPDATE.
  SQLite:     one open connection and _txlock=immediate, so transactions
              run one at a time.
  Both:       UpdateBalance is conditional on the version read under the
              lock; a mismatch is canteen.ErrConcurrentModification.

USAGE:
  store, err := sqlstore.Open(ctx, "sqlite", "./cantina.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on Open with CREATE ... IF NOT EXISTS.
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/cantina/canteen"
)

// Store implements canteen.Store over database/sql.
type Store struct {
	db *sql.DB
	d  dialect
}

var (
	_ canteen.Store    = (*Store)(nil)
	_ canteen.Resetter = (*Store)(nil)
)

// Open connects to driver ("sqlite" or "postgres") at dsn and migrates the
// schema. For SQLite dsn is a file path; ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, ok := dialectFor(driver)
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if d.name == dialectSQLite.name {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.name == dialectSQLite.name {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, d: d}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// New opens a SQLite store at dbPath.
func New(dbPath string) (*Store, error) {
	return Open(context.Background(), "sqlite", dbPath)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		turma TEXT NOT NULL,
		code TEXT,
		balance TEXT NOT NULL DEFAULT '0',
		daily_limit TEXT NOT NULL DEFAULT '0',
		monthly_limit TEXT NOT NULL DEFAULT '0',
		allow_credit BOOLEAN NOT NULL DEFAULT TRUE,
		low_balance_threshold TEXT NOT NULL DEFAULT '10',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_students_code
		ON students(code) WHERE code IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_students_name ON students(name)`,

	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		sold_at TEXT NOT NULL,
		total TEXT NOT NULL,
		sale_type TEXT NOT NULL CHECK (sale_type IN ('credito', 'fiado')),
		status TEXT NOT NULL DEFAULT 'normal' CHECK (status IN ('normal', 'cancelada')),
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	// Hot path: spend aggregation per student and window.
	`CREATE INDEX IF NOT EXISTS idx_sales_student_status_sold
		ON sales(student_id, status, sold_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_sold_at ON sales(sold_at)`,

	`CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		line_no INTEGER NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id, line_no)`,

	`CREATE TABLE IF NOT EXISTS recharges (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		amount TEXT NOT NULL,
		method TEXT NOT NULL CHECK (method IN ('pix', 'dinheiro', 'cartao')),
		created_by TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recharges_student_created
		ON recharges(student_id, created_at)`,
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears all data (demo scenarios and tests).
func (s *Store) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(canteen.Tx) error { return nil },
		"sale_items", "sales", "recharges", "students", "products")
}

// =============================================================================
// QUERY PLUMBING
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const tsLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(tsLayout, s, time.UTC)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation recognizes unique-constraint failures from either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key")
}

// isForeignKeyViolation recognizes foreign-key failures from either driver.
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed") ||
		strings.Contains(err.Error(), "violates foreign key constraint")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(canteen.Tx) error) error {
	return s.withTx(ctx, fn)
}

// withTx empties the truncate tables inside the transaction before fn runs.
func (s *Store) withTx(ctx context.Context, fn func(canteen.Tx) error, truncate ...string) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op after a successful Commit; runs on error and on panic.
	defer sqlTx.Rollback()

	for _, table := range truncate {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := fn(&txStore{q: sqlTx, d: s.d}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	q querier
	d dialect
}

func (t *txStore) LockStudent(ctx context.Context, id string) (*canteen.Student, error) {
	return getStudent(ctx, t.q, t.d, id, t.d.forUpdate)
}

func (t *txStore) LockSale(ctx context.Context, id string) (*canteen.Sale, error) {
	return getSale(ctx, t.q, t.d, id, t.d.forUpdate)
}

func (t *txStore) GetProduct(ctx context.Context, id string) (*canteen.Product, error) {
	return getProduct(ctx, t.q, t.d, id)
}

func (t *txStore) SumSales(ctx context.Context, studentID string, p canteen.Period) (decimal.Decimal, error) {
	rows, err := t.q.QueryContext(ctx, t.d.rebind(`
		SELECT total FROM sales
		WHERE student_id = ? AND status = ?
		  AND sold_at >= ? AND sold_at <= ?`),
		studentID, string(canteen.SaleNormal), formatTime(p.Start), formatTime(p.End),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum sales: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var v decimal.Decimal
		if err := rows.Scan(&v); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan sale total: %w", err)
		}
		sum = sum.Add(v)
	}
	return sum, rows.Err()
}

func (t *txStore) InsertSale(ctx context.Context, sale canteen.Sale) error {
	_, err := t.q.ExecContext(ctx, t.d.rebind(`
		INSERT INTO sales (id, student_id, sold_at, total, sale_type, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sale.ID, sale.StudentID, formatTime(sale.SoldAt), sale.Total,
		string(sale.Type), string(sale.Status), nullString(sale.CreatedBy),
		formatTime(sale.CreatedAt), formatTime(sale.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	itemQuery := t.d.rebind(`
		INSERT INTO sale_items (id, sale_id, line_no, product_id, quantity, unit_price)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for i, it := range sale.Items {
		_, err := t.q.ExecContext(ctx, itemQuery,
			it.ID, sale.ID, i, it.ProductID, it.Quantity, it.UnitPrice,
		)
		if isForeignKeyViolation(err) {
			return &canteen.NotFoundError{Kind: canteen.KindProduct, ID: it.ProductID}
		}
		if err != nil {
			return fmt.Errorf("failed to insert sale item %d: %w", i, err)
		}
	}
	return nil
}

func (t *txStore) CancelSale(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := t.q.ExecContext(ctx, t.d.rebind(`
		UPDATE sales SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		string(canteen.SaleCancelled), formatTime(at), id, string(canteen.SaleNormal),
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel sale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *txStore) UpdateBalance(ctx context.Context, studentID string, version int64, balance decimal.Decimal, at time.Time) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(`
		UPDATE students SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`),
		balance, formatTime(at), studentID, version,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return canteen.ErrConcurrentModification
	}
	return nil
}

func (t *txStore) InsertRecharge(ctx context.Context, r canteen.Recharge) error {
	_, err := t.q.ExecContext(ctx, t.d.rebind(`
		INSERT INTO recharges (id, student_id, amount, method, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		r.ID, r.StudentID, r.Amount, string(r.Method), nullString(r.CreatedBy), formatTime(r.At),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recharge: %w", err)
	}
	return nil
}

// =============================================================================
// STUDENT STORE
// =============================================================================

const studentColumns = `id, name, turma, code, balance, daily_limit, monthly_limit,
	allow_credit, low_balance_threshold, active, version, created_at, updated_at`

func scanStudent(row rowScanner) (canteen.Student, error) {
	var (
		st                   canteen.Student
		code                 sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&st.ID, &st.Name, &st.Group, &code, &st.Balance, &st.DailyLimit, &st.MonthlyLimit,
		&st.AllowCredit, &st.LowBalanceThreshold, &st.Active, &st.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return st, err
	}
	st.Code = code.String
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return st, nil
}

func getStudent(ctx context.Context, q querier, d dialect, id, suffix string) (*canteen.Student, error) {
	row := q.QueryRowContext(ctx, d.rebind("SELECT "+studentColumns+" FROM students WHERE id = ?"+suffix), id)
	st, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &st, nil
}

// GetStudent retrieves a student by ID.
func (s *Store) GetStudent(ctx context.Context, id string) (*canteen.Student, error) {
	return getStudent(ctx, s.db, s.d, id, "")
}

// ListStudents returns students ordered by name, optionally filtered.
func (s *Store) ListStudents(ctx context.Context, search string) ([]canteen.Student, error) {
	query := "SELECT " + studentColumns + " FROM students"
	var args []any
	if search != "" {
		query += ` WHERE LOWER(name) LIKE ? ESCAPE '\' OR LOWER(turma) LIKE ? ESCAPE '\'`
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []canteen.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// CreateStudent inserts a new student.
func (s *Store) CreateStudent(ctx context.Context, st canteen.Student) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO students (`+studentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		st.ID, st.Name, st.Group, nullString(st.Code), st.Balance, st.DailyLimit, st.MonthlyLimit,
		st.AllowCredit, st.LowBalanceThreshold, st.Active, st.Version,
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return &canteen.DuplicateCodeError{Code: st.Code}
	}
	if err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

// UpdateStudentProfile updates every column except balance and version.
func (s *Store) UpdateStudentProfile(ctx context.Context, st canteen.Student) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind(`
		UPDATE students SET
			name = ?, turma = ?, code = ?, daily_limit = ?, monthly_limit = ?,
			allow_credit = ?, low_balance_threshold = ?, active = ?, updated_at = ?
		WHERE id = ?`),
		st.Name, st.Group, nullString(st.Code), st.DailyLimit, st.MonthlyLimit,
		st.AllowCredit, st.LowBalanceThreshold, st.Active, formatTime(st.UpdatedAt),
		st.ID,
	)
	if isUniqueViolation(err) {
		return &canteen.DuplicateCodeError{Code: st.Code}
	}
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &canteen.NotFoundError{Kind: canteen.KindStudent, ID: st.ID}
	}
	return nil
}

// =============================================================================
// PRODUCT STORE
// =============================================================================

const productColumns = "id, name, price, active, created_at, updated_at"

func scanProduct(row rowScanner) (canteen.Product, error) {
	var (
		p                    canteen.Product
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Active, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func getProduct(ctx context.Context, q querier, d dialect, id string) (*canteen.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, d.rebind("SELECT "+productColumns+" FROM products WHERE id = ?"), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*canteen.Product, error) {
	return getProduct(ctx, s.db, s.d, id)
}

// ListProducts returns products ordered by name.
func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]canteen.Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	var args []any
	if activeOnly {
		query += " WHERE active = ?"
		args = append(args, true)
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []canteen.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// SaveProduct inserts or updates a product.
func (s *Store) SaveProduct(ctx context.Context, p canteen.Product) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			active = excluded.active,
			updated_at = excluded.updated_at`),
		p.ID, p.Name, p.Price, p.Active, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// =============================================================================
// SALE STORE
// =============================================================================

func getSale(ctx context.Context, q querier, d dialect, id, suffix string) (*canteen.Sale, error) {
	var (
		sale                         canteen.Sale
		typ, status                  string
		createdBy                    sql.NullString
		soldAt, createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx, d.rebind(`
		SELECT id, student_id, sold_at, total, sale_type, status, created_by, created_at, updated_at
		FROM sales WHERE id = ?`+suffix), id,
	).Scan(&sale.ID, &sale.StudentID, &soldAt, &sale.Total, &typ, &status, &createdBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	sale.Type = canteen.SaleType(typ)
	sale.Status = canteen.SaleStatus(status)
	sale.CreatedBy = createdBy.String
	sale.SoldAt = parseTime(soldAt)
	sale.CreatedAt = parseTime(createdAt)
	sale.UpdatedAt = parseTime(updatedAt)

	rows, err := q.QueryContext(ctx, d.rebind(`
		SELECT id, product_id, quantity, unit_price
		FROM sale_items WHERE sale_id = ? ORDER BY line_no ASC`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		it := canteen.SaleItem{SaleID: sale.ID}
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		sale.Items = append(sale.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSale returns a sale with its items, or nil if absent.
func (s *Store) GetSale(ctx context.Context, id string) (*canteen.Sale, error) {
	return getSale(ctx, s.db, s.d, id, "")
}

// =============================================================================
// REPORTS
// =============================================================================

// reportWhere builds the shared filter clause for a table alias and its
// timestamp column.
func reportWhere(f canteen.ReportFilter, alias, tsColumn string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.StudentID != "" {
		conds = append(conds, alias+".student_id = ?")
		args = append(args, f.StudentID)
	}
	if !f.Period.Start.IsZero() {
		conds = append(conds, alias+"."+tsColumn+" >= ?")
		args = append(args, formatTime(f.Period.Start))
	}
	if !f.Period.End.IsZero() {
		conds = append(conds, alias+"."+tsColumn+" <= ?")
		args = append(args, formatTime(f.Period.End))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// SalesReport returns sales with student and item details, newest first.
func (s *Store) SalesReport(ctx context.Context, f canteen.ReportFilter) ([]canteen.SaleReportRow, error) {
	where, args := reportWhere(f, "s", "sold_at")
	query := `
		SELECT s.id, s.sold_at, s.total, s.sale_type, s.status, s.created_by,
		       st.name, st.turma, i.quantity, i.unit_price, COALESCE(p.name, i.product_id)
		FROM sales s
		LEFT JOIN students st ON st.id = s.student_id
		LEFT JOIN sale_items i ON i.sale_id = s.id
		LEFT JOIN products p ON p.id = i.product_id` + where + `
		ORDER BY s.sold_at DESC, s.id ASC, i.line_no ASC`

	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales report: %w", err)
	}
	defer rows.Close()

	var out []canteen.SaleReportRow
	for rows.Next() {
		var (
			id, soldAt, typ, status           string
			total                             decimal.Decimal
			createdBy, stName, stGroup, pName sql.NullString
			qty                               sql.NullInt64
			unitPrice                         decimal.NullDecimal
		)
		if err := rows.Scan(&id, &soldAt, &total, &typ, &status, &createdBy,
			&stName, &stGroup, &qty, &unitPrice, &pName); err != nil {
			return nil, fmt.Errorf("failed to scan sales report: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, canteen.SaleReportRow{
				ID:           id,
				SoldAt:       parseTime(soldAt),
				Total:        total,
				Type:         canteen.SaleType(typ),
				Status:       canteen.SaleStatus(status),
				CreatedBy:    createdBy.String,
				StudentName:  stName.String,
				StudentGroup: stGroup.String,
			})
		}
		if qty.Valid {
			last := &out[len(out)-1]
			last.Items = append(last.Items, canteen.ReportItem{
				ProductName: pName.String,
				Quantity:    int(qty.Int64),
				UnitPrice:   unitPrice.Decimal,
			})
		}
	}
	return out, rows.Err()
}

// RechargesReport returns recharges with student details, newest first.
func (s *Store) RechargesReport(ctx context.Context, f canteen.ReportFilter) ([]canteen.RechargeReportRow, error) {
	where, args := reportWhere(f, "r", "created_at")
	query := `
		SELECT r.id, r.created_at, r.amount, r.method, r.created_by, st.name, st.turma
		FROM recharges r
		LEFT JOIN students st ON st.id = r.student_id` + where + `
		ORDER BY r.created_at DESC, r.id ASC`

	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recharges report: %w", err)
	}
	defer rows.Close()

	var out []canteen.RechargeReportRow
	for rows.Next() {
		var (
			r                          canteen.RechargeReportRow
			at, method                 string
			createdBy, stName, stGroup sql.NullString
		)
		if err := rows.Scan(&r.ID, &at, &r.Amount, &method, &createdBy, &stName, &stGroup); err != nil {
			return nil, fmt.Errorf("failed to scan recharges report: %w", err)
		}
		r.At = parseTime(at)
		r.Method = canteen.PaymentMethod(method)
		r.CreatedBy = createdBy.String
		r.StudentName = stName.String
		r.StudentGroup = stGroup.String
		out = append(out, r)
	}
	return out, rows.Err()
}
