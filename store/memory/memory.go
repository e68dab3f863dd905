// Package memory provides an in-memory canteen.Store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cantina/canteen"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps all rows in maps. WithTx works on a private copy and swaps it
// in on success, so a failed workflow leaves no trace. Transactions are
// serialized by the store mutex.
type Memory struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	students  map[string]canteen.Student
	products  map[string]canteen.Product
	sales     map[string]canteen.Sale
	recharges []canteen.Recharge
}

func newState() *state {
	return &state{
		students: make(map[string]canteen.Student),
		products: make(map[string]canteen.Product),
		sales:    make(map[string]canteen.Sale),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.sales {
		v.Items = append([]canteen.SaleItem(nil), v.Items...)
		c.sales[k] = v
	}
	c.recharges = append([]canteen.Recharge(nil), s.recharges...)
	return c
}

func New() *Memory {
	return &Memory{state: newState()}
}

var (
	_ canteen.Store    = (*Memory)(nil)
	_ canteen.Resetter = (*Memory)(nil)
)

// WithTx runs fn against a copy of the data and commits it if fn succeeds.
func (m *Memory) WithTx(ctx context.Context, fn func(canteen.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// Reset clears all data.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newState()
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

// =============================================================================
// STUDENTS & PRODUCTS
// =============================================================================

func (m *Memory) GetStudent(_ context.Context, id string) (*canteen.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.state.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *Memory) ListStudents(_ context.Context, search string) ([]canteen.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(search)
	var out []canteen.Student
	for _, st := range m.state.students {
		if needle != "" &&
			!strings.Contains(strings.ToLower(st.Name), needle) &&
			!strings.Contains(strings.ToLower(st.Group), needle) {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) codeTaken(code, exceptID string) bool {
	if code == "" {
		return false
	}
	for _, st := range m.state.students {
		if st.Code == code && st.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *Memory) CreateStudent(_ context.Context, st canteen.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codeTaken(st.Code, st.ID) {
		return &canteen.DuplicateCodeError{Code: st.Code}
	}
	m.state.students[st.ID] = st
	return nil
}

func (m *Memory) UpdateStudentProfile(_ context.Context, st canteen.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.state.students[st.ID]
	if !ok {
		return &canteen.NotFoundError{Kind: canteen.KindStudent, ID: st.ID}
	}
	if m.codeTaken(st.Code, st.ID) {
		return &canteen.DuplicateCodeError{Code: st.Code}
	}
	st.Balance = cur.Balance
	st.Version = cur.Version
	st.CreatedAt = cur.CreatedAt
	m.state.students[st.ID] = st
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id string) (*canteen.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.product(id), nil
}

func (m *Memory) ListProducts(_ context.Context, activeOnly bool) ([]canteen.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []canteen.Product
	for _, p := range m.state.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SaveProduct(_ context.Context, p canteen.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[p.ID] = p
	return nil
}

func (m *Memory) GetSale(_ context.Context, id string) (*canteen.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.sale(id), nil
}

// =============================================================================
// REPORTS
// =============================================================================

func inPeriod(t time.Time, p canteen.Period) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

func (m *Memory) SalesReport(_ context.Context, f canteen.ReportFilter) ([]canteen.SaleReportRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []canteen.SaleReportRow
	for _, sale := range m.state.sales {
		if f.StudentID != "" && sale.StudentID != f.StudentID {
			continue
		}
		if !inPeriod(sale.SoldAt, f.Period) {
			continue
		}
		st := m.state.students[sale.StudentID]
		row := canteen.SaleReportRow{
			ID:           sale.ID,
			SoldAt:       sale.SoldAt,
			Total:        sale.Total,
			Type:         sale.Type,
			Status:       sale.Status,
			CreatedBy:    sale.CreatedBy,
			StudentName:  st.Name,
			StudentGroup: st.Group,
		}
		for _, it := range sale.Items {
			row.Items = append(row.Items, canteen.ReportItem{
				ProductName: m.state.products[it.ProductID].Name,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
			})
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SoldAt.After(out[j].SoldAt) })
	return out, nil
}

func (m *Memory) RechargesReport(_ context.Context, f canteen.ReportFilter) ([]canteen.RechargeReportRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []canteen.RechargeReportRow
	for _, r := range m.state.recharges {
		if f.StudentID != "" && r.StudentID != f.StudentID {
			continue
		}
		if !inPeriod(r.At, f.Period) {
			continue
		}
		st := m.state.students[r.StudentID]
		out = append(out, canteen.RechargeReportRow{
			ID:           r.ID,
			At:           r.At,
			Amount:       r.Amount,
			Method:       r.Method,
			CreatedBy:    r.CreatedBy,
			StudentName:  st.Name,
			StudentGroup: st.Group,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

func (s *state) product(id string) *canteen.Product {
	p, ok := s.products[id]
	if !ok {
		return nil
	}
	return &p
}

func (s *state) sale(id string) *canteen.Sale {
	sale, ok := s.sales[id]
	if !ok {
		return nil
	}
	sale.Items = append([]canteen.SaleItem(nil), sale.Items...)
	return &sale
}

type memTx struct {
	s *state
}

func (t *memTx) LockStudent(_ context.Context, id string) (*canteen.Student, error) {
	st, ok := t.s.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (t *memTx) LockSale(_ context.Context, id string) (*canteen.Sale, error) {
	return t.s.sale(id), nil
}

func (t *memTx) GetProduct(_ context.Context, id string) (*canteen.Product, error) {
	return t.s.product(id), nil
}

func (t *memTx) SumSales(_ context.Context, studentID string, p canteen.Period) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, sale := range t.s.sales {
		if sale.StudentID != studentID || sale.Status != canteen.SaleNormal {
			continue
		}
		if p.Contains(sale.SoldAt) {
			sum = sum.Add(sale.Total)
		}
	}
	return sum, nil
}

// InsertSale rejects items whose product is not in the catalog, as the
// foreign key does in sqlstore.
func (t *memTx) InsertSale(_ context.Context, sale canteen.Sale) error {
	for _, it := range sale.Items {
		if _, ok := t.s.products[it.ProductID]; !ok {
			return &canteen.NotFoundError{Kind: canteen.KindProduct, ID: it.ProductID}
		}
	}
	t.s.sales[sale.ID] = sale
	return nil
}

func (t *memTx) CancelSale(_ context.Context, id string, at time.Time) (bool, error) {
	sale, ok := t.s.sales[id]
	if !ok || sale.Status != canteen.SaleNormal {
		return false, nil
	}
	sale.Status = canteen.SaleCancelled
	sale.UpdatedAt = at
	t.s.sales[id] = sale
	return true, nil
}

func (t *memTx) UpdateBalance(_ context.Context, studentID string, version int64, balance decimal.Decimal, at time.Time) error {
	st, ok := t.s.students[studentID]
	if !ok || st.Version != version {
		return canteen.ErrConcurrentModification
	}
	st.Balance = balance
	st.Version++
	st.UpdatedAt = at
	t.s.students[studentID] = st
	return nil
}

func (t *memTx) InsertRecharge(_ context.Context, r canteen.Recharge) error {
	t.s.recharges = append(t.s.recharges, r)
	return nil
}
