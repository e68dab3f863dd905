package sqlstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cantina/canteen"
	"github.com/warp/cantina/store/sqlstore"
)

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedStudent(t *testing.T, store *sqlstore.Store, id, code string, balance int64, allowCredit bool) {
	t.Helper()
	require.NoError(t, store.CreateStudent(context.Background(), canteen.Student{
		ID:                  id,
		Name:                "Aluno " + id,
		Group:               "5A",
		Code:                code,
		Balance:             decimal.NewFromInt(balance),
		DailyLimit:          decimal.Zero,
		MonthlyLimit:        decimal.Zero,
		AllowCredit:         allowCredit,
		LowBalanceThreshold: canteen.DefaultLowBalanceThreshold,
		Active:              true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}))
}

func seedProduct(t *testing.T, store *sqlstore.Store, id, name string, price int64) {
	t.Helper()
	require.NoError(t, store.SaveProduct(context.Background(), canteen.Product{
		ID: id, Name: name, Price: decimal.NewFromInt(price), Active: true, CreatedAt: now, UpdatedAt: now,
	}))
}

func TestStudent_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.CreateStudent(ctx, canteen.Student{
		ID:                  "st-1",
		Name:                "Ana",
		Group:               "5A",
		Code:                "RA1",
		Balance:             decimal.RequireFromString("12.34"),
		DailyLimit:          decimal.RequireFromString("20"),
		MonthlyLimit:        decimal.RequireFromString("300.50"),
		AllowCredit:         false,
		LowBalanceThreshold: decimal.RequireFromString("5"),
		Active:              true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}))

	st, err := store.GetStudent(ctx, "st-1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "Ana", st.Name)
	assert.Equal(t, "RA1", st.Code)
	assert.True(t, st.Balance.Equal(decimal.RequireFromString("12.34")))
	assert.True(t, st.MonthlyLimit.Equal(decimal.RequireFromString("300.5")))
	assert.False(t, st.AllowCredit)
	assert.True(t, st.Active)
	assert.True(t, st.CreatedAt.Equal(now))

	missing, err := store.GetStudent(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateStudent_DuplicateCode(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "st-1", "RA1", 0, true)

	err := store.CreateStudent(ctx, canteen.Student{ID: "st-2", Name: "B", Group: "1", Code: "RA1", CreatedAt: now, UpdatedAt: now})
	var dupErr *canteen.DuplicateCodeError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "RA1", dupErr.Code)

	// NULL codes do not collide.
	seedStudent(t, store, "st-3", "", 0, true)
	seedStudent(t, store, "st-4", "", 0, true)
}

func TestUpdateStudentProfile_KeepsBalance(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "st-1", "", 50, true)

	st, err := store.GetStudent(ctx, "st-1")
	require.NoError(t, err)
	st.Name = "Renamed"
	st.Balance = decimal.Zero
	require.NoError(t, store.UpdateStudentProfile(ctx, *st))

	got, err := store.GetStudent(ctx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(50)))

	err = store.UpdateStudentProfile(ctx, canteen.Student{ID: "missing"})
	assert.ErrorIs(t, err, canteen.ErrNotFound)
}

func TestListStudents_SearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "b", "", 0, true)
	seedStudent(t, store, "a", "", 0, true)

	all, err := store.ListStudents(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Aluno a", all[0].Name)

	hit, err := store.ListStudents(ctx, "ALUNO B")
	require.NoError(t, err)
	require.Len(t, hit, 1)

	none, err := store.ListStudents(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveProduct_Upsert(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	p := canteen.Product{ID: "p1", Name: "Suco", Price: decimal.RequireFromString("3.50"), Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.SaveProduct(ctx, p))

	p.Price = decimal.RequireFromString("4")
	p.Active = false
	require.NoError(t, store.SaveProduct(ctx, p))

	got, err := store.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(4)))

	active, err := store.ListProducts(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTx_SaleLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "st-1", "", 50, true)
	seedProduct(t, store, "suco", "Suco", 3)
	seedProduct(t, store, "pao", "Pão", 4)

	sale := canteen.Sale{
		ID: "s1", StudentID: "st-1", SoldAt: now, Total: decimal.RequireFromString("11"),
		Type: canteen.SaleCredito, Status: canteen.SaleNormal, CreatedBy: "caixa1",
		CreatedAt: now, UpdatedAt: now,
		Items: []canteen.SaleItem{
			{ID: "i1", SaleID: "s1", ProductID: "suco", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50")},
			{ID: "i2", SaleID: "s1", ProductID: "pao", Quantity: 1, UnitPrice: decimal.RequireFromString("4")},
		},
	}

	err := store.WithTx(ctx, func(tx canteen.Tx) error {
		st, err := tx.LockStudent(ctx, "st-1")
		require.NoError(t, err)
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, st.ID, st.Version, st.Balance.Sub(sale.Total), now)
	})
	require.NoError(t, err)

	got, err := store.GetSale(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "suco", got.Items[0].ProductID)
	assert.Equal(t, "caixa1", got.CreatedBy)
	assert.Equal(t, canteen.SaleCredito, got.Type)

	st, err := store.GetStudent(ctx, "st-1")
	require.NoError(t, err)
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(39)))
	assert.Equal(t, int64(1), st.Version)

	err = store.WithTx(ctx, func(tx canteen.Tx) error {
		day := canteen.DayPeriod(now, time.UTC)
		sum, err := tx.SumSales(ctx, "st-1", day)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.NewFromInt(11)))

		ok, err := tx.CancelSale(ctx, "s1", now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.CancelSale(ctx, "s1", now)
		require.NoError(t, err)
		assert.False(t, ok)

		sum, err = tx.SumSales(ctx, "st-1", day)
		require.NoError(t, err)
		assert.True(t, sum.IsZero(), "cancelled sales are excluded")
		return nil
	})
	require.NoError(t, err)
}

func TestTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "st-1", "", 50, true)

	err := store.WithTx(ctx, func(tx canteen.Tx) error {
		require.NoError(t, tx.UpdateBalance(ctx, "st-1", 0, decimal.Zero, now))
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	st, err := store.GetStudent(ctx, "st-1")
	require.NoError(t, err)
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(50)))
}

func TestUpdateBalance_StaleVersion(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "st-1", "", 50, true)

	err := store.WithTx(ctx, func(tx canteen.Tx) error {
		return tx.UpdateBalance(ctx, "st-1", 3, decimal.Zero, now)
	})
	assert.ErrorIs(t, err, canteen.ErrConcurrentModification)
}

func TestConcurrentSales_NeverOverdraw(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "st-1", "", 50, false)
	seedProduct(t, store, "p", "Lanche", 10)

	svc := canteen.NewService(store, canteen.Options{Clock: &canteen.FixedClock{T: now}})

	// GIVEN: ten terminals each selling 10 against a balance of 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PostSale(ctx, canteen.SaleRequest{
				StudentID: "st-1",
				Items:     []canteen.SaleItemInput{{ProductID: "p", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, canteen.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	// THEN: exactly five succeed and the balance lands on zero
	assert.Equal(t, 5, succeeded)
	st, err := store.GetStudent(ctx, "st-1")
	require.NoError(t, err)
	assert.True(t, st.Balance.IsZero(), "balance = %s", st.Balance)
}

func TestInsertSale_UnknownProductRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "st-1", "", 50, true)
	seedProduct(t, store, "suco", "Suco", 3)

	// WHEN: a sale line names a product that is not in the catalog
	err := store.WithTx(ctx, func(tx canteen.Tx) error {
		st, err := tx.LockStudent(ctx, "st-1")
		require.NoError(t, err)
		if err := tx.UpdateBalance(ctx, st.ID, st.Version, decimal.NewFromInt(40), now); err != nil {
			return err
		}
		return tx.InsertSale(ctx, canteen.Sale{
			ID: "s1", StudentID: "st-1", SoldAt: now, Total: decimal.NewFromInt(10),
			Type: canteen.SaleCredito, Status: canteen.SaleNormal, CreatedAt: now, UpdatedAt: now,
			Items: []canteen.SaleItem{
				{ID: "i1", SaleID: "s1", ProductID: "suco", Quantity: 1, UnitPrice: decimal.NewFromInt(3)},
				{ID: "i2", SaleID: "s1", ProductID: "does-not-exist", Quantity: 1, UnitPrice: decimal.NewFromInt(7)},
			},
		})
	})

	// THEN: the foreign key rejects it and the whole transaction rolls back
	var nf *canteen.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, canteen.KindProduct, nf.Kind)
	assert.Equal(t, "does-not-exist", nf.ID)

	sale, err := store.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, sale)
	st, err := store.GetStudent(ctx, "st-1")
	require.NoError(t, err)
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(50)))

	// AND: the service reports the same error without touching the store
	svc := canteen.NewService(store, canteen.Options{Clock: &canteen.FixedClock{T: now}})
	_, err = svc.PostSale(ctx, canteen.SaleRequest{
		StudentID: "st-1",
		Items:     []canteen.SaleItemInput{{ProductID: "does-not-exist", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
	})
	assert.ErrorIs(t, err, canteen.ErrNotFound)
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "st-1", "", 100, true)
	seedStudent(t, store, "st-2", "", 100, true)
	seedProduct(t, store, "suco", "Suco", 3)
	seedProduct(t, store, "bala", "Bala", 1)

	insert := func(id, studentID string, at time.Time, items ...canteen.SaleItem) {
		require.NoError(t, store.WithTx(ctx, func(tx canteen.Tx) error {
			return tx.InsertSale(ctx, canteen.Sale{
				ID: id, StudentID: studentID, SoldAt: at, Total: canteen.SaleTotal(items),
				Type: canteen.SaleFiado, Status: canteen.SaleNormal, CreatedAt: at, UpdatedAt: at, Items: items,
			})
		}))
	}
	insert("s1", "st-1", now,
		canteen.SaleItem{ID: "i1", ProductID: "suco", Quantity: 2, UnitPrice: decimal.NewFromInt(3)},
		canteen.SaleItem{ID: "i2", ProductID: "bala", Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
	)
	insert("s2", "st-1", now.Add(time.Hour),
		canteen.SaleItem{ID: "i3", ProductID: "suco", Quantity: 1, UnitPrice: decimal.NewFromInt(3)},
	)
	insert("s3", "st-2", now.Add(48*time.Hour),
		canteen.SaleItem{ID: "i4", ProductID: "suco", Quantity: 1, UnitPrice: decimal.NewFromInt(3)},
	)
	require.NoError(t, store.WithTx(ctx, func(tx canteen.Tx) error {
		return tx.InsertRecharge(ctx, canteen.Recharge{ID: "r1", StudentID: "st-2", Amount: decimal.NewFromInt(20), Method: canteen.PaymentPix, CreatedBy: "sec", At: now})
	}))

	rows, err := store.SalesReport(ctx, canteen.ReportFilter{StudentID: "st-1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "s2", rows[0].ID, "newest first")
	require.Len(t, rows[1].Items, 2)
	assert.Equal(t, "2x Suco (3.00); 1x Bala (1.00)", rows[1].ItemSummary())
	assert.Equal(t, "Aluno st-1", rows[1].StudentName)

	day, err := store.SalesReport(ctx, canteen.ReportFilter{Period: canteen.DayPeriod(now.Add(48*time.Hour), time.UTC)})
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, "s3", day[0].ID)

	recharges, err := store.RechargesReport(ctx, canteen.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, recharges, 1)
	assert.Equal(t, canteen.PaymentPix, recharges[0].Method)
	assert.True(t, recharges[0].Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "sec", recharges[0].CreatedBy)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedStudent(t, store, "st-1", "", 0, true)

	require.NoError(t, store.Reset(ctx))
	list, err := store.ListStudents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, store.Ping(ctx))
}
