package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cantina/canteen"
	"github.com/warp/cantina/store/memory"
)

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, m *memory.Memory) {
	t.Helper()
	require.NoError(t, m.CreateStudent(context.Background(), canteen.Student{
		ID: "st-1", Name: "Ana", Group: "5A", Code: "RA1",
		Balance: decimal.NewFromInt(50), AllowCredit: true, Active: true,
	}))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	seed(t, m)

	// WHEN: a transaction writes and then fails
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx canteen.Tx) error {
		require.NoError(t, tx.UpdateBalance(ctx, "st-1", 0, decimal.NewFromInt(10), now))
		require.NoError(t, tx.InsertSale(ctx, canteen.Sale{ID: "s1", StudentID: "st-1", Status: canteen.SaleNormal}))
		return boom
	})

	// THEN: nothing it did is visible
	assert.ErrorIs(t, err, boom)
	st, err := m.GetStudent(ctx, "st-1")
	require.NoError(t, err)
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(0), st.Version)

	sale, err := m.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, sale)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	seed(t, m)

	err := m.WithTx(ctx, func(tx canteen.Tx) error {
		return tx.UpdateBalance(ctx, "st-1", 0, decimal.NewFromInt(20), now)
	})
	require.NoError(t, err)

	st, err := m.GetStudent(ctx, "st-1")
	require.NoError(t, err)
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, int64(1), st.Version)
}

func TestUpdateBalance_StaleVersion(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	seed(t, m)

	err := m.WithTx(ctx, func(tx canteen.Tx) error {
		return tx.UpdateBalance(ctx, "st-1", 7, decimal.Zero, now)
	})
	assert.ErrorIs(t, err, canteen.ErrConcurrentModification)
}

func TestCancelSale_OnlyFromNormal(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	seed(t, m)

	err := m.WithTx(ctx, func(tx canteen.Tx) error {
		if err := tx.InsertSale(ctx, canteen.Sale{ID: "s1", StudentID: "st-1", Status: canteen.SaleNormal, Total: decimal.NewFromInt(5), SoldAt: now}); err != nil {
			return err
		}
		ok, err := tx.CancelSale(ctx, "s1", now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.CancelSale(ctx, "s1", now)
		require.NoError(t, err)
		assert.False(t, ok)

		sum, err := tx.SumSales(ctx, "st-1", canteen.DayPeriod(now, time.UTC))
		require.NoError(t, err)
		assert.True(t, sum.IsZero())
		return nil
	})
	require.NoError(t, err)
}

func TestCreateStudent_DuplicateCode(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	seed(t, m)

	err := m.CreateStudent(ctx, canteen.Student{ID: "st-2", Name: "Bia", Group: "5A", Code: "RA1"})
	assert.ErrorIs(t, err, canteen.ErrDuplicateCode)

	// Empty codes never collide.
	require.NoError(t, m.CreateStudent(ctx, canteen.Student{ID: "st-3", Name: "C", Group: "1"}))
	require.NoError(t, m.CreateStudent(ctx, canteen.Student{ID: "st-4", Name: "D", Group: "1"}))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	seed(t, m)

	require.NoError(t, m.Reset(ctx))
	list, err := m.ListStudents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInsertSale_RejectsUnknownProduct(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	seed(t, m)
	require.NoError(t, m.SaveProduct(ctx, canteen.Product{ID: "suco", Name: "Suco", Price: decimal.NewFromInt(3), Active: true}))

	err := m.WithTx(ctx, func(tx canteen.Tx) error {
		return tx.InsertSale(ctx, canteen.Sale{
			ID: "s1", StudentID: "st-1", Status: canteen.SaleNormal, SoldAt: now,
			Items: []canteen.SaleItem{
				{ID: "i1", ProductID: "suco", Quantity: 1, UnitPrice: decimal.NewFromInt(3)},
				{ID: "i2", ProductID: "ghost", Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
			},
		})
	})

	var nf *canteen.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, canteen.KindProduct, nf.Kind)
	assert.Equal(t, "ghost", nf.ID)

	sale, err := m.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, sale)
}
