package canteen

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CancelResult is the outcome of a committed cancellation.
type CancelResult struct {
	SaleID  string
	Type    SaleType
	Refund  decimal.Decimal // zero for fiado sales
	Balance decimal.Decimal // student balance after the refund
}

// CancelSale reverses a posted sale: status becomes cancelada and, for
// credito sales, the total goes back onto the student's current balance.
// Cancelling twice fails with AlreadyCancelledError and changes nothing.
func (s *Service) CancelSale(ctx context.Context, saleID string) (res CancelResult, err error) {
	defer func() {
		s.logOutcome("cancel", err,
			zap.String("sale_id", saleID),
			zap.String("type", string(res.Type)),
			zap.String("refund", res.Refund.String()),
		)
	}()

	if strings.TrimSpace(saleID) == "" {
		return CancelResult{}, invalid("id_venda", "ID da venda é obrigatório para cancelamento.")
	}

	now := s.clock.Now()
	var out CancelResult
	err = s.store.WithTx(ctx, func(tx Tx) error {
		sale, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return &NotFoundError{Kind: KindSale, ID: saleID}
		}
		if sale.Status == SaleCancelled {
			return &AlreadyCancelledError{SaleID: saleID}
		}

		ok, err := tx.CancelSale(ctx, saleID, now)
		if err != nil {
			return err
		}
		if !ok {
			return &AlreadyCancelledError{SaleID: saleID}
		}

		// Refund against the balance as it is now, not as it was at sale time.
		st, err := tx.LockStudent(ctx, sale.StudentID)
		if err != nil {
			return err
		}
		if st == nil {
			return &NotFoundError{Kind: KindStudent, ID: sale.StudentID}
		}
		balance := Refund(*sale, st.Balance)
		if sale.Type == SaleCredito {
			if err := tx.UpdateBalance(ctx, st.ID, st.Version, balance, now); err != nil {
				return err
			}
		}

		out = CancelResult{
			SaleID:  saleID,
			Type:    sale.Type,
			Refund:  balance.Sub(st.Balance),
			Balance: balance,
		}
		return nil
	})
	if err != nil {
		return CancelResult{}, wrapStore("cancel sale", err)
	}
	return out, nil
}
