/*
sale.go - Sale workflow

PURPOSE:
  Rings up a purchase for a student. Either the sale, its items and the
  balance debit are all committed, or nothing is.

FLOW (inside one store transaction):
  1. Validate input (no store access)
  2. Total = sum(quantity x unit price), exact decimal
  3. Lock the student row; every item must name an existing product
  4. Spent today  + total must fit the daily ceiling
  5. Spent in month + total must fit the monthly ceiling
  6. Classify: credito (debit balance) / fiado (balance untouched) / reject
  7. Insert sale + items, debit balance if credito
  8. Flag low balance against the student's threshold

PRICES:
  Caller-supplied unit prices are authoritative and snapshotted onto the
  items, unless Options.EnforceCatalogPrices is set, in which case each
  price must equal the product's current catalog price.

CONCURRENCY:
  The student row stays locked from step 3 to commit, and the balance
  write is version-checked, so two terminals cannot both spend the same
  balance.
*/
package canteen

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleItemInput is one requested line.
type SaleItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// SaleRequest asks to ring up Items for StudentID on behalf of Actor.
type SaleRequest struct {
	StudentID string
	Items     []SaleItemInput
	Actor     string
}

// SaleResult is the outcome of a committed sale.
type SaleResult struct {
	SaleID     string
	Total      decimal.Decimal
	Type       SaleType
	Balance    decimal.Decimal // balance after the sale
	LowBalance bool
}

// Validate checks the request shape without touching the store.
func (r SaleRequest) Validate() error {
	if strings.TrimSpace(r.StudentID) == "" || len(r.Items) == 0 {
		return invalid("id_aluno", "ID do aluno e itens da venda são obrigatórios.")
	}
	for i, it := range r.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return invalid("itens", fmt.Sprintf("Item %d sem produto.", i+1))
		}
		if it.Quantity <= 0 {
			return invalid("itens", fmt.Sprintf("Quantidade inválida no item %d.", i+1))
		}
		if it.UnitPrice.IsNegative() {
			return invalid("itens", fmt.Sprintf("Valor unitário negativo no item %d.", i+1))
		}
	}
	return nil
}

// PostSale runs the sale workflow.
func (s *Service) PostSale(ctx context.Context, req SaleRequest) (res SaleResult, err error) {
	defer func() {
		s.logOutcome("sale", err,
			zap.String("student_id", req.StudentID),
			zap.String("sale_id", res.SaleID),
			zap.String("type", string(res.Type)),
			zap.String("total", res.Total.String()),
			zap.String("actor", req.Actor),
		)
	}()

	if err := req.Validate(); err != nil {
		return SaleResult{}, err
	}

	now := s.clock.Now()
	sale := Sale{
		ID:        s.newID(),
		StudentID: req.StudentID,
		SoldAt:    now,
		Status:    SaleNormal,
		CreatedBy: req.Actor,
		CreatedAt: now,
		UpdatedAt: now,
		Items:     make([]SaleItem, len(req.Items)),
	}
	for i, in := range req.Items {
		sale.Items[i] = SaleItem{
			ID:        s.newID(),
			SaleID:    sale.ID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
		}
	}
	sale.Total = SaleTotal(sale.Items)

	var out SaleResult
	err = s.store.WithTx(ctx, func(tx Tx) error {
		st, err := tx.LockStudent(ctx, req.StudentID)
		if err != nil {
			return err
		}
		if st == nil {
			return &NotFoundError{Kind: KindStudent, ID: req.StudentID}
		}
		if !st.Active {
			return invalid("id_aluno", fmt.Sprintf("Aluno %s está inativo.", st.Name))
		}
		if err := checkProducts(ctx, tx, sale.Items, s.enforcePrices); err != nil {
			return err
		}

		spentToday, err := tx.SumSales(ctx, st.ID, DayPeriod(now, s.loc))
		if err != nil {
			return err
		}
		if err := CheckLimit(*st, LimitDaily, spentToday, sale.Total); err != nil {
			return err
		}

		spentMonth, err := tx.SumSales(ctx, st.ID, MonthToDate(now, s.loc))
		if err != nil {
			return err
		}
		if err := CheckLimit(*st, LimitMonthly, spentMonth, sale.Total); err != nil {
			return err
		}

		typ, balance, err := Classify(*st, sale.Total)
		if err != nil {
			return err
		}
		sale.Type = typ

		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		if typ == SaleCredito {
			if err := tx.UpdateBalance(ctx, st.ID, st.Version, balance, now); err != nil {
				return err
			}
		}

		out = SaleResult{
			SaleID:     sale.ID,
			Total:      sale.Total,
			Type:       typ,
			Balance:    balance,
			LowBalance: IsLowBalance(*st, balance),
		}
		return nil
	})
	if err != nil {
		return SaleResult{}, wrapStore("post sale", err)
	}
	return out, nil
}

// checkProducts fails with a product NotFoundError for any item naming an
// unknown product. With enforcePrices, the product must also be active and
// priced exactly as the item.
func checkProducts(ctx context.Context, tx Tx, items []SaleItem, enforcePrices bool) error {
	for _, it := range items {
		p, err := tx.GetProduct(ctx, it.ProductID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Kind: KindProduct, ID: it.ProductID}
		}
		if !enforcePrices {
			continue
		}
		if !p.Active {
			return invalid("itens", fmt.Sprintf("Produto %s indisponível.", p.Name))
		}
		if !p.Price.Equal(it.UnitPrice) {
			return invalid("itens", fmt.Sprintf("Preço de %s divergente do catálogo: %s R$ informado, %s R$ cadastrado.",
				p.Name, money(it.UnitPrice), money(p.Price)))
		}
	}
	return nil
}
