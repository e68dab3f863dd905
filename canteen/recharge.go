package canteen

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RechargeRequest struct {
	StudentID string
	Amount    decimal.Decimal
	Method    PaymentMethod
	Actor     string
}

type RechargeResult struct {
	RechargeID string
	Balance    decimal.Decimal
}

func (r RechargeRequest) Validate() error {
	if strings.TrimSpace(r.StudentID) == "" || r.Method == "" {
		return invalid("id_aluno", "ID do aluno, valor e forma de pagamento são obrigatórios.")
	}
	if !r.Amount.IsPositive() {
		return invalid("valor", "Valor da recarga deve ser um número positivo.")
	}
	if !r.Method.Valid() {
		return invalid("forma", "Forma de pagamento inválida (use pix, dinheiro ou cartao).")
	}
	return nil
}

// Recharge adds Amount to the student's balance and appends the audit
// record in the same transaction.
func (s *Service) Recharge(ctx context.Context, req RechargeRequest) (res RechargeResult, err error) {
	defer func() {
		s.logOutcome("recharge", err,
			zap.String("student_id", req.StudentID),
			zap.String("amount", req.Amount.String()),
			zap.String("method", string(req.Method)),
			zap.String("actor", req.Actor),
		)
	}()

	if err := req.Validate(); err != nil {
		return RechargeResult{}, err
	}

	now := s.clock.Now()
	rec := Recharge{
		ID:        s.newID(),
		StudentID: req.StudentID,
		Amount:    req.Amount,
		Method:    req.Method,
		CreatedBy: req.Actor,
		At:        now,
	}

	var out RechargeResult
	err = s.store.WithTx(ctx, func(tx Tx) error {
		st, err := tx.LockStudent(ctx, req.StudentID)
		if err != nil {
			return err
		}
		if st == nil {
			return &NotFoundError{Kind: KindStudent, ID: req.StudentID}
		}
		balance := st.Balance.Add(req.Amount)
		if err := tx.UpdateBalance(ctx, st.ID, st.Version, balance, now); err != nil {
			return err
		}
		if err := tx.InsertRecharge(ctx, rec); err != nil {
			return err
		}
		out = RechargeResult{RechargeID: rec.ID, Balance: balance}
		return nil
	})
	if err != nil {
		return RechargeResult{}, wrapStore("recharge", err)
	}
	return out, nil
}
