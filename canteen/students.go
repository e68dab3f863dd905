package canteen

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// STUDENTS
// =============================================================================

// StudentInput carries profile fields for create and update. Nil pointers
// mean "not provided": defaults on create, unchanged on update. The balance
// is never settable here; only recharges, sales and cancellations move it.
type StudentInput struct {
	Name                *string
	Group               *string
	Code                *string
	DailyLimit          *decimal.Decimal
	MonthlyLimit        *decimal.Decimal
	AllowCredit         *bool
	LowBalanceThreshold *decimal.Decimal
	Active              *bool
}

func (in StudentInput) apply(st *Student) error {
	if in.Name != nil {
		st.Name = strings.TrimSpace(*in.Name)
	}
	if in.Group != nil {
		st.Group = strings.TrimSpace(*in.Group)
	}
	if in.Code != nil {
		st.Code = strings.TrimSpace(*in.Code)
	}
	if in.DailyLimit != nil {
		st.DailyLimit = *in.DailyLimit
	}
	if in.MonthlyLimit != nil {
		st.MonthlyLimit = *in.MonthlyLimit
	}
	if in.AllowCredit != nil {
		st.AllowCredit = *in.AllowCredit
	}
	if in.LowBalanceThreshold != nil {
		st.LowBalanceThreshold = *in.LowBalanceThreshold
	}
	if in.Active != nil {
		st.Active = *in.Active
	}

	if st.Name == "" || st.Group == "" {
		return invalid("nome", "Nome e Turma são campos obrigatórios.")
	}
	if st.DailyLimit.IsNegative() || st.MonthlyLimit.IsNegative() {
		return invalid("limite", "Limites não podem ser negativos.")
	}
	if st.LowBalanceThreshold.IsNegative() {
		return invalid("saldo_baixo_limite", "Limite de saldo baixo não pode ser negativo.")
	}
	return nil
}

// CreateStudent registers a student with a zero balance.
func (s *Service) CreateStudent(ctx context.Context, in StudentInput) (*Student, error) {
	now := s.clock.Now()
	st := Student{
		ID:                  s.newID(),
		Balance:             decimal.Zero,
		DailyLimit:          decimal.Zero,
		MonthlyLimit:        decimal.Zero,
		AllowCredit:         true,
		LowBalanceThreshold: DefaultLowBalanceThreshold,
		Active:              true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := in.apply(&st); err != nil {
		return nil, err
	}
	if err := s.store.CreateStudent(ctx, st); err != nil {
		return nil, wrapStore("create student", err)
	}
	s.log.Info("student created", zap.String("student_id", st.ID), zap.String("name", st.Name))
	return &st, nil
}

// UpdateStudent applies in to the stored student.
func (s *Service) UpdateStudent(ctx context.Context, id string, in StudentInput) (*Student, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "ID do aluno inválido.")
	}
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return nil, wrapStore("get student", err)
	}
	if st == nil {
		return nil, &NotFoundError{Kind: KindStudent, ID: id}
	}
	if err := in.apply(st); err != nil {
		return nil, err
	}
	st.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateStudentProfile(ctx, *st); err != nil {
		return nil, wrapStore("update student", err)
	}
	return st, nil
}

func (s *Service) GetStudent(ctx context.Context, id string) (*Student, error) {
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return nil, wrapStore("get student", err)
	}
	if st == nil {
		return nil, &NotFoundError{Kind: KindStudent, ID: id}
	}
	return st, nil
}

func (s *Service) ListStudents(ctx context.Context, search string) ([]Student, error) {
	list, err := s.store.ListStudents(ctx, strings.TrimSpace(search))
	return list, wrapStore("list students", err)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	list, err := s.store.ListProducts(ctx, activeOnly)
	return list, wrapStore("list products", err)
}

// CreateProduct adds an active product to the catalog.
func (s *Service) CreateProduct(ctx context.Context, name string, price decimal.Decimal) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("nome", "Nome do produto é obrigatório.")
	}
	if price.IsNegative() {
		return nil, invalid("preco", "Preço não pode ser negativo.")
	}
	now := s.clock.Now()
	p := Product{ID: s.newID(), Name: name, Price: price, Active: true, CreatedAt: now, UpdatedAt: now}
	if err := s.store.SaveProduct(ctx, p); err != nil {
		return nil, wrapStore("save product", err)
	}
	return &p, nil
}

// GetSale returns a sale with its items.
func (s *Service) GetSale(ctx context.Context, id string) (*Sale, error) {
	sale, err := s.store.GetSale(ctx, id)
	if err != nil {
		return nil, wrapStore("get sale", err)
	}
	if sale == nil {
		return nil, &NotFoundError{Kind: KindSale, ID: id}
	}
	return sale, nil
}
