/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names follow
  the point-of-sale client (id_aluno, valor_total, novo_saldo_aluno ...),
  so the domain types in package canteen stay free of wire concerns.

NAMING CONVENTION:
  - *DTO:      Response types returned to clients
  - *Request:  Request body types from clients
  - *Response: Workflow results

MONEY:
  decimal.Decimal is encoded as a JSON number and decoded from either a
  number or a string, so 0.1 + 0.2 never goes through float64.

  The init below sets decimal.MarshalJSONWithoutQuotes, which is a
  process-wide switch: every package linked into a binary that imports
  api encodes decimals as bare numbers too.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cantina/canteen"
)

// Process-wide; see MONEY above.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// =============================================================================
// WORKFLOW REQUESTS/RESPONSES
// =============================================================================

type SaleItemRequest struct {
	ProductID string          `json:"id_produto"`
	Quantity  int             `json:"quantidade"`
	UnitPrice decimal.Decimal `json:"valor_unitario"`
}

// SaleRequest is the body of POST /sales.
type SaleRequest struct {
	StudentID string            `json:"id_aluno"`
	Items     []SaleItemRequest `json:"itens"`
	CreatedBy string            `json:"usuario_criou,omitempty"`
}

type SaleResponse struct {
	Message    string          `json:"message"`
	SaleID     string          `json:"id_venda"`
	Total      decimal.Decimal `json:"valor_total"`
	Type       string          `json:"tipo"`
	NewBalance decimal.Decimal `json:"novo_saldo_aluno"`
	LowBalance bool            `json:"saldo_baixo"`
}

// CancelRequest is the body of POST /sales/cancel.
type CancelRequest struct {
	SaleID string `json:"id_venda"`
}

type CancelResponse struct {
	Message    string          `json:"message"`
	SaleID     string          `json:"id_venda"`
	Type       string          `json:"tipo"`
	Refund     decimal.Decimal `json:"valor_estornado"`
	NewBalance decimal.Decimal `json:"novo_saldo_aluno"`
}

// RechargeRequest is the body of POST /recharges. Amount is a pointer so
// a missing value can be told apart from zero.
type RechargeRequest struct {
	StudentID string           `json:"id_aluno"`
	Amount    *decimal.Decimal `json:"valor"`
	Method    string           `json:"forma"`
	CreatedBy string           `json:"usuario_criou,omitempty"`
}

type RechargeResponse struct {
	Message    string          `json:"message"`
	RechargeID string          `json:"id_recarga"`
	NewBalance decimal.Decimal `json:"novo_saldo_aluno"`
}

// =============================================================================
// RESOURCE DTOs
// =============================================================================

// StudentDTO represents a student in API responses.
type StudentDTO struct {
	ID                  string          `json:"id"`
	Name                string          `json:"nome"`
	Group               string          `json:"turma"`
	Code                string          `json:"codigo,omitempty"`
	Balance             decimal.Decimal `json:"saldo_atual"`
	DailyLimit          decimal.Decimal `json:"limite_diario"`
	MonthlyLimit        decimal.Decimal `json:"limite_mensal"`
	AllowCredit         bool            `json:"permite_fiado"`
	LowBalanceThreshold decimal.Decimal `json:"saldo_baixo_limite"`
	Active              bool            `json:"ativo"`
	CreatedAt           string          `json:"created_at"`
	UpdatedAt           string          `json:"updated_at"`
}

// StudentRequest is the body of POST and PUT /students. Absent fields keep
// their default (create) or current value (update).
type StudentRequest struct {
	Name                *string          `json:"nome"`
	Group               *string          `json:"turma"`
	Code                *string          `json:"codigo"`
	DailyLimit          *decimal.Decimal `json:"limite_diario"`
	MonthlyLimit        *decimal.Decimal `json:"limite_mensal"`
	AllowCredit         *bool            `json:"permite_fiado"`
	LowBalanceThreshold *decimal.Decimal `json:"saldo_baixo_limite"`
	Active              *bool            `json:"ativo"`
}

type ProductDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"nome"`
	Price     decimal.Decimal `json:"preco"`
	Active    bool            `json:"ativo"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type SaleItemDTO struct {
	ID        string          `json:"id"`
	ProductID string          `json:"id_produto"`
	Quantity  int             `json:"quantidade"`
	UnitPrice decimal.Decimal `json:"valor_unitario"`
}

type SaleDTO struct {
	ID        string          `json:"id"`
	StudentID string          `json:"id_aluno"`
	SoldAt    string          `json:"data_hora"`
	Total     decimal.Decimal `json:"valor_total"`
	Type      string          `json:"tipo"`
	Status    string          `json:"status"`
	CreatedBy string          `json:"usuario_criou,omitempty"`
	Items     []SaleItemDTO   `json:"itens_venda"`
}

// =============================================================================
// REPORT DTOs
// =============================================================================

type SaleReportDTO struct {
	ID           string          `json:"id"`
	SoldAt       string          `json:"data_hora"`
	Total        decimal.Decimal `json:"valor_total"`
	Type         string          `json:"tipo"`
	Status       string          `json:"status"`
	CreatedBy    string          `json:"usuario_criou,omitempty"`
	StudentName  string          `json:"aluno_nome"`
	StudentGroup string          `json:"aluno_turma"`
	Items        string          `json:"itens"`
}

type RechargeReportDTO struct {
	ID           string          `json:"id"`
	At           string          `json:"data_hora"`
	Amount       decimal.Decimal `json:"valor"`
	Method       string          `json:"forma"`
	CreatedBy    string          `json:"usuario_criou,omitempty"`
	StudentName  string          `json:"aluno_nome"`
	StudentGroup string          `json:"aluno_turma"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(time.RFC3339)
}

func toStudentDTO(st canteen.Student, loc *time.Location) StudentDTO {
	return StudentDTO{
		ID:                  st.ID,
		Name:                st.Name,
		Group:               st.Group,
		Code:                st.Code,
		Balance:             st.Balance,
		DailyLimit:          st.DailyLimit,
		MonthlyLimit:        st.MonthlyLimit,
		AllowCredit:         st.AllowCredit,
		LowBalanceThreshold: st.LowBalanceThreshold,
		Active:              st.Active,
		CreatedAt:           formatTime(st.CreatedAt, loc),
		UpdatedAt:           formatTime(st.UpdatedAt, loc),
	}
}

func toStudentDTOs(list []canteen.Student, loc *time.Location) []StudentDTO {
	dtos := make([]StudentDTO, len(list))
	for i, st := range list {
		dtos[i] = toStudentDTO(st, loc)
	}
	return dtos
}

func (r StudentRequest) toInput() canteen.StudentInput {
	return canteen.StudentInput{
		Name:                r.Name,
		Group:               r.Group,
		Code:                r.Code,
		DailyLimit:          r.DailyLimit,
		MonthlyLimit:        r.MonthlyLimit,
		AllowCredit:         r.AllowCredit,
		LowBalanceThreshold: r.LowBalanceThreshold,
		Active:              r.Active,
	}
}

func toProductDTO(p canteen.Product, loc *time.Location) ProductDTO {
	return ProductDTO{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Active:    p.Active,
		CreatedAt: formatTime(p.CreatedAt, loc),
		UpdatedAt: formatTime(p.UpdatedAt, loc),
	}
}

func toSaleDTO(s canteen.Sale, loc *time.Location) SaleDTO {
	items := make([]SaleItemDTO, len(s.Items))
	for i, it := range s.Items {
		items[i] = SaleItemDTO{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return SaleDTO{
		ID:        s.ID,
		StudentID: s.StudentID,
		SoldAt:    formatTime(s.SoldAt, loc),
		Total:     s.Total,
		Type:      string(s.Type),
		Status:    string(s.Status),
		CreatedBy: s.CreatedBy,
		Items:     items,
	}
}

func toSaleReportDTOs(rows []canteen.SaleReportRow, loc *time.Location) []SaleReportDTO {
	dtos := make([]SaleReportDTO, len(rows))
	for i, r := range rows {
		dtos[i] = SaleReportDTO{
			ID:           r.ID,
			SoldAt:       formatTime(r.SoldAt, loc),
			Total:        r.Total,
			Type:         string(r.Type),
			Status:       string(r.Status),
			CreatedBy:    r.CreatedBy,
			StudentName:  r.StudentName,
			StudentGroup: r.StudentGroup,
			Items:        r.ItemSummary(),
		}
	}
	return dtos
}

func toRechargeReportDTOs(rows []canteen.RechargeReportRow, loc *time.Location) []RechargeReportDTO {
	dtos := make([]RechargeReportDTO, len(rows))
	for i, r := range rows {
		dtos[i] = RechargeReportDTO{
			ID:           r.ID,
			At:           formatTime(r.At, loc),
			Amount:       r.Amount,
			Method:       string(r.Method),
			CreatedBy:    r.CreatedBy,
			StudentName:  r.StudentName,
			StudentGroup: r.StudentGroup,
		}
	}
	return dtos
}
