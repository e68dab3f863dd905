package canteen

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT ROWS
// =============================================================================

// ReportFilter narrows sales and recharge reports. Zero fields don't filter.
type ReportFilter struct {
	StudentID string
	Period    Period
}

// ReportQuery is the caller-facing form of ReportFilter with calendar dates
// (YYYY-MM-DD) interpreted in the service time zone.
type ReportQuery struct {
	StudentID string
	StartDate string
	EndDate   string
}

type ReportItem struct {
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type SaleReportRow struct {
	ID           string
	SoldAt       time.Time
	Total        decimal.Decimal
	Type         SaleType
	Status       SaleStatus
	CreatedBy    string
	StudentName  string
	StudentGroup string
	Items        []ReportItem
}

// ItemSummary renders items as "2x Suco (3.50); 1x Pão (4.00)".
func (r SaleReportRow) ItemSummary() string {
	parts := make([]string, len(r.Items))
	for i, it := range r.Items {
		parts[i] = fmt.Sprintf("%dx %s (%s)", it.Quantity, it.ProductName, it.UnitPrice.StringFixed(2))
	}
	return strings.Join(parts, "; ")
}

type RechargeReportRow struct {
	ID           string
	At           time.Time
	Amount       decimal.Decimal
	Method       PaymentMethod
	CreatedBy    string
	StudentName  string
	StudentGroup string
}

// =============================================================================
// SERVICE QUERIES
// =============================================================================

func (s *Service) filter(q ReportQuery) (ReportFilter, error) {
	p, err := ParseDateRange(q.StartDate, q.EndDate, s.loc)
	if err != nil {
		return ReportFilter{}, err
	}
	return ReportFilter{StudentID: q.StudentID, Period: p}, nil
}

// SalesReport lists sales newest first, cancelled ones included.
func (s *Service) SalesReport(ctx context.Context, q ReportQuery) ([]SaleReportRow, error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.SalesReport(ctx, f)
	return rows, wrapStore("sales report", err)
}

// RechargesReport lists recharges newest first.
func (s *Service) RechargesReport(ctx context.Context, q ReportQuery) ([]RechargeReportRow, error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.RechargesReport(ctx, f)
	return rows, wrapStore("recharges report", err)
}

// BalancesReport lists every student with current balance and limits.
func (s *Service) BalancesReport(ctx context.Context, search string) ([]Student, error) {
	return s.ListStudents(ctx, search)
}

// =============================================================================
// CSV EXPORT
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteSalesCSV writes rows with timestamps rendered in loc.
func WriteSalesCSV(w io.Writer, rows []SaleReportRow, loc *time.Location) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.SoldAt.In(loc).Format(time.RFC3339),
			r.StudentName,
			r.StudentGroup,
			money(r.Total),
			string(r.Type),
			string(r.Status),
			r.CreatedBy,
			r.ItemSummary(),
		}
	}
	return writeCSV(w, []string{"Data/Hora", "Nome do Aluno", "Turma do Aluno", "Valor Total", "Tipo Venda", "Status", "Usuário", "Itens"}, out)
}

func WriteRechargesCSV(w io.Writer, rows []RechargeReportRow, loc *time.Location) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.At.In(loc).Format(time.RFC3339),
			r.StudentName,
			r.StudentGroup,
			money(r.Amount),
			string(r.Method),
			r.CreatedBy,
		}
	}
	return writeCSV(w, []string{"Data/Hora", "Nome do Aluno", "Turma do Aluno", "Valor Recarga", "Forma Pgto", "Usuário"}, out)
}

func WriteBalancesCSV(w io.Writer, students []Student) error {
	out := make([][]string, len(students))
	for i, st := range students {
		out[i] = []string{
			st.Name,
			st.Group,
			st.Code,
			money(st.Balance),
			money(st.DailyLimit),
			money(st.MonthlyLimit),
			strconv.FormatBool(st.AllowCredit),
			money(st.LowBalanceThreshold),
			strconv.FormatBool(st.Active),
		}
	}
	return writeCSV(w, []string{"Nome", "Turma", "Código (RA)", "Saldo Atual", "Limite Diário", "Limite Mensal", "Permite Fiado", "Limite Saldo Baixo", "Ativo"}, out)
}
