/*
handlers.go - HTTP API handlers for the canteen service

PURPOSE:
  Exposes the canteen workflows via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to canteen.Service.

ENDPOINTS:
  Workflows:
    POST   /sales              Ring up a sale
    GET    /sales/{id}         Sale with items
    POST   /sales/cancel       Cancel a sale, refunding credito sales
    POST   /recharges          Top up a student's balance

  Students:
    GET    /students           List (?search=) or fetch one (?id=)
    POST   /students           Create
    PUT    /students?id=       Update profile and limits

  Products:
    GET    /products           Active catalog (?all=true for everything)
    POST   /products           Add a product

  Reports (?format=csv|json):
    GET    /reports/sales      ?startDate&endDate&id_aluno
    GET    /reports/recharges  ?startDate&endDate&id_aluno
    GET    /reports/balances   ?search

  Ops:
    GET    /healthz            Store reachability
    GET    /metrics            Prometheus

REQUEST FLOW:
  1. Decode body, reject malformed JSON with 400 and bodies over 1 MiB with 413
  2. Resolve the acting operator (header, then body field)
  3. Call the service; it validates and runs the transaction
  4. Serialize response or map the error (see errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/warp/cantina/canteen"
	"github.com/warp/cantina/config"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures a Handler. Zero values pick defaults.
type Options struct {
	StatusMode  string   // config.StatusModeLegacy (default) or StatusModeStrict
	ActorHeader string   // defaults to X-Actor-ID
	CORSOrigins []string // defaults to *
	DemoEnabled bool
	Logger      *zap.Logger
	Metrics     *Metrics
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc     *canteen.Service
	log     *zap.Logger
	metrics *Metrics

	statusMode  string
	actorHeader string
	corsOrigins []string
	demoEnabled bool

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over svc.
func NewHandler(svc *canteen.Service, opts Options) *Handler {
	h := &Handler{
		svc:         svc,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		statusMode:  opts.StatusMode,
		actorHeader: opts.ActorHeader,
		corsOrigins: opts.CORSOrigins,
		demoEnabled: opts.DemoEnabled,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.metrics == nil {
		h.metrics = NewMetrics()
	}
	if h.statusMode == "" {
		h.statusMode = config.StatusModeLegacy
	}
	if h.actorHeader == "" {
		h.actorHeader = "X-Actor-ID"
	}
	if len(h.corsOrigins) == 0 {
		h.corsOrigins = []string{"*"}
	}
	return h
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// PostSale rings up a sale.
func (h *Handler) PostSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := canteen.SaleRequest{
		StudentID: req.StudentID,
		Items:     make([]canteen.SaleItemInput, len(req.Items)),
		Actor:     actorFrom(r, req.CreatedBy),
	}
	for i, it := range req.Items {
		in.Items[i] = canteen.SaleItemInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}

	res, err := h.svc.PostSale(r.Context(), in)
	h.metrics.ObserveWorkflow("sale", err)
	if err != nil {
		h.fail(w, r, h.workflowStatus(err), publicMessage(err, "Erro interno do servidor ao processar venda."), err)
		return
	}

	writeJSON(w, http.StatusOK, SaleResponse{
		Message:    "Venda lançada com sucesso!",
		SaleID:     res.SaleID,
		Total:      res.Total,
		Type:       string(res.Type),
		NewBalance: res.Balance,
		LowBalance: res.LowBalance,
	})
}

// GetSale returns a sale with its items.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.svc.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao buscar venda."), err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*sale, h.svc.Location()))
}

// CancelSale cancels a sale and refunds credito sales.
func (h *Handler) CancelSale(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.CancelSale(r.Context(), req.SaleID)
	h.metrics.ObserveWorkflow("cancel", err)
	if err != nil {
		h.fail(w, r, h.workflowStatus(err), publicMessage(err, "Erro interno do servidor ao cancelar venda."), err)
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{
		Message:    "Venda cancelada com sucesso!",
		SaleID:     res.SaleID,
		Type:       string(res.Type),
		Refund:     res.Refund,
		NewBalance: res.Balance,
	})
}

// =============================================================================
// RECHARGE HANDLERS
// =============================================================================

// Recharge tops up a student's balance.
func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	var req RechargeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount == nil {
		badRequest(w, "ID do aluno, valor e forma de pagamento são obrigatórios.")
		return
	}

	res, err := h.svc.Recharge(r.Context(), canteen.RechargeRequest{
		StudentID: req.StudentID,
		Amount:    *req.Amount,
		Method:    canteen.PaymentMethod(strings.ToLower(strings.TrimSpace(req.Method))),
		Actor:     actorFrom(r, req.CreatedBy),
	})
	h.metrics.ObserveWorkflow("recharge", err)
	if err != nil {
		h.fail(w, r, h.workflowStatus(err), publicMessage(err, "Erro interno do servidor ao processar recarga."), err)
		return
	}

	writeJSON(w, http.StatusOK, RechargeResponse{
		Message:    "Recarga realizada com sucesso!",
		RechargeID: res.RechargeID,
		NewBalance: res.Balance,
	})
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns all students matching ?search=, or the single
// student named by ?id=.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc := h.svc.Location()

	if id := r.URL.Query().Get("id"); id != "" {
		st, err := h.svc.GetStudent(ctx, id)
		if err != nil {
			h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao buscar aluno."), err)
			return
		}
		writeJSON(w, http.StatusOK, toStudentDTO(*st, loc))
		return
	}

	students, err := h.svc.ListStudents(ctx, r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao buscar alunos."), err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTOs(students, loc))
}

// CreateStudent registers a student with a zero balance.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	st, err := h.svc.CreateStudent(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao criar aluno."), err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(*st, h.svc.Location()))
}

// UpdateStudent changes profile fields of ?id=. The balance is not editable.
func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		badRequest(w, "ID do aluno inválido.")
		return
	}
	var req StudentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	st, err := h.svc.UpdateStudent(r.Context(), id, req.toInput())
	if err != nil {
		h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao atualizar aluno."), err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(*st, h.svc.Location()))
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns the active catalog, or every product with ?all=true.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	products, err := h.svc.ListProducts(r.Context(), activeOnly)
	if err != nil {
		h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao buscar produtos."), err)
		return
	}

	loc := h.svc.Location()
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p, loc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct adds a product to the catalog.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string          `json:"nome"`
		Price decimal.Decimal `json:"preco"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.svc.CreateProduct(r.Context(), req.Name, req.Price)
	if err != nil {
		h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao criar produto."), err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(*p, h.svc.Location()))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func reportQuery(r *http.Request) canteen.ReportQuery {
	q := r.URL.Query()
	return canteen.ReportQuery{
		StudentID: q.Get("id_aluno"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}
}

// SalesReport lists sales with student and item details.
func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.SalesReport(r.Context(), reportQuery(r))
	if err != nil {
		h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao buscar vendas."), err)
		return
	}

	loc := h.svc.Location()
	if wantsCSV(r) {
		h.writeCSV(w, r, "vendas", func(w http.ResponseWriter) error {
			return canteen.WriteSalesCSV(w, rows, loc)
		})
		return
	}
	writeJSON(w, http.StatusOK, toSaleReportDTOs(rows, loc))
}

// RechargesReport lists recharges with student details.
func (h *Handler) RechargesReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.RechargesReport(r.Context(), reportQuery(r))
	if err != nil {
		h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao buscar recargas."), err)
		return
	}

	loc := h.svc.Location()
	if wantsCSV(r) {
		h.writeCSV(w, r, "recargas", func(w http.ResponseWriter) error {
			return canteen.WriteRechargesCSV(w, rows, loc)
		})
		return
	}
	writeJSON(w, http.StatusOK, toRechargeReportDTOs(rows, loc))
}

// BalancesReport lists every student's balance and limits.
func (h *Handler) BalancesReport(w http.ResponseWriter, r *http.Request) {
	students, err := h.svc.BalancesReport(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, resourceStatus(err), publicMessage(err, "Erro ao buscar saldos."), err)
		return
	}

	if wantsCSV(r) {
		h.writeCSV(w, r, "saldos", func(w http.ResponseWriter) error {
			return canteen.WriteBalancesCSV(w, students)
		})
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTOs(students, h.svc.Location()))
}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "csv")
}

// writeCSV streams an attachment named <prefix>-YYYY-MM-DD.csv.
func (h *Handler) writeCSV(w http.ResponseWriter, r *http.Request, prefix string, write func(http.ResponseWriter) error) {
	today := h.svc.Now().In(h.svc.Location()).Format(canteen.DateLayout)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.csv"`, prefix, today))
	w.WriteHeader(http.StatusOK)
	if err := write(w); err != nil {
		// Headers are gone; all that is left is to record it.
		h.log.Error("csv export failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
}

// =============================================================================
// OPS HANDLERS
// =============================================================================

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Store().Ping(r.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeJSON(w, status, ErrorResponse{Message: message, Error: canteen.Code(err)})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: message, Error: "validation_error"})
}

// fail writes the error response and logs server-side failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if status >= http.StatusInternalServerError && !canteen.IsDomainError(err) {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, message, err)
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Message: "Corpo da requisição excede o tamanho máximo.",
				Error:   "validation_error",
			})
			return false
		}
		badRequest(w, "Corpo da requisição inválido.")
		return false
	}
	return true
}
