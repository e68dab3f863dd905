/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	canteen data. Each scenario creates products and students, tops up
	balances and rings up sales through the real workflows, so balances and
	limits are exactly what the service itself would have produced.

AVAILABLE SCENARIOS:

	escola-basica:  Catalog, three students with credit, a few sales
	limites:        Students close to their daily and monthly ceilings
	fiado:          Students without balance, with and without fiado

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create products
 3. Create students
 4. Recharge balances
 5. Optionally ring up and cancel sales

USAGE VIA API:

	POST /scenarios/load
	{"scenario_id": "limites"}

NOTE:

	Scenarios reset the database. Routes exist only with DEMO_ENABLED.

SEE ALSO:
  - handlers.go: request plumbing
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/cantina/canteen"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "escola-basica",
		Name:        "Escola básica",
		Description: "Catalog, three students with credit and a morning of sales",
	},
	{
		ID:          "limites",
		Name:        "Limites de gasto",
		Description: "Students one purchase away from their daily or monthly ceiling",
	},
	{
		ID:          "fiado",
		Name:        "Fiado",
		Description: "Zero-balance students, one allowed to buy on credit and one not",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "escola-basica":
		load = h.loadBasicScenario
	case "limites":
		load = h.loadLimitsScenario
	case "fiado":
		load = h.loadCreditScenario
	default:
		badRequest(w, "Cenário desconhecido.")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.resetStore(ctx); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Erro ao limpar base de dados.", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		h.fail(w, r, http.StatusInternalServerError, fmt.Sprintf("Erro ao carregar cenário: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) resetStore(ctx context.Context) error {
	rs, ok := h.svc.Store().(canteen.Resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	return rs.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const scenarioActor = "demo"

type seedStudent struct {
	name, group, code string
	recharge          string
	daily, monthly    string
	allowCredit       bool
}

// seed creates products and students, recharging each student. It returns
// product IDs by name and student IDs by name.
func (h *Handler) seed(ctx context.Context, products map[string]string, students []seedStudent) (map[string]string, map[string]string, error) {
	productIDs := make(map[string]string, len(products))
	for name, price := range products {
		p, err := h.svc.CreateProduct(ctx, name, decimal.RequireFromString(price))
		if err != nil {
			return nil, nil, fmt.Errorf("product %s: %w", name, err)
		}
		productIDs[name] = p.ID
	}

	studentIDs := make(map[string]string, len(students))
	for _, s := range students {
		in := canteen.StudentInput{
			Name:        &s.name,
			Group:       &s.group,
			AllowCredit: &s.allowCredit,
		}
		if s.code != "" {
			in.Code = &s.code
		}
		if s.daily != "" {
			d := decimal.RequireFromString(s.daily)
			in.DailyLimit = &d
		}
		if s.monthly != "" {
			m := decimal.RequireFromString(s.monthly)
			in.MonthlyLimit = &m
		}
		st, err := h.svc.CreateStudent(ctx, in)
		if err != nil {
			return nil, nil, fmt.Errorf("student %s: %w", s.name, err)
		}
		studentIDs[s.name] = st.ID

		if s.recharge != "" {
			if _, err := h.svc.Recharge(ctx, canteen.RechargeRequest{
				StudentID: st.ID,
				Amount:    decimal.RequireFromString(s.recharge),
				Method:    canteen.PaymentPix,
				Actor:     scenarioActor,
			}); err != nil {
				return nil, nil, fmt.Errorf("recharge %s: %w", s.name, err)
			}
		}
	}
	return productIDs, studentIDs, nil
}

var catalog = map[string]string{
	"Suco":          "3.50",
	"Pão de queijo": "4.00",
	"Salgado":       "6.00",
	"Água":          "2.50",
	"Fruta":         "2.00",
}

type line struct {
	product string
	qty     int
}

// sell rings up lines at catalog prices.
func (h *Handler) sell(ctx context.Context, studentID string, products map[string]string, lines ...line) (canteen.SaleResult, error) {
	req := canteen.SaleRequest{StudentID: studentID, Actor: scenarioActor}
	for _, l := range lines {
		req.Items = append(req.Items, canteen.SaleItemInput{
			ProductID: products[l.product],
			Quantity:  l.qty,
			UnitPrice: decimal.RequireFromString(catalog[l.product]),
		})
	}
	return h.svc.PostSale(ctx, req)
}

func (h *Handler) loadBasicScenario(ctx context.Context) error {
	products, students, err := h.seed(ctx, catalog, []seedStudent{
		{name: "Ana Souza", group: "5A", code: "RA1001", recharge: "50", allowCredit: true},
		{name: "Bruno Lima", group: "5A", code: "RA1002", recharge: "30", allowCredit: true},
		{name: "Carla Dias", group: "7B", code: "RA2001", recharge: "12", allowCredit: false},
	})
	if err != nil {
		return err
	}

	if _, err := h.sell(ctx, students["Ana Souza"], products, line{"Suco", 2}, line{"Pão de queijo", 1}); err != nil {
		return err
	}
	if _, err := h.sell(ctx, students["Bruno Lima"], products, line{"Salgado", 1}); err != nil {
		return err
	}
	// A mistaken sale, then its cancellation.
	res, err := h.sell(ctx, students["Carla Dias"], products, line{"Água", 2})
	if err != nil {
		return err
	}
	_, err = h.svc.CancelSale(ctx, res.SaleID)
	return err
}

func (h *Handler) loadLimitsScenario(ctx context.Context) error {
	products, students, err := h.seed(ctx, catalog, []seedStudent{
		{name: "Diego Alves", group: "6A", recharge: "100", daily: "10", allowCredit: true},
		{name: "Elisa Rocha", group: "8C", recharge: "100", monthly: "15", allowCredit: true},
	})
	if err != nil {
		return err
	}

	// 8.00 of a 10.00 daily ceiling.
	if _, err := h.sell(ctx, students["Diego Alves"], products, line{"Fruta", 4}); err != nil {
		return err
	}
	// 12.00 of a 15.00 monthly ceiling.
	_, err = h.sell(ctx, students["Elisa Rocha"], products, line{"Salgado", 2})
	return err
}

func (h *Handler) loadCreditScenario(ctx context.Context) error {
	products, students, err := h.seed(ctx, catalog, []seedStudent{
		{name: "Felipe Costa", group: "3A", allowCredit: true},
		{name: "Gabriela Nunes", group: "3A", allowCredit: false},
	})
	if err != nil {
		return err
	}

	// Balance stays at zero: a fiado sale.
	_, err = h.sell(ctx, students["Felipe Costa"], products, line{"Suco", 1})
	return err
}
