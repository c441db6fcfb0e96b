package httpapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/registry"
	"rasapos/backend/internal/service"
	"rasapos/backend/internal/split"
	"rasapos/backend/internal/store"
)

const (
	jsonBodyLimit   = 1 << 20
	backupBodyLimit = 32 << 20
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	logger        zerolog.Logger
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger zerolog.Logger) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		logger:        logger.With().Str("component", "httpapi").Logger(),
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

// Allow records an attempt for key and reports whether it is within the window budget.
func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

// Handler wires every route. All /api/v1 routes except login need a bearer
// token; catalog and directory writes additionally need the admin role,
// which the service enforces.
//
//	GET  /api/v1/orders                         live registry view
//	POST /api/v1/orders/open                    select dine-in table, new takeaway or delivery
//	POST|PATCH /api/v1/orders/items             add by id/barcode, change qty or discount
//	DELETE /api/v1/orders/items/{productID}
//	POST /api/v1/orders/adjust                  overall discount, service charge, customer
//	POST /api/v1/orders/clear
//	POST /api/v1/orders/hold
//	GET  /api/v1/orders/held
//	POST /api/v1/orders/held/{id}/restore|discard
//	POST /api/v1/orders/pay                     full or partial payment
//	POST /api/v1/orders/split/open|add|move|pay|close
//	GET  /api/v1/sales/{id}
//	GET|POST /api/v1/{products,categories,recipes,raw-materials,customers,delivery-reps,suppliers,tables}
//	GET  /api/v1/roles
//	POST /api/v1/shifts/open|close, GET /api/v1/shifts/active
//	GET|POST /api/v1/cash-drawer, /api/v1/expenses, /api/v1/purchases
//	GET  /api/v1/reports/sales?from=&to=&format=csv
//	GET  /api/v1/reports/low-stock
//	GET|PATCH /api/v1/settings
//	GET  /api/v1/backup, POST /api/v1/backup/import (manager PIN)
//	GET|POST /api/v1/users/cashiers
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	staff := []string{domain.RoleCashier, domain.RoleAdmin}
	route := func(path string, h http.HandlerFunc, roles ...string) {
		if len(roles) == 0 {
			roles = staff
		}
		mux.HandleFunc(path, a.requireAuth(h, roles...))
	}

	route("/api/v1/orders", a.handleOrderView)
	route("/api/v1/orders/open", a.handleOrderOpen)
	route("/api/v1/orders/items", a.handleOrderItems)
	route("/api/v1/orders/items/", a.handleOrderItemRemove)
	route("/api/v1/orders/adjust", a.handleOrderAdjust)
	route("/api/v1/orders/clear", a.handleOrderClear)
	route("/api/v1/orders/hold", a.handleOrderHold)
	route("/api/v1/orders/held", a.handleHeldOrders)
	route("/api/v1/orders/held/", a.handleHeldOrderActions)
	route("/api/v1/orders/pay", a.handleOrderPay)
	route("/api/v1/orders/split/", a.handleSplit)
	route("/api/v1/sales/", a.handleSale)

	route("/api/v1/products", collection("products", a.service.ListProducts, a.service.SaveProduct))
	route("/api/v1/categories", collection("categories", a.service.ListCategories, a.service.SaveCategory))
	route("/api/v1/recipes", collection("recipes", a.service.ListRecipes, a.service.SaveRecipe))
	route("/api/v1/raw-materials", collection("raw_materials", a.service.ListRawMaterials, a.service.SaveRawMaterial))
	route("/api/v1/customers", collection("customers", a.service.ListCustomers, a.service.SaveCustomer))
	route("/api/v1/delivery-reps", collection("delivery_reps", a.service.ListDeliveryReps, a.service.SaveDeliveryRep))
	route("/api/v1/suppliers", collection("suppliers", a.service.ListSuppliers, a.service.SaveSupplier))
	route("/api/v1/tables", collection("tables", a.service.ListTables, a.service.SaveTable))
	route("/api/v1/roles", a.handleRoles)

	route("/api/v1/shifts/open", a.handleShiftOpen)
	route("/api/v1/shifts/close", a.handleShiftClose)
	route("/api/v1/shifts/active", a.handleShiftActive)
	route("/api/v1/cash-drawer", a.handleCashDrawer)
	route("/api/v1/expenses", a.handleExpenses)
	route("/api/v1/purchases", a.handlePurchases)

	route("/api/v1/reports/sales", a.handleSalesReport, domain.RoleAdmin)
	route("/api/v1/reports/low-stock", a.handleLowStock)
	route("/api/v1/settings", a.handleSettings)
	route("/api/v1/backup", a.handleBackupExport, domain.RoleAdmin)
	route("/api/v1/backup/import", a.handleBackupImport, domain.RoleAdmin)
	route("/api/v1/users/cashiers", a.handleCashiers, domain.RoleAdmin)

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, errInvalidCredentials) && !errors.Is(err, errInactiveAccount) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleOrderView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.OrderView())
}

func (a *API) handleOrderOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.OpenOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.OpenOrder(r.Context(), req)
	writeResult(w, view, err)
}

func (a *API) handleOrderItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req domain.AddItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.service.AddItem(r.Context(), req)
		writeResult(w, view, err)
	case http.MethodPatch:
		var req domain.UpdateItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.service.UpdateItem(req)
		writeResult(w, view, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOrderItemRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	productID := pathTail(r, "/api/v1/orders/items/")
	if productID == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}
	view, err := a.service.RemoveItem(productID)
	writeResult(w, view, err)
}

func (a *API) handleOrderAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.OrderAdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.AdjustOrder(r.Context(), req)
	writeResult(w, view, err)
}

func (a *API) handleOrderClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.ClearOrderRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.ClearOrder(req)
	writeResult(w, view, err)
}

func (a *API) handleOrderHold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	held, err := a.service.HoldOrder(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"held": held, "order": a.service.OrderView()})
}

func (a *API) handleHeldOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"held": a.service.ListHeldOrders()})
}

func (a *API) handleHeldOrderActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	tail := pathTail(r, "/api/v1/orders/held/")

	switch {
	case strings.HasSuffix(tail, "/restore"):
		view, err := a.service.RestoreHeldOrder(strings.Trim(strings.TrimSuffix(tail, "/restore"), "/"))
		writeResult(w, view, err)
	case strings.HasSuffix(tail, "/discard"):
		if err := a.service.DiscardHeldOrder(strings.Trim(strings.TrimSuffix(tail, "/discard"), "/")); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown held order action"))
	}
}

func (a *API) handleOrderPay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.PaymentRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.ConfirmPayment(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleSplit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	switch pathTail(r, "/api/v1/orders/split/") {
	case "open":
		view, err := a.service.OpenSplit()
		writeResult(w, view, err)
	case "add":
		view, err := a.service.AddSplit()
		writeResult(w, view, err)
	case "move":
		var req domain.SplitMoveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.service.MoveSplitItem(req)
		writeResult(w, view, err)
	case "pay":
		var req domain.SplitPayRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.PaySplit(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"payment": resp, "order": a.service.OrderView()})
	case "close":
		a.service.CloseSplit()
		writeJSON(w, http.StatusOK, a.service.OrderView())
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown split action"))
	}
}

func (a *API) handleSale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	sale, err := a.service.GetSale(r.Context(), pathTail(r, "/api/v1/sales/"))
	writeResult(w, sale, err)
}

// collection serves GET list and POST create-or-replace for a catalog or
// directory entity.
func collection[T any](key string, list func(context.Context) ([]T, error), save func(context.Context, T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			items, err := list(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{key: items})
		case http.MethodPost:
			var item T
			if err := decodeJSON(r, &item); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			saved, err := save(r.Context(), item)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, saved)
		default:
			writeMethodNotAllowed(w)
		}
	}
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	roles, err := a.service.ListRoles(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) handleShiftOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ShiftOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	shift, err := a.service.OpenShift(r.Context(), req)
	writeResult(w, shift, err)
}

func (a *API) handleShiftClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ShiftCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CloseShift(r.Context(), req)
	writeResult(w, resp, err)
}

func (a *API) handleShiftActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	shift, err := a.service.ActiveShift(r.Context())
	writeResult(w, shift, err)
}

func (a *API) handleCashDrawer(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := a.service.ListCashDrawerEntries(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	case http.MethodPost:
		var req domain.CashDrawerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entry, err := a.service.RecordCashDrawer(r.Context(), req)
		writeResult(w, entry, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		expenses, err := a.service.ListExpenses(r.Context(), q.Get("from"), q.Get("to"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
	case http.MethodPost:
		var req domain.ExpenseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		expense, err := a.service.CreateExpense(r.Context(), req)
		writeResult(w, expense, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500)
		purchases, err := a.service.ListPurchases(r.Context(), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
	case http.MethodPost:
		var req domain.PurchaseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		purchase, err := a.service.CreatePurchase(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, purchase)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	report, err := a.service.SalesReport(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(q.Get("format")), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"sales-report-%s-%s.csv\"", report.From, report.To))
		if err := writeSalesReportCSV(w, report); err != nil {
			a.logger.Warn().Err(err).Msg("sales report csv write failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	items, err := a.service.LowStock(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := a.service.GetSettings(r.Context())
		writeResult(w, settings, err)
	case http.MethodPatch:
		var req domain.SettingsUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		settings, err := a.service.UpdateSettings(r.Context(), req)
		writeResult(w, settings, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	backup, err := a.service.ExportBackup(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"rasapos-backup-%s.json\"", time.Now().UTC().Format("20060102-150405")))
	writeJSON(w, http.StatusOK, backup)
}

// handleBackupImport replaces all data, so it also needs the manager PIN in
// the X-Manager-PIN header.
func (a *API) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.pinLimiter.Allow("pin:backup:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(r.Header.Get("X-Manager-PIN")) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.ImportBackup(r.Context(), raw); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.auth.Bootstrap(r.Context()); err != nil {
		a.logger.Warn().Err(err).Msg("reload users after backup import failed")
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cashiers, err := a.auth.ListCashiers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": cashiers})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		cashier, err := a.auth.CreateCashier(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
	default:
		writeMethodNotAllowed(w)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Manager-PIN")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			limit := int64(jsonBodyLimit)
			if r.URL.Path == "/api/v1/backup/import" {
				limit = backupBodyLimit
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		event := a.logger.Info()
		if rec.status >= 500 {
			event = a.logger.Error()
		}
		event.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(startedAt)).
			Msg("request")
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, registry.ErrUnknownTable),
		errors.Is(err, registry.ErrHeldNotFound),
		errors.Is(err, registry.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, registry.ErrInvalidPayment),
		errors.Is(err, split.ErrUnknownBucket),
		errors.Is(err, split.ErrItemNotInBucket):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrNoActiveOrder),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, service.ErrShiftAlreadyOpen),
		errors.Is(err, registry.ErrSplitNotOpen),
		errors.Is(err, split.ErrTooManySplits):
		return http.StatusConflict
	case errors.Is(err, registry.ErrCustomerRequired),
		errors.Is(err, registry.ErrEmptyCart),
		errors.Is(err, service.ErrNoOpenShift),
		errors.Is(err, service.ErrMalformedBackup):
		return http.StatusUnprocessableEntity
	default:
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}
}

func writeSalesReportCSV(w io.Writer, report domain.SalesReport) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "from", report.From},
		{"summary", "to", report.To},
		{"summary", "sales", strconv.FormatInt(report.Sales, 10)},
		{"summary", "gross_sales_cents", strconv.FormatInt(report.GrossSalesCents, 10)},
		{"summary", "discount_cents", strconv.FormatInt(report.DiscountCents, 10)},
		{"summary", "service_charge_cents", strconv.FormatInt(report.ServiceChargeCents, 10)},
		{"summary", "net_sales_cents", strconv.FormatInt(report.NetSalesCents, 10)},
		{"summary", "average_ticket_cents", strconv.FormatInt(report.AverageTicketCents, 10)},
		{"summary", "expenses_cents", strconv.FormatInt(report.ExpensesCents, 10)},
	}
	for _, payment := range report.ByPayment {
		rows = append(rows,
			[]string{"payment", payment.PaymentMethod + "_sales", strconv.FormatInt(payment.Sales, 10)},
			[]string{"payment", payment.PaymentMethod + "_total_cents", strconv.FormatInt(payment.TotalCents, 10)},
		)
	}
	for _, kind := range report.ByOrderType {
		rows = append(rows,
			[]string{"order_type", string(kind.OrderType) + "_sales", strconv.FormatInt(kind.Sales, 10)},
			[]string{"order_type", string(kind.OrderType) + "_total_cents", strconv.FormatInt(kind.TotalCents, 10)},
		)
	}
	for _, product := range report.TopProducts {
		rows = append(rows, []string{"product", product.Name, strconv.Itoa(product.Quantity)})
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func pathTail(r *http.Request, prefix string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body and leaves dest at its zero value.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeResult(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the message of 5xx errors; 4xx messages are user-facing.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
