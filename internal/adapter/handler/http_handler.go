package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pappertech/dispatch-core/internal/core/bus"
	"github.com/pappertech/dispatch-core/internal/core/domain"
	"github.com/pappertech/dispatch-core/internal/core/service"
	"github.com/pappertech/dispatch-core/internal/port"
)

type HTTPHandler struct {
	lifecycle *service.LifecycleManager
	risk      *service.RiskEngine
	bus       *bus.Bus
	linkage   port.LinkageStore
	auth      port.Authenticator
	logger    *zap.Logger
}

func NewHTTPHandler(lifecycle *service.LifecycleManager, risk *service.RiskEngine, notifications *bus.Bus, linkage port.LinkageStore, auth port.Authenticator, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		lifecycle: lifecycle,
		risk:      risk,
		bus:       notifications,
		linkage:   linkage,
		auth:      auth,
		logger:    logger,
	}
}

// Routes mounts all endpoints on r.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Post("/api/orders", h.CreateOrder)
	r.Get("/api/orders/{id}", h.GetOrder)
	r.Put("/api/orders/{id}/status", h.UpdateOrderStatus)
	r.Post("/api/orders/{id}/cancel", h.CancelOrder)
	r.Post("/api/auth/login", h.Login)
}

type createOrderRequest struct {
	CustomerID    string `json:"customerId"`
	AddressID     string `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
	Items         []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

type updateStatusRequest struct {
	TargetStatus          string `json:"targetStatus"`
	ExpectedCurrentStatus string `json:"expectedCurrentStatus"`
	ActorID               string `json:"actorId"`
	Note                  string `json:"note,omitempty"`
}

type cancelOrderRequest struct {
	Reason  string `json:"reason,omitempty"`
	ActorID string `json:"actorId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusHistoryJSON struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderItemJSON struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type orderJSON struct {
	ID                string              `json:"id"`
	OrderNumber       string              `json:"orderNumber"`
	CustomerID        string              `json:"customerId"`
	SellerID          string              `json:"sellerId"`
	DeliveryPartnerID string              `json:"deliveryPartnerId,omitempty"`
	Status            string              `json:"status"`
	TotalAmount       string              `json:"totalAmount"`
	Items             []orderItemJSON     `json:"items"`
	StatusHistory     []statusHistoryJSON `json:"statusHistory"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

func toOrderJSON(o *domain.Order) orderJSON {
	out := orderJSON{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		CustomerID:        o.CustomerID,
		SellerID:          o.SellerID,
		DeliveryPartnerID: o.DeliveryPartnerID,
		Status:            string(o.Status),
		TotalAmount:       o.TotalAmount.String(),
		Items:             make([]orderItemJSON, 0, len(o.Items)),
		StatusHistory:     make([]statusHistoryJSON, 0, len(o.StatusHistory)),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, orderItemJSON{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
		})
	}
	for _, entry := range o.StatusHistory {
		out.StatusHistory = append(out.StatusHistory, statusHistoryJSON{
			Status:    string(entry.Status),
			Note:      entry.Note,
			CreatedAt: entry.CreatedAt,
		})
	}
	return out
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sctx := securityContext(r)
	sctx.UserID = req.CustomerID

	// Risk gate first; the amount is unknown before pricing, so the gate
	// scores the order payload with a zero amount.
	assessment := h.risk.Assess(r.Context(), sctx, domain.RiskPayload{Kind: domain.PayloadOrder, Amount: decimal.Zero})
	if assessment.Action == domain.RiskActionBlock {
		h.risk.LogSecurityEvent(r.Context(), securityAudit("ORDER_BLOCKED", sctx, assessment))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Order creation blocked due to security concerns."})
		return
	}
	if assessment.Action == domain.RiskActionFlag {
		h.risk.LogSecurityEvent(r.Context(), securityAudit("ORDER_FLAGGED", sctx, assessment))
	}

	draft := domain.OrderDraft{
		CustomerID:    req.CustomerID,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
	}
	for _, item := range req.Items {
		draft.Items = append(draft.Items, domain.DraftItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, events, err := h.lifecycle.Create(r.Context(), draft)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// The write is committed; only now do the notifications go out.
	for _, event := range events {
		h.bus.Publish(event)
	}

	writeJSON(w, http.StatusCreated, toOrderJSON(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.lifecycle.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(order))
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	order, events, err := h.lifecycle.Transition(r.Context(), chi.URLParam(r, "id"),
		domain.OrderStatus(req.TargetStatus), domain.OrderStatus(req.ExpectedCurrentStatus),
		req.ActorID, req.Note)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	for _, event := range events {
		h.bus.Publish(event)
	}

	writeJSON(w, http.StatusOK, toOrderJSON(order))
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	order, events, err := h.lifecycle.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason, req.ActorID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	for _, event := range events {
		h.bus.Publish(event)
	}

	writeJSON(w, http.StatusOK, toOrderJSON(order))
}

// Login gates the attempt before any credential verification runs. BLOCK
// means the authenticator is never consulted.
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	sctx := securityContext(r)

	assessment := h.risk.Assess(r.Context(), sctx, domain.RiskPayload{Kind: domain.PayloadLogin})
	if assessment.Action == domain.RiskActionBlock {
		h.risk.LogSecurityEvent(r.Context(), securityAudit("LOGIN_BLOCKED", sctx, assessment))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Access denied due to security policy."})
		return
	}
	if assessment.Action == domain.RiskActionFlag {
		h.risk.LogSecurityEvent(r.Context(), securityAudit("LOGIN_FLAGGED", sctx, assessment))
	}

	userID, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, port.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid email or password"})
			return
		}
		h.logger.Error("authenticator failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	// Feed the linkage signal for future assessments of this IP.
	if err := h.linkage.ObserveDevice(r.Context(), sctx.IP, userID); err != nil {
		h.logger.Warn("failed to observe device", zap.String("ip", sctx.IP), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful", "userId": userID})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeDomainError maps the typed error taxonomy onto HTTP statuses. Internal
// failures are logged in full and surfaced as a generic message.
func (h *HTTPHandler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		invalid    *domain.InvalidTransitionError
		conflict   *domain.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Msg})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: invalid.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "order status has changed, refresh and retry"})
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
	case errors.Is(err, domain.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// securityContext extracts the caller identity the risk engine scores on.
func securityContext(r *http.Request) domain.SecurityContext {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	} else if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = strings.TrimSpace(ip[:i])
	}
	return domain.SecurityContext{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}

func securityAudit(action string, sctx domain.SecurityContext, a domain.RiskAssessment) domain.AuditRecord {
	flags := make([]string, 0, len(a.Flags))
	for _, f := range a.Flags {
		flags = append(flags, string(f))
	}
	severity := "LOW"
	if a.Action == domain.RiskActionBlock {
		severity = "HIGH"
	}
	return domain.AuditRecord{
		UserID: sctx.UserID,
		Action: action,
		Entity: "SECURITY",
		Metadata: map[string]any{
			"score":    a.Score,
			"flags":    flags,
			"severity": severity,
		},
		IPAddress: sctx.IP,
		UserAgent: sctx.UserAgent,
		CreatedAt: time.Now(),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
