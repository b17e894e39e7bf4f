package notifications

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/azstore/crm-server/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotificationNotFound, Status: http.StatusNotFound},
	{Error: ErrGroupNotFound, Status: http.StatusNotFound},
	{Error: ErrCustomerNotFound, Status: http.StatusNotFound},
	{Error: ErrEmptyTitle, Status: http.StatusBadRequest},
	{Error: ErrEmptyMessage, Status: http.StatusBadRequest},
	{Error: ErrInvalidCategory, Status: http.StatusBadRequest},
	{Error: ErrInvalidTarget, Status: http.StatusBadRequest},
	{Error: ErrNotGroupTargeted, Status: http.StatusConflict},
	{Error: ErrAlreadyExpanded, Status: http.StatusConflict, Message: "notification already expanded, pass force=true to re-send"},
	{Error: ErrNoRecipients, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterCustomerRoutes registers the authenticated customer's inbox routes.
func (h *Handler) RegisterCustomerRoutes(r chi.Router) {
	r.Route("/me/notifications", func(r chi.Router) {
		r.Get("/", h.ListMine)
		r.Post("/read", h.MarkMineRead)
		r.Post("/unread", h.MarkMineUnread)
	})
}

// RegisterStaffRoutes registers staff-only notification routes.
func (h *Handler) RegisterStaffRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/bulk", h.BulkNotify)
		r.Post("/read", h.StaffSetRead)
		r.Post("/activate", h.Activate)
		r.Post("/deactivate", h.Deactivate)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.DeleteNotification)
		r.Post("/{id}/expand", h.Expand)
		r.Get("/{id}/expansion", h.GetExpansion)
	})
}

// TargetRequest is the tagged-target portion of a create request.
type TargetRequest struct {
	Kind       string  `json:"kind" validate:"required,oneof=customer group broadcast"`
	CustomerID *string `json:"customer_id"`
	GroupID    *string `json:"group_id"`
}

// CreateRequest represents the request body for creating a notification.
type CreateRequest struct {
	Target    TargetRequest `json:"target" validate:"required"`
	Title     string        `json:"title" validate:"required,min=1,max=200"`
	Message   string        `json:"message" validate:"required,min=1"`
	Category  string        `json:"category" validate:"required,oneof=promotion system_update system_message announcement"`
	Active    *bool         `json:"active"`
	ExpiresAt *time.Time    `json:"expires_at"`
}

func (r *CreateRequest) toInput() Input {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return Input{
		Title:     r.Title,
		Message:   r.Message,
		Category:  domain.NotificationCategory(r.Category),
		Active:    active,
		ExpiresAt: r.ExpiresAt,
	}
}

// BulkRequest represents the request body for a bulk notification.
type BulkRequest struct {
	CustomerIDs []string   `json:"customer_ids" validate:"required,min=1,dive,uuid"`
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Message     string     `json:"message" validate:"required,min=1"`
	Category    string     `json:"category" validate:"required,oneof=promotion system_update system_message announcement"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// IDsRequest represents a set of notification IDs for bulk flag updates.
type IDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

// StaffReadRequest represents a staff bulk read-flag update.
type StaffReadRequest struct {
	IDs  []string `json:"ids" validate:"required,min=1,dive,uuid"`
	Read bool     `json:"read"`
}

// Create handles POST /notifications.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	var n *domain.Notification
	var err error

	switch domain.TargetKind(req.Target.Kind) {
	case domain.TargetCustomer:
		if req.Target.CustomerID == nil {
			httputil.Error(w, http.StatusBadRequest, "customer target requires customer_id")
			return
		}
		n, err = h.service.CreateForCustomer(r.Context(), *req.Target.CustomerID, req.toInput())
	case domain.TargetGroup:
		if req.Target.GroupID == nil {
			httputil.Error(w, http.StatusBadRequest, "group target requires group_id")
			return
		}
		n, err = h.service.CreateForGroup(r.Context(), *req.Target.GroupID, req.toInput())
	default:
		n, err = h.service.CreateBroadcast(r.Context(), req.toInput())
	}

	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, n)
}

// List handles GET /notifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}

	if kind := r.URL.Query().Get("target_kind"); kind != "" {
		k := domain.TargetKind(kind)
		filter.TargetKind = &k
	}
	if category := r.URL.Query().Get("category"); category != "" {
		c := domain.NotificationCategory(category)
		filter.Category = &c
	}
	if r.URL.Query().Get("active") == "true" {
		filter.ActiveOnly = true
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// Get handles GET /notifications/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, n)
}

// DeleteNotification handles DELETE /notifications/{id}.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Expand handles POST /notifications/{id}/expand.
func (h *Handler) Expand(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	expandedBy := httputil.GetCustomerID(r.Context())

	report, err := h.service.Expand(r.Context(), chi.URLParam(r, "id"), expandedBy, force)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, report)
}

// GetExpansion handles GET /notifications/{id}/expansion.
func (h *Handler) GetExpansion(w http.ResponseWriter, r *http.Request) {
	exp, err := h.service.GetExpansion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, exp)
}

// BulkNotify handles POST /notifications/bulk.
func (h *Handler) BulkNotify(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	report, err := h.service.BulkNotify(r.Context(), req.CustomerIDs, Input{
		Title:     req.Title,
		Message:   req.Message,
		Category:  domain.NotificationCategory(req.Category),
		Active:    true,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, report)
}

// StaffSetRead handles POST /notifications/read.
func (h *Handler) StaffSetRead(w http.ResponseWriter, r *http.Request) {
	var req StaffReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	affected, err := h.service.StaffMarkRead(r.Context(), req.IDs, req.Read)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"updated": affected})
}

// Activate handles POST /notifications/activate.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /notifications/deactivate.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	var req IDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	affected, err := h.service.SetActive(r.Context(), req.IDs, active)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"updated": affected})
}

// ListMine handles GET /me/notifications.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	customerID := httputil.GetCustomerID(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"
	includeBroadcast := r.URL.Query().Get("include_broadcast") != "false"

	list, err := h.service.ListActiveForCustomer(r.Context(), customerID, unreadOnly, includeBroadcast)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	unread, err := h.service.CountUnread(r.Context(), customerID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"notifications": list,
		"unread_count":  unread,
	})
}

// MarkMineRead handles POST /me/notifications/read.
func (h *Handler) MarkMineRead(w http.ResponseWriter, r *http.Request) {
	h.markMine(w, r, true)
}

// MarkMineUnread handles POST /me/notifications/unread.
func (h *Handler) MarkMineUnread(w http.ResponseWriter, r *http.Request) {
	h.markMine(w, r, false)
}

func (h *Handler) markMine(w http.ResponseWriter, r *http.Request, read bool) {
	customerID := httputil.GetCustomerID(r.Context())

	var req IDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	var affected int64
	var err error
	if read {
		affected, err = h.service.MarkRead(r.Context(), customerID, req.IDs)
	} else {
		affected, err = h.service.MarkUnread(r.Context(), customerID, req.IDs)
	}
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"updated": affected})
}
