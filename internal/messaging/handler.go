package messaging

import (
	"encoding/json"
	"net/http"

	"github.com/azstore/crm-server/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrThreadNotFound, Status: http.StatusNotFound},
	{Error: ErrNotThreadOwner, Status: http.StatusForbidden},
	{Error: ErrThreadClosed, Status: http.StatusConflict},
	{Error: ErrEmptySubject, Status: http.StatusBadRequest},
	{Error: ErrEmptyBody, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the support inbox.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new messaging handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterCustomerRoutes registers the authenticated customer's inbox routes.
func (h *Handler) RegisterCustomerRoutes(r chi.Router) {
	r.Route("/me/threads", func(r chi.Router) {
		r.Get("/", h.ListMine)
		r.Post("/", h.Compose)
		r.Get("/{id}", h.View)
		r.Post("/{id}/messages", h.Reply)
		r.Post("/{id}/close", h.Close)
	})
}

// RegisterStaffRoutes registers staff-only inbox routes.
func (h *Handler) RegisterStaffRoutes(r chi.Router) {
	r.Route("/threads", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.View)
		r.Post("/{id}/messages", h.Reply)
		r.Post("/{id}/close", h.Close)
	})
}

// ComposeRequest represents the request body for opening a thread.
type ComposeRequest struct {
	Subject string `json:"subject" validate:"required,min=1,max=200"`
	Body    string `json:"body" validate:"required,min=1"`
}

// ReplyRequest represents the request body for a reply.
type ReplyRequest struct {
	Body string `json:"body" validate:"required,min=1"`
}

// Compose handles POST /me/threads.
func (h *Handler) Compose(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	view, err := h.service.Compose(r.Context(), httputil.GetCustomerID(r.Context()), req.Subject, req.Body)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, view)
}

// ListMine handles GET /me/threads.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	threads, err := h.service.ListMyThreads(r.Context(), httputil.GetCustomerID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, threads)
}

// List handles GET /threads.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	openOnly := r.URL.Query().Get("open") != "false"

	threads, err := h.service.ListThreads(r.Context(), openOnly)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, threads)
}

// View handles GET /me/threads/{id} and GET /threads/{id}.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ViewThread(r.Context(),
		chi.URLParam(r, "id"),
		httputil.GetCustomerID(r.Context()),
		httputil.GetRole(r.Context()),
	)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, view)
}

// Reply handles POST /me/threads/{id}/messages and POST /threads/{id}/messages.
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	msg, err := h.service.Reply(r.Context(),
		chi.URLParam(r, "id"),
		httputil.GetCustomerID(r.Context()),
		httputil.GetRole(r.Context()),
		req.Body,
	)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, msg)
}

// Close handles POST /me/threads/{id}/close and POST /threads/{id}/close.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	err := h.service.CloseThread(r.Context(),
		chi.URLParam(r, "id"),
		httputil.GetCustomerID(r.Context()),
		httputil.GetRole(r.Context()),
	)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
