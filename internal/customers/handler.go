package customers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/azstore/crm-server/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrCustomerNotFound, Status: http.StatusNotFound},
	{Error: ErrGroupNotFound, Status: http.StatusNotFound},
	{Error: ErrNoteNotFound, Status: http.StatusNotFound},
	{Error: ErrGroupNameTaken, Status: http.StatusConflict},
	{Error: ErrEmptyGroupName, Status: http.StatusBadRequest},
	{Error: ErrEmptyNote, Status: http.StatusBadRequest},
	{Error: ErrNoMembers, Status: http.StatusBadRequest},
	{Error: ErrUnsupportedLanguage, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the customer directory.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new customers handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterCustomerRoutes registers the authenticated customer's profile routes.
func (h *Handler) RegisterCustomerRoutes(r chi.Router) {
	r.Route("/me/profile", func(r chi.Router) {
		r.Get("/", h.GetMyProfile)
		r.Patch("/", h.UpdateMyProfile)
	})
}

// RegisterStaffRoutes registers staff-only directory routes.
func (h *Handler) RegisterStaffRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.ListCustomers)
		r.Get("/{id}", h.GetCustomer)
		r.Patch("/{id}", h.UpdateCustomer)
		r.Post("/{id}/activate", h.ActivateCustomer)
		r.Post("/{id}/deactivate", h.DeactivateCustomer)
		r.Get("/{id}/notes", h.ListNotes)
		r.Post("/{id}/notes", h.AddNote)
		r.Put("/{id}/notes/{noteID}", h.UpdateNote)
		r.Delete("/{id}/notes/{noteID}", h.DeleteNote)
	})

	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.ListGroups)
		r.Post("/", h.CreateGroup)
		r.Post("/ensure", h.EnsureGroup)
		r.Get("/{id}", h.GetGroup)
		r.Patch("/{id}", h.UpdateGroup)
		r.Delete("/{id}", h.DeleteGroup)
		r.Get("/{id}/members", h.ListGroupMembers)
		r.Post("/{id}/members", h.AddGroupMembers)
		r.Delete("/{id}/members", h.RemoveGroupMembers)
	})
}

// ProfileUpdateRequest represents a partial profile update.
type ProfileUpdateRequest struct {
	FirstName          *string `json:"first_name" validate:"omitempty,max=100"`
	LastName           *string `json:"last_name" validate:"omitempty,max=100"`
	Phone              *string `json:"phone" validate:"omitempty,max=30"`
	StreetAddress      *string `json:"street_address" validate:"omitempty,max=200"`
	City               *string `json:"city" validate:"omitempty,max=100"`
	Province           *string `json:"province" validate:"omitempty,max=100"`
	PostalCode         *string `json:"postal_code" validate:"omitempty,max=20"`
	Country            *string `json:"country" validate:"omitempty,max=100"`
	PreferredLanguage  *string `json:"preferred_language" validate:"omitempty,bcp47_language_tag"`
	DietaryPreferences *string `json:"dietary_preferences" validate:"omitempty,max=500"`
	EmailNotifications *bool   `json:"email_notifications"`
	SMSNotifications   *bool   `json:"sms_notifications"`
	PushNotifications  *bool   `json:"push_notifications"`
}

func (r *ProfileUpdateRequest) toUpdate() ProfileUpdate {
	return ProfileUpdate{
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Phone:              r.Phone,
		StreetAddress:      r.StreetAddress,
		City:               r.City,
		Province:           r.Province,
		PostalCode:         r.PostalCode,
		Country:            r.Country,
		PreferredLanguage:  r.PreferredLanguage,
		DietaryPreferences: r.DietaryPreferences,
		EmailNotifications: r.EmailNotifications,
		SMSNotifications:   r.SMSNotifications,
		PushNotifications:  r.PushNotifications,
	}
}

// GroupRequest represents the request body for creating or ensuring a group.
type GroupRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// GroupUpdateRequest represents a partial group update.
type GroupUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// MembersRequest represents a set of customer IDs for membership changes.
type MembersRequest struct {
	CustomerIDs []string `json:"customer_ids" validate:"required,min=1,dive,uuid"`
}

// NoteRequest represents the request body for a customer note.
type NoteRequest struct {
	Note string `json:"note" validate:"required,min=1,max=2000"`
}

// GetMyProfile handles GET /me/profile.
func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCustomer(r.Context(), httputil.GetCustomerID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, c)
}

// UpdateMyProfile handles PATCH /me/profile.
func (h *Handler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	h.updateProfile(w, r, httputil.GetCustomerID(r.Context()))
}

// UpdateCustomer handles PATCH /customers/{id}.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	h.updateProfile(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, customerID string) {
	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	c, err := h.service.UpdateProfile(r.Context(), customerID, req.toUpdate())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, c)
}

// ListCustomers handles GET /customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	filter := CustomerFilter{
		Search: r.URL.Query().Get("search"),
	}
	if groupID := r.URL.Query().Get("group_id"); groupID != "" {
		filter.GroupID = &groupID
	}
	if r.URL.Query().Get("active") == "true" {
		filter.ActiveOnly = true
	}

	list, err := h.service.ListCustomers(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// GetCustomer handles GET /customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, c)
}

// ActivateCustomer handles POST /customers/{id}/activate.
func (h *Handler) ActivateCustomer(w http.ResponseWriter, r *http.Request) {
	h.setCustomerActive(w, r, true)
}

// DeactivateCustomer handles POST /customers/{id}/deactivate.
func (h *Handler) DeactivateCustomer(w http.ResponseWriter, r *http.Request) {
	h.setCustomerActive(w, r, false)
}

func (h *Handler) setCustomerActive(w http.ResponseWriter, r *http.Request, active bool) {
	if err := h.service.SetCustomerActive(r.Context(), chi.URLParam(r, "id"), active); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListGroups handles GET /groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListGroups(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// CreateGroup handles POST /groups.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	g, err := h.service.CreateGroup(r.Context(), req.Name, req.Description, httputil.GetCustomerID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, g)
}

// EnsureGroup handles POST /groups/ensure.
func (h *Handler) EnsureGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	g, err := h.service.EnsureGroup(r.Context(), req.Name, req.Description, httputil.GetCustomerID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, g)
}

// GetGroup handles GET /groups/{id}.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, g)
}

// UpdateGroup handles PATCH /groups/{id}.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	g, err := h.service.UpdateGroup(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, g)
}

// DeleteGroup handles DELETE /groups/{id}.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteGroup(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListGroupMembers handles GET /groups/{id}/members.
func (h *Handler) ListGroupMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListGroupMembers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, members)
}

// AddGroupMembers handles POST /groups/{id}/members.
func (h *Handler) AddGroupMembers(w http.ResponseWriter, r *http.Request) {
	h.changeMembers(w, r, h.service.AddGroupMembers)
}

// RemoveGroupMembers handles DELETE /groups/{id}/members.
func (h *Handler) RemoveGroupMembers(w http.ResponseWriter, r *http.Request) {
	h.changeMembers(w, r, h.service.RemoveGroupMembers)
}

func (h *Handler) changeMembers(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, groupID string, customerIDs []string) (int64, error)) {
	var req MembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	affected, err := op(r.Context(), chi.URLParam(r, "id"), req.CustomerIDs)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"updated": affected})
}

// AddNote handles POST /customers/{id}/notes.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	n, err := h.service.AddNote(r.Context(), chi.URLParam(r, "id"), req.Note, httputil.GetCustomerID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, n)
}

// ListNotes handles GET /customers/{id}/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListNotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, notes)
}

// UpdateNote handles PUT /customers/{id}/notes/{noteID}.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	n, err := h.service.UpdateNote(r.Context(), chi.URLParam(r, "noteID"), req.Note)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /customers/{id}/notes/{noteID}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteNote(r.Context(), chi.URLParam(r, "noteID")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
