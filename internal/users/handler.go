package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/castellan/castellan/internal/auth"
	"github.com/castellan/castellan/internal/platform/httpx"
	"github.com/castellan/castellan/internal/rbac"
)

// Handler manages the admin user-management endpoints. Routes are
// mounted behind the admin role gate by the router.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	permissions *rbac.Service
	validator   *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, permissions *rbac.Service) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		permissions: permissions,
		validator:   validator.New(),
	}
}

// MountRoutes registers user management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Put("/{id}/change-password", h.changePassword)
	r.Post("/{id}/activate", h.activate)
	r.Post("/{id}/block", h.block)
	r.Post("/{id}/permissions/{permissionID}", h.assignPermission)
	r.Delete("/{id}/permissions/{permissionID}", h.removePermission)
}

type listResponse struct {
	Users      []auth.UserView `json:"users"`
	TotalUsers int64           `json:"total_users"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	filter := ListFilter{
		Email:  query.Get("email"),
		Status: query.Get("status"),
		Role:   query.Get("role"),
		Page:   page,
	}
	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]auth.UserView, len(result.Users))
	for i := range result.Users {
		views[i] = auth.NewUserView(&result.Users[i])
	}
	httpx.JSON(w, http.StatusOK, listResponse{Users: views, TotalUsers: result.Total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, auth.NewUserView(user))
}

type createRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	Roles    []string `json:"roles" validate:"omitempty,dive,required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	roles, err := parseRoles(req.Roles)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Create(r.Context(), CreateInput{
		Email:    req.Email,
		Password: req.Password,
		Roles:    roles,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, auth.NewUserView(user))
}

type updateRequest struct {
	Email string   `json:"email" validate:"omitempty,email"`
	Roles []string `json:"roles" validate:"omitempty,dive,required"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	roles, err := parseRoles(req.Roles)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Update(r.Context(), id, UpdateInput{Email: req.Email, Roles: roles})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, auth.NewUserView(user))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ChangePassword(r.Context(), id, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Activate)
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Block)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64) (*auth.User, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := apply(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, auth.NewUserView(user))
}

func (h *Handler) assignPermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := pathID(w, r, "permissionID")
	if !ok {
		return
	}
	if err := h.permissions.AssignToUser(r.Context(), userID, permissionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removePermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := pathID(w, r, "permissionID")
	if !ok {
		return
	}
	permission, err := h.permissions.GetPermission(r.Context(), permissionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.permissions.RemoveFromUser(r.Context(), userID, permission.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+param)
		return 0, false
	}
	return id, true
}

func parseRoles(raw []string) ([]auth.Role, error) {
	roles := make([]auth.Role, 0, len(raw))
	for _, value := range raw {
		role, err := auth.ParseRole(value)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}
