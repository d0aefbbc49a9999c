package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
)

// RoleHandler provides role administration endpoints.
type RoleHandler struct {
	roles       *services.RoleService
	permissions *services.PermissionService
	ErrorReporter
}

func NewRoleHandler(roles *services.RoleService, permissions *services.PermissionService, reporter ErrorReporter) *RoleHandler {
	return &RoleHandler{roles: roles, permissions: permissions, ErrorReporter: reporter}
}

// RoleRouter registers role routes on the given router.
func RoleRouter(r chi.Router, handler *RoleHandler) {
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Get("/permissions", handler.Permissions)
	r.Route("/{roleID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Put("/", handler.Update)
		r.Delete("/", handler.Delete)
		r.Patch("/toggle-status", handler.ToggleStatus)
		r.Post("/toggle-status", handler.ToggleStatus)
		r.Post("/assign-permission", handler.AssignPermission)
		r.Post("/revoke-permission", handler.RevokePermission)
		r.Post("/sync-permissions", handler.SyncPermissions)
	})
}

type permissionRequest struct {
	PermissionID int `json:"permission_id"`
}

type syncPermissionsRequest struct {
	Permissions []int `json:"permissions"`
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	q, page, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	roles, total, err := h.roles.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: roles, Meta: newPageMeta(page, q.Limit, total)})
}

// Permissions lists the active permissions grouped by category for the
// role editor.
func (h *RoleHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	groups, err := h.permissions.Grouped(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", groups)
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := h.roles.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", role)
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.RoleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	role, err := h.roles.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Role created successfully", role)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in services.RoleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	role, err := h.roles.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Role updated successfully", role)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.roles.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Role deleted successfully")
}

func (h *RoleHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := h.roles.ToggleStatus(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Role status updated successfully", role)
}

func (h *RoleHandler) AssignPermission(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.permissionRequest(w, r)
	if !ok {
		return
	}
	if err := h.roles.AssignPermission(r.Context(), id, req.PermissionID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Permission assigned successfully")
}

func (h *RoleHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.permissionRequest(w, r)
	if !ok {
		return
	}
	if err := h.roles.RevokePermission(r.Context(), id, req.PermissionID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Permission revoked successfully")
}

func (h *RoleHandler) SyncPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req syncPermissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Permissions == nil {
		writeValidation(w, map[string][]string{"permissions": {"The permissions field must be present."}})
		return
	}
	if err := h.roles.SyncPermissions(r.Context(), id, req.Permissions); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Permissions synchronized successfully")
}

func (h *RoleHandler) permissionRequest(w http.ResponseWriter, r *http.Request) (int, permissionRequest, bool) {
	id, err := parseID(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, permissionRequest{}, false
	}
	var req permissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return 0, permissionRequest{}, false
	}
	return id, req, true
}
