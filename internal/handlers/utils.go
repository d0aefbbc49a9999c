package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nsmonitor/apiserver/internal/cache"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/internal/storage"
	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"github.com/sirupsen/logrus"
)

const (
	defaultPage  = 1
	defaultLimit = 15
	maxLimit     = 100
)

type contextKey string

const (
	contextSubjectKey contextKey = "sub"
	contextTokenKey   contextKey = "token"
)

// Response is the success envelope.
type Response struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

// ErrorResponse is the failure envelope. Error carries the underlying
// cause only in debug mode.
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// PageMeta describes one page of a list.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

func newPageMeta(page, limit, total int) PageMeta {
	last := 1
	if limit > 0 && total > 0 {
		last = (total + limit - 1) / limit
	}
	return PageMeta{CurrentPage: page, PerPage: limit, Total: total, LastPage: last}
}

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextSubjectKey, user)
}

func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextSubjectKey).(types.User)
	if !ok || user.ID < 1 {
		return types.User{}, errors.New("missing subject")
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Message: message, Data: data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Response{Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

func writeValidation(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Message: "The given data was invalid.",
		Errors:  fields,
	})
}

// ErrorReporter maps service and store errors to HTTP responses.
type ErrorReporter struct {
	logger *logrus.Logger
	debug  bool
}

// NewErrorReporter logs server errors to logger. With debug set, the
// cause is also returned to the client.
func NewErrorReporter(logger *logrus.Logger, debug bool) ErrorReporter {
	return ErrorReporter{logger: logger, debug: debug}
}

func (e ErrorReporter) fail(w http.ResponseWriter, r *http.Request, err error) {
	var validation *services.ValidationError
	var rule *services.RuleError
	switch {
	case errors.As(err, &validation):
		writeValidation(w, validation.Fields)
	case errors.As(err, &rule):
		status := http.StatusUnprocessableEntity
		if errors.Is(rule.Kind, services.ErrForbidden) || errors.Is(rule.Kind, services.ErrSystemRole) {
			status = http.StatusForbidden
		}
		writeError(w, status, rule.Message)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "Resource already exists")
	case errors.Is(err, cache.ErrRevocationsFull):
		e.logger.WithError(err).Warn("token revocation refused")
		writeError(w, http.StatusServiceUnavailable, "Too many active sessions. Please try again later.")
	case errors.Is(err, store.ErrInUse):
		writeError(w, http.StatusUnprocessableEntity, "Resource is still referenced by other records")
	default:
		e.serverError(w, r, err)
	}
}

func (e ErrorReporter) serverError(w http.ResponseWriter, r *http.Request, err error) {
	e.logger.WithError(err).WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	}).Error("request failed")

	resp := ErrorResponse{Message: "Server error"}
	if e.debug {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

func parseID(r *http.Request, param string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + strings.TrimSuffix(param, "ID") + " id")
	}
	return id, nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

// parseListQuery reads search, filter, sort and paging parameters.
func parseListQuery(r *http.Request) (types.ListQuery, int, error) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		return types.ListQuery{}, 0, err
	}
	q := r.URL.Query()
	return types.ListQuery{
		Search:    strings.TrimSpace(q.Get("search")),
		Status:    strings.TrimSpace(q.Get("status")),
		Category:  strings.TrimSpace(q.Get("category")),
		Role:      strings.TrimSpace(q.Get("role")),
		SortBy:    strings.TrimSpace(q.Get("sort_by")),
		SortOrder: strings.TrimSpace(q.Get("sort_order")),
		Offset:    offset,
		Limit:     limit,
	}, page, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
