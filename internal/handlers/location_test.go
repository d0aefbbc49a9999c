package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocations struct {
	lgas  map[int]types.Lga
	wards map[int]types.Ward
}

func (s stubLocations) ListLgas(context.Context) ([]types.Lga, error) {
	out := []types.Lga{}
	for _, l := range s.lgas {
		out = append(out, l)
	}
	return out, nil
}

func (s stubLocations) GetLga(_ context.Context, id int) (types.Lga, error) {
	l, ok := s.lgas[id]
	if !ok {
		return types.Lga{}, store.ErrNotFound
	}
	return l, nil
}

func (s stubLocations) ListWards(_ context.Context, lgaID int) ([]types.Ward, error) {
	out := []types.Ward{}
	for _, w := range s.wards {
		if lgaID == 0 || w.LgaID == lgaID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s stubLocations) GetWard(_ context.Context, id int) (types.Ward, error) {
	w, ok := s.wards[id]
	if !ok {
		return types.Ward{}, store.ErrNotFound
	}
	return w, nil
}

func TestLocationRoutes(t *testing.T) {
	locations := services.NewLocationService(stubLocations{
		lgas:  map[int]types.Lga{1: {ID: 1, Name: "Lafia"}},
		wards: map[int]types.Ward{3: {ID: 3, LgaID: 1, Name: "Arikya", Code: "LF-03"}},
	})
	router := chi.NewRouter()
	LocationRouter(router, NewLocationHandler(locations, testReporter()))

	tests := []struct {
		path   string
		status int
	}{
		{"/wards/3", http.StatusOK},
		{"/wards/99", http.StatusNotFound},
		{"/wards/abc", http.StatusBadRequest},
		{"/wards?lga_id=1", http.StatusOK},
		{"/lgas/1/wards", http.StatusOK},
		{"/lgas/7/wards", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wards/3", nil))
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Arikya", data["name"])
	assert.Equal(t, float64(1), data["lga_id"])
}

func TestToggleStatusAcceptsPatchAndPost(t *testing.T) {
	routers := map[string]func(chi.Router){
		"users":       func(r chi.Router) { UserRouter(r, &UserHandler{}) },
		"roles":       func(r chi.Router) { RoleRouter(r, &RoleHandler{}) },
		"permissions": func(r chi.Router) { PermissionRouter(r, &PermissionHandler{}) },
	}
	for name, register := range routers {
		t.Run(name, func(t *testing.T) {
			router := chi.NewRouter()
			register(router)

			methods := map[string]bool{}
			err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
				if strings.HasSuffix(route, "/toggle-status") {
					methods[method] = true
				}
				return nil
			})
			require.NoError(t, err)
			assert.True(t, methods[http.MethodPatch], "PATCH missing")
			assert.True(t, methods[http.MethodPost], "POST missing")
		})
	}
}
