package adminapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/model"
)

// decodeStrict decodes a single JSON object from r, rejecting any field
// (at any nesting level, including inside "require") not present in v's
// schema.
func decodeStrict(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type handlers struct {
	provider config.MutableProvider
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) listRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.provider.RouteList(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

func (h *handlers) getRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	route, found, err := h.provider.RouteGet(r.Context(), id)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !found {
		http.Error(w, "route not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (h *handlers) createRoute(w http.ResponseWriter, r *http.Request) {
	var route model.RouteDef
	if err := decodeStrict(r.Body, &route); err != nil {
		http.Error(w, "malformed route body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateRoute(route); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.provider.RouteCreate(r.Context(), route)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handlers) updateRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var route model.RouteDef
	if err := decodeStrict(r.Body, &route); err != nil {
		http.Error(w, "malformed route body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateRoute(route); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, found, err := h.provider.RouteUpdate(r.Context(), id, route)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !found {
		http.Error(w, "route not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handlers) deleteRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	deleted, err := h.provider.RouteDelete(r.Context(), id)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !deleted {
		http.Error(w, "route not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logging.CtxErr(r.Context(), err).Msg("admin api: provider error")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "invalid route id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func validateRoute(route model.RouteDef) error {
	if route.Host == "" {
		return errInvalidRoute("host must not be empty")
	}
	if !strings.HasPrefix(route.Path, "/") {
		return errInvalidRoute("path must begin with /")
	}
	return nil
}

type errInvalidRoute string

func (e errInvalidRoute) Error() string { return string(e) }

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
