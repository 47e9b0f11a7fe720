// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"realty/internal/adapters/auth"
	"realty/internal/app"
	"realty/internal/domain"
)

type Handlers struct {
	Areas  *app.AreaService
	Q      *app.QueryService
	Auth   *auth.Verifier
	Limits Limits
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type areaImagesResponse struct {
	Message string              `json:"message"`
	Images  []domain.ImageAsset `json:"images"`
}

type subAreaResponse struct {
	Message string         `json:"message"`
	SubArea domain.SubArea `json:"subArea"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	// the admin console and the public site use the /api prefix
	s.mux.Route("/areas", h.areaRoutes)
	s.mux.Route("/api/areas", h.areaRoutes)
}

func (h *Handlers) areaRoutes(r chi.Router) {
	r.Get("/", h.listAreas)
	r.Get("/{id}", h.getArea)

	r.Group(func(r chi.Router) {
		if h.Auth != nil {
			r.Use(RequireAuth(h.Auth))
		}
		r.Post("/", h.createArea)
		r.Put("/{id}", h.updateArea)
		r.Delete("/{id}", h.deleteArea)
		r.Post("/{id}/subareas", h.addSubArea)
		// public ids may contain '/', so the fragment is a catch-all
		r.Delete("/{id}/images/*", h.deleteAreaImage)
		r.Delete("/{id}/subareas/{subArea}/images/*", h.deleteSubAreaImage)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain error taxonomy onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload):
		writeProblem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, domain.ErrUpstreamStorage):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("image store failure")
		writeProblem(w, http.StatusBadGateway, "Image Store Failure", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// matchMode reads ?match=; absent means the service default.
func matchMode(r *http.Request) (app.MatchMode, error) {
	raw := r.URL.Query().Get("match")
	if raw == "" {
		return "", nil
	}
	m, ok := app.ParseMatchMode(raw)
	if !ok {
		return "", fmt.Errorf("%w: match must be exact or suffix, got %q", domain.ErrInvalidPayload, raw)
	}
	return m, nil
}

func fragmentParam(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}

// ---- reads ----

func (h *Handlers) listAreas(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.ListAreas(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getArea(w http.ResponseWriter, r *http.Request) {
	a, err := h.Q.GetArea(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, a)
}

// ---- writes ----

func (h *Handlers) createArea(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(w, r, h.Limits)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Areas.Create(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Str("area_id", a.ID).Str("subject", auth.Subject(r.Context())).Msg("area created via api")
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handlers) updateArea(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(w, r, h.Limits)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Areas.Update(r.Context(), chi.URLParam(r, "id"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) deleteArea(w http.ResponseWriter, r *http.Request) {
	if err := h.Areas.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Area deleted successfully"})
}

func (h *Handlers) addSubArea(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(w, r, h.Limits)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Areas.AddSubArea(r.Context(), chi.URLParam(r, "id"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) deleteAreaImage(w http.ResponseWriter, r *http.Request) {
	mode, err := matchMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Areas.DeleteAreaImage(r.Context(), chi.URLParam(r, "id"), fragmentParam(r), mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, areaImagesResponse{Message: "Image deleted successfully", Images: a.Images})
}

func (h *Handlers) deleteSubAreaImage(w http.ResponseWriter, r *http.Request) {
	mode, err := matchMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := app.ParseSubAreaRef(chi.URLParam(r, "subArea"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Areas.DeleteSubAreaImage(r.Context(), chi.URLParam(r, "id"), ref, fragmentParam(r), mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	si, err := app.ResolveSubArea(a, ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subAreaResponse{Message: "Image deleted successfully", SubArea: a.SubAreas[si]})
}
