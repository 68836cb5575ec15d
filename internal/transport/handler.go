package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nitro/iiifviewer/internal/domain"
	"github.com/nitro/iiifviewer/internal/service"
)

type handlerSessionService interface {
	Create(ctx context.Context, rawURL, language string) (*service.Session, error)
	Load(ctx context.Context, id string) (*service.Session, error)
	Update(ctx context.Context, id string, fn func(*service.Session) error) (*service.Session, error)
}

type handlerViewerService interface {
	Members(*service.Session) ([]service.CollectionMember, error)
	SelectMember(context.Context, *service.Session, int) error
	Render(context.Context, *service.Session, service.RenderState) (service.RenderResult, error)
	RenderOverlay(context.Context, *service.Session, service.RenderState) ([]byte, error)
	SaveRegion(*service.Session, int, domain.Rect, string, service.RenderState) (service.SavedRegion, error)
	Regions(*service.Session, int, service.RenderState) ([]service.RoIView, error)
	RegionURL(*service.Session, int, int, service.RenderState) (string, error)
	Zoom(*service.Session, int, service.Viewport, service.RenderState) (string, bool, error)
	ChoiceStack(context.Context, *service.Session, service.StackRequest) ([]service.StackEntry, error)
	Describe(*service.Session) (service.Description, error)
	Summary(*service.Session) (service.Summary, error)
}

type handler struct {
	writer         writer
	logger         zerolog.Logger
	traceExtractor traceExtractor
	sessions       handlerSessionService
	viewer         handlerViewerService
}

type sessionResponse struct {
	ID          string                     `json:"id"`
	URL         string                     `json:"url"`
	ManifestURL string                     `json:"manifestUrl,omitempty"`
	Pending     bool                       `json:"pending"`
	Members     []service.CollectionMember `json:"members,omitempty"`
}

func (h handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.writer.error(r.Context(), w, "Endpoint not found", nil, http.StatusNotFound)
}

func (h handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writer.error(r.Context(), w, "Method not allowed", nil, http.StatusMethodNotAllowed)
}

func (h handler) health(w http.ResponseWriter, r *http.Request) {
	h.writer.response(r.Context(), w, map[string]any{"status": "healthy"}, http.StatusOK)
}

func (h handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		Language string `json:"language"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		h.writer.error(r.Context(), w, "Missing 'url'", nil, http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Create(r.Context(), req.URL, req.Language)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.sessionResponse(s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, resp, http.StatusCreated)
}

func (h handler) session(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	summary, err := h.viewer.Summary(s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, summary, http.StatusOK)
}

func (h handler) selectMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.sessions.Update(r.Context(), chi.URLParam(r, "id"), func(s *service.Session) error {
		return h.viewer.SelectMember(r.Context(), s, req.Index)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.sessionResponse(s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, resp, http.StatusOK)
}

func (h handler) render(w http.ResponseWriter, r *http.Request) {
	var state service.RenderState
	if !h.decode(w, r, &state) {
		return
	}
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	result, err := h.viewer.Render(r.Context(), s, state)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, result, http.StatusOK)
}

func (h handler) overlay(w http.ResponseWriter, r *http.Request) {
	var state service.RenderState
	if !h.decode(w, r, &state) {
		return
	}
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	payload, err := h.viewer.RenderOverlay(r.Context(), s, state)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.raw(r.Context(), w, payload, "image/png", http.StatusOK)
}

func (h handler) saveRegion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Canvas  int                 `json:"canvas"`
		Rect    domain.Rect         `json:"rect"`
		Comment string              `json:"comment"`
		State   service.RenderState `json:"state"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	var saved service.SavedRegion
	_, err := h.sessions.Update(r.Context(), chi.URLParam(r, "id"), func(s *service.Session) error {
		var err error
		saved, err = h.viewer.SaveRegion(s, req.Canvas, req.Rect, req.Comment, req.State)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, saved, http.StatusCreated)
}

func (h handler) listRegions(w http.ResponseWriter, r *http.Request) {
	canvas, ok := h.intParam(w, r, "canvas")
	if !ok {
		return
	}
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	regions, err := h.viewer.Regions(s, canvas, service.RenderState{})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, regions, http.StatusOK)
}

func (h handler) regionURL(w http.ResponseWriter, r *http.Request) {
	canvas, ok := h.intParam(w, r, "canvas")
	if !ok {
		return
	}
	roi, ok := h.intParam(w, r, "roi")
	if !ok {
		return
	}
	var state service.RenderState
	if !h.decode(w, r, &state) {
		return
	}
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	u, err := h.viewer.RegionURL(s, canvas, roi, state)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, map[string]string{"url": u}, http.StatusOK)
}

func (h handler) zoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Canvas   int                 `json:"canvas"`
		Viewport service.Viewport    `json:"viewport"`
		State    service.RenderState `json:"state"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	u, zoomed, err := h.viewer.Zoom(s, req.Canvas, req.Viewport, req.State)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, map[string]any{"url": u, "zoomed": zoomed}, http.StatusOK)
}

func (h handler) stack(w http.ResponseWriter, r *http.Request) {
	var req service.StackRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	entries, err := h.viewer.ChoiceStack(r.Context(), s, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, entries, http.StatusOK)
}

func (h handler) describe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	description, err := h.viewer.Describe(s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writer.response(r.Context(), w, description, http.StatusOK)
}

func (h handler) sessionResponse(s *service.Session) (sessionResponse, error) {
	resp := sessionResponse{ID: s.ID, URL: s.URL, ManifestURL: s.ManifestURL, Pending: s.Pending()}
	if s.Pending() {
		members, err := h.viewer.Members(s)
		if err != nil {
			return sessionResponse{}, err
		}
		resp.Members = members
	}
	return resp, nil
}

func (h handler) load(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	s, err := h.sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return s, true
}

// decode reads the JSON body. An empty body keeps the zero value.
func (h handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(target)
	if err != nil && !errors.Is(err, io.EOF) {
		h.writer.error(r.Context(), w, "Invalid request body", err, http.StatusBadRequest)
		return false
	}
	return true
}

func (h handler) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		h.writer.error(r.Context(), w, fmt.Sprintf("Invalid '%s' parameter", name), nil, http.StatusBadRequest)
		return 0, false
	}
	return value, true
}

func (h handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	reqID := chiMiddleware.GetReqID(r.Context())
	logger, lerr := h.traceExtractor(r.Context(), h.logger)
	if lerr != nil {
		logger = h.logger
	}

	if ctxErr := r.Context().Err(); ctxErr != nil {
		logger.Err(ctxErr).Str("requestID", reqID).Msg("Context error")
		if errors.Is(ctxErr, context.Canceled) {
			return
		}
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusRequestTimeout)
		return
	}

	status := statusFromError(err)
	logger.Err(err).Str("requestID", reqID).Msg("Error")
	if status == http.StatusInternalServerError {
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, status)
		return
	}
	h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), err, status)
}

// Remove all the parameters, but the token ones, from the URL. Other parameters can then be passed without making
// the url signature invalid.
func urlToVerify(r *http.Request) string {
	u := *r.URL
	q := u.Query()
	for key := range q {
		if slices.Contains([]string{"token", "token-ttl"}, key) {
			continue
		}
		q.Del(key)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
