package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/platinummonkey/themeforge/pkg/deferred"
	"github.com/platinummonkey/themeforge/pkg/httputil"
)

// createSession handles POST /api/v1/sessions. The body is optional.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := httputil.ParseJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	t, err := s.themeFromRequest(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	session := s.sessions.Create(s.baseCtx, t)
	httputil.WriteCreated(w, sessionResponse(session))
}

// getSession handles GET /api/v1/sessions/{id}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, sessionResponse(session))
}

// deleteSession handles DELETE /api/v1/sessions/{id}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.sessions.Delete(id); err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}

// setSessionTheme handles PUT /api/v1/sessions/{id}/theme. Registered
// producers re-run in the background; poll /updates for the results.
func (s *Server) setSessionTheme(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req ThemeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	t, err := s.themeFromRequest(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := session.SetTheme(t); err != nil {
		if errors.Is(err, deferred.ErrSessionClosed) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, sessionResponse(session))
}

// getSessionDependencies handles GET /api/v1/sessions/{id}/dependencies.
// Rendering registers the theme producer with the session, so later theme
// changes produce updates.
func (s *Server) getSessionDependencies(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	deps, err := s.producer.Render(r.Context(), deferred.Env{Session: session})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, DependenciesResponse{
		Theme:        session.ActiveTheme().String(),
		Dependencies: s.withLinks(deps),
	})
}

// getSessionUpdates handles GET /api/v1/sessions/{id}/updates, draining the
// re-run results collected since the last call
func (s *Server) getSessionUpdates(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	updates := session.Updates()
	if updates == nil {
		updates = []deferred.Update{}
	}
	httputil.WriteSuccess(w, UpdatesResponse{Updates: updates})
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*deferred.LiveSession, bool) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return nil, false
	}
	session, err := s.sessions.Get(id)
	if err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return nil, false
	}
	return session, true
}

func sessionResponse(session *deferred.LiveSession) SessionResponse {
	listeners := session.Listeners()
	if listeners == nil {
		listeners = []string{}
	}
	return SessionResponse{
		ID:        session.ID(),
		Theme:     session.ActiveTheme().String(),
		Listeners: listeners,
	}
}
