package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/platinummonkey/themeforge/pkg/bundle"
	"github.com/platinummonkey/themeforge/pkg/httputil"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/compiler"
	"github.com/platinummonkey/themeforge/pkg/stylegen/store"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

var errAttachmentsNotAllowed = errors.New("theme definitions posted over HTTP may not reference attachment files")

// getDependencies handles GET /api/v1/dependencies?theme=<spec>
func (s *Server) getDependencies(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Resolve(httputil.ParseQueryString(r, "theme", ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, ok := compileOptions(w, r)
	if !ok {
		return
	}
	s.writeDependencies(w, r, t, opts)
}

// postDependencies handles POST /api/v1/dependencies with a ThemeRequest body
func (s *Server) postDependencies(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	t, err := s.themeFromRequest(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, ok := compileOptions(w, r)
	if !ok {
		return
	}
	s.writeDependencies(w, r, t, opts)
}

func (s *Server) writeDependencies(w http.ResponseWriter, r *http.Request, t *theme.Theme, opts stylegen.CompileOptions) {
	deps, err := s.engine.ThemeDependencies(r.Context(), t, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, DependenciesResponse{
		Theme:        t.String(),
		Dependencies: s.withLinks(deps),
	})
}

// compileOptions reads the optional source_map query flag
func compileOptions(w http.ResponseWriter, r *http.Request) (stylegen.CompileOptions, bool) {
	opts := stylegen.DefaultCompileOptions()
	sourceMap, err := httputil.ParseQueryBool(r, "source_map", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return opts, false
	}
	opts.SourceMap = sourceMap
	return opts, true
}

// themeFromRequest resolves a spec or parses an inline definition
func (s *Server) themeFromRequest(req ThemeRequest) (*theme.Theme, error) {
	if req.Definition == nil {
		return s.engine.Resolve(req.Theme)
	}

	data, err := json.Marshal(req.Definition)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", theme.ErrInvalidThemeSpec, err)
	}
	t, err := theme.Parse(data, theme.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", theme.ErrInvalidThemeSpec, err)
	}
	if len(t.Attachments()) > 0 {
		return nil, errAttachmentsNotAllowed
	}
	return s.engine.Resolve(t)
}

// withLinks adds /assets URLs to records served from the store
func (s *Server) withLinks(deps []bundle.Dependency) []Dependency {
	out := make([]Dependency, len(deps))
	for i, dep := range deps {
		out[i] = Dependency{Dependency: dep}
		dir, ok := s.store.AssetDir(dep.BaseDir)
		if !ok {
			continue
		}
		links := &Links{
			Stylesheet: assetURL(dir, dep.Stylesheet),
			Script:     assetURL(dir, dep.Script),
		}
		for _, f := range dep.AuxFiles {
			links.AuxFiles = append(links.AuxFiles, assetURL(dir, f))
		}
		out[i].Links = links
	}
	return out
}

func assetURL(dir, file string) string {
	if file == "" {
		return ""
	}
	u := url.URL{Path: path.Join("/assets", dir, file)}
	return u.EscapedPath()
}

// getAsset handles GET /assets/{dir}/{file}
func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	file, err := s.store.Resolve(vars["dir"], vars["file"])
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		httputil.WriteNotFoundError(w, "asset not found")
		return
	}

	// Entries are immutable once committed
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, file)
}

// writeError maps engine errors to HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var compileErr *compiler.CompileError
	switch {
	case errors.Is(err, theme.ErrInvalidThemeSpec),
		errors.Is(err, theme.ErrWrongThemeKind),
		errors.Is(err, theme.ErrUnknownVersion),
		errors.Is(err, errAttachmentsNotAllowed):
		httputil.WriteBadRequest(w, err.Error())
	case errors.As(err, &compileErr):
		httputil.WriteDetailedError(w, http.StatusUnprocessableEntity, compiler.ErrCompileFailed, map[string]string{
			"compiler":   compileErr.Compiler,
			"diagnostic": compileErr.Diagnostic,
		})
	case errors.Is(err, compiler.ErrCompilerUnavailable):
		httputil.WriteServiceUnavailable(w, err.Error())
	case errors.Is(err, compiler.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		httputil.WriteErrorMessage(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, store.ErrInvalidPath):
		httputil.WriteBadRequest(w, err.Error())
	default:
		observability.FromContextOr(r.Context(), s.logger).WithError(err).Error("request failed")
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}
