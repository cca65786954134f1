package server

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/jrsteele09/go-customer-auth/auth"
	"github.com/jrsteele09/go-customer-auth/oauthmodel"
	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+s.callbackPath, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteStatus, ChainMiddleware(s.StatusHandler(), s.HTMLMiddleWare()...))
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Message}}<p>{{.Message}}</p>{{end}}
<p><a href="/login">Sign in</a> | <a href="/logout">Sign out</a> | <a href="/status">Status</a></p>
</body>
</html>
`))

type page struct {
	Title   string
	Message string
}

func renderPage(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, p); err != nil {
		log.Err(err).Msg("render page")
	}
}

func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, http.StatusOK, page{
			Title:   "Customer account",
			Message: "Session state: " + string(s.session.State()),
		})
	}
}

// LoginHandler starts a login and redirects the browser to the authorize
// endpoint. ?locale= and ?prompt=none are passed through.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := auth.AuthorizationOptions{Locale: q.Get(ParamLocale)}
		if oauthmodel.PromptType(q.Get(oauthmodel.ParamPrompt)) == oauthmodel.PromptNone {
			opts.Prompt = oauthmodel.PromptNone
		}

		ctx, rs := withResponder(r.Context(), w, r)
		if err := s.session.Login(ctx, opts); err != nil {
			logError(r.Method, r.URL.Path, err)
			if !rs.redirected() {
				renderPage(w, http.StatusInternalServerError, page{Title: "Sign in could not start", Message: err.Error()})
			}
			return
		}
		if !rs.redirected() {
			// navigation went to the fallback, e.g. a desktop browser
			http.Redirect(w, r, RouteIndex, http.StatusSeeOther)
		}
	}
}

// CallbackHandler consumes the authorization response and redirects to the
// same path without the code and state, so a reload or the back button can
// never present them again. The clean path renders the result.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsCallback(r.URL) {
			s.renderCallbackResult(w)
			return
		}

		out, err := s.session.HandleCallback(r.Context(), requestURL(r))
		if err != nil {
			logError(r.Method, r.URL.Path, err)
		}
		if out == nil || !out.Replayed {
			s.recordCallback(CallbackResult{Outcome: out, Err: err})
		}
		http.Redirect(w, r, auth.StripCallbackParams(r.URL), http.StatusSeeOther)
	}
}

func (s *Server) renderCallbackResult(w http.ResponseWriter) {
	res := s.lastCallback()
	switch {
	case res == nil:
		renderPage(w, http.StatusNotFound, page{Title: "No sign in in progress"})
	case res.Err != nil:
		msg := res.Err.Error()
		if res.Outcome != nil && res.Outcome.Retryable {
			msg += " (the sign in can be retried)"
		}
		renderPage(w, http.StatusBadRequest, page{Title: "Sign in failed", Message: msg})
	case res.Outcome != nil && res.Outcome.Tokens == nil:
		renderPage(w, http.StatusOK, page{Title: "Authorization code received", Message: "You can close this window."})
	default:
		renderPage(w, http.StatusOK, page{Title: "Signed in", Message: "You can close this window."})
	}
}

// LogoutHandler clears the session and, when the provider can end its own
// session, redirects there.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, rs := withResponder(r.Context(), w, r)
		if err := s.session.Logout(ctx); err != nil {
			logError(r.Method, r.URL.Path, err)
		}
		if !rs.redirected() {
			http.Redirect(w, r, RouteIndex, http.StatusSeeOther)
		}
	}
}

func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s.session.Diagnostics(r.Context())); err != nil {
			logError(r.Method, r.URL.Path, err)
		}
	}
}
