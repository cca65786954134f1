// Package server is the loopback HTTP listener that receives the
// authorization redirect and drives a session from a browser.
package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/jrsteele09/go-customer-auth/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// CallbackResult is what one redirect to the callback route produced.
type CallbackResult struct {
	Outcome *session.CallbackOutcome
	Err     error
}

type Server struct {
	env          string // Environment (e.g., "DEV", "PROD")
	mux          *http.ServeMux
	routes       []string
	session      *session.Session
	callbackPath string

	callbacks chan CallbackResult

	mu   sync.Mutex
	last *CallbackResult
}

type Option func(*Server)

// WithCallbackPathFrom serves the callback route on the path of redirectURI
// instead of RouteCallback.
func WithCallbackPathFrom(redirectURI string) Option {
	return func(s *Server) {
		u, err := url.Parse(redirectURI)
		if err != nil || u.Path == "" {
			return
		}
		s.callbackPath = u.Path
	}
}

func New(env string, sess *session.Session, opts ...Option) (*Server, error) {
	if sess == nil {
		return nil, errors.New("[server.New] session is required")
	}

	s := &Server{
		env:          env,
		mux:          http.NewServeMux(),
		session:      sess,
		callbackPath: RouteCallback,
		callbacks:    make(chan CallbackResult, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch s.callbackPath {
	case RouteIndex, RouteLogin, RouteLogout, RouteStatus:
		return nil, errors.Errorf("[server.New] callback path %q clashes with another route", s.callbackPath)
	}
	if !strings.HasPrefix(s.callbackPath, "/") {
		return nil, errors.Errorf("[server.New] callback path %q cannot be served", s.callbackPath)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Callbacks delivers the result of each redirect the callback route handles.
// Results nobody is waiting for are dropped once the buffer is full.
func (s *Server) Callbacks() <-chan CallbackResult {
	return s.callbacks
}

// CallbackPath is the path the callback route is served on.
func (s *Server) CallbackPath() string {
	return s.callbackPath
}

func (s *Server) recordCallback(res CallbackResult) {
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	select {
	case s.callbacks <- res:
	default:
		log.Debug().Msg("callback result not collected")
	}
}

func (s *Server) lastCallback() *CallbackResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msg(fmt.Sprintf("[%-19s] %s", colourMethod(method), path))
}

func logError(method, path string, err error) {
	log.Error().Msg(fmt.Sprintf("[%-19s] %s %s", colourMethod(method), path, Red+err.Error()+ResetColor))
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

// requestURL rebuilds the absolute URL the browser was sent to.
func requestURL(r *http.Request) string {
	return getScheme(r) + "://" + r.Host + r.URL.RequestURI()
}
