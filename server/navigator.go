package server

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/jrsteele09/go-customer-auth/session"
	"github.com/pkg/errors"
)

type responderKey struct{}

// responder lets a navigation that happens while a request is being served
// become that request's redirect.
type responder struct {
	w    http.ResponseWriter
	r    *http.Request
	used atomic.Bool
}

func withResponder(ctx context.Context, w http.ResponseWriter, r *http.Request) (context.Context, *responder) {
	rs := &responder{w: w, r: r}
	return context.WithValue(ctx, responderKey{}, rs), rs
}

func (rs *responder) redirected() bool {
	return rs.used.Load()
}

// RedirectNavigator answers a session navigation with a 302 when the session
// call was made from a Server handler, and hands it to Fallback otherwise.
type RedirectNavigator struct {
	Fallback session.Navigator
}

var _ session.Navigator = RedirectNavigator{}

func (n RedirectNavigator) Navigate(ctx context.Context, url string) error {
	if rs, ok := ctx.Value(responderKey{}).(*responder); ok && rs.used.CompareAndSwap(false, true) {
		http.Redirect(rs.w, rs.r, url, http.StatusFound)
		return nil
	}
	if n.Fallback == nil {
		return errors.New("[RedirectNavigator.Navigate] no browser to navigate")
	}
	return n.Fallback.Navigate(ctx, url)
}
