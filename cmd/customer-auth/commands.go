package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jrsteele09/go-customer-auth/auth"
	"github.com/jrsteele09/go-customer-auth/customerapi"
	"github.com/jrsteele09/go-customer-auth/internal/config"
	"github.com/jrsteele09/go-customer-auth/server"
	"github.com/jrsteele09/go-customer-auth/session"
	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/rs/zerolog/log"
)

// pageGrace keeps the callback server up long enough for the browser to load
// the result page it was redirected to.
const pageGrace = time.Second

type command func(ctx context.Context, c config.Config, args []string) error

var commands = map[string]command{
	"login":        loginCmd,
	"logout":       logoutCmd,
	"status":       statusCmd,
	"refresh":      refreshCmd,
	"silent-check": silentCheckCmd,
	"query":        queryCmd,
}

func loginCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	locale := fs.String("locale", "", "locale for the sign in pages, e.g. fr or pt-BR")
	noBrowser := fs.Bool("no-browser", false, "print the sign in URL instead of opening a browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	displayAppname(c.GetAppName())

	fallback := browserNavigator(os.Stderr)
	if *noBrowser {
		fallback = printNavigator(os.Stderr)
	}
	a, err := newApp(ctx, c, appOptions{
		verifyIDToken: true,
		navigator:     server.RedirectNavigator{Fallback: fallback},
	})
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := server.New(c.GetEnv(), a.session, server.WithCallbackPathFrom(a.authCfg.RedirectURI))
	if err != nil {
		return err
	}
	httpServer, err := listen(c.GetCallbackAddr(), srv)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(httpServer); err != nil {
			log.Err(err).Msg("callback server shutdown")
		}
	}()

	if err := a.session.Login(ctx, auth.AuthorizationOptions{Locale: *locale}); err != nil {
		return err
	}

	res, err := awaitCallback(ctx, srv, c.GetCallbackTimeout())
	if err != nil {
		return err
	}
	if err := settleCallback(ctx, a.session, res, os.Stdout); err != nil {
		return err
	}

	select {
	case <-time.After(pageGrace):
	case <-ctx.Done():
	}
	return nil
}

func awaitCallback(ctx context.Context, srv *server.Server, timeout time.Duration) (server.CallbackResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-srv.Callbacks():
		return res, nil
	case <-timer.C:
		return server.CallbackResult{}, fmt.Errorf("no redirect back from the sign in page within %s", timeout)
	case <-ctx.Done():
		return server.CallbackResult{}, ctx.Err()
	}
}

// settleCallback turns a callback result into output, retrying a transient
// exchange failure once.
func settleCallback(ctx context.Context, sess *session.Session, res server.CallbackResult, out io.Writer) error {
	if res.Err != nil {
		if res.Outcome == nil || !res.Outcome.Retryable {
			return res.Err
		}
		log.Warn().Err(res.Err).Msg("code exchange failed, retrying")
		if _, err := sess.RetryExchange(ctx); err != nil {
			return err
		}
	}

	if code := sess.AuthorizationCode(); code != "" {
		_, err := fmt.Fprintf(out, "Authorization code: %s\n", code)
		return err
	}

	completion := sess.CompleteLogin(ctx)
	if completion.Err != nil {
		return completion.Err
	}
	fmt.Fprintln(out, "Signed in.")
	if completion.Optimistic {
		fmt.Fprintln(out, "Customer details are still loading; run `customer-auth query` to fetch them.")
		return nil
	}
	return writeJSON(out, completion.Customer)
}

func logoutCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, c, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func statusCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, c, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	return writeJSON(os.Stdout, a.session.Diagnostics(ctx))
}

func refreshCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, c, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.store.AutoRefreshTokens(ctx, true)
	if err != nil {
		if errors.Is(err, token.ErrRefreshInvalid) {
			return fmt.Errorf("the session was revoked, sign in again: %w", err)
		}
		return err
	}
	if b == nil {
		return errors.New("no refresh token stored, sign in again")
	}
	fmt.Printf("Access token refreshed, expires at %s\n", b.ExpiresAt().Format(time.RFC3339))
	return nil
}

func silentCheckCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("silent-check", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, c, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	r := a.session.SilentCheck(ctx)
	fmt.Println(r.Outcome)
	switch r.Outcome {
	case session.StillAuthenticated:
		return nil
	case session.LoginRequired:
		return errors.New("login required")
	default:
		return r.Err
	}
}

func queryCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	query := fs.String("q", "", "GraphQL operation text")
	file := fs.String("f", "", "file holding the GraphQL operation")
	name := fs.String("name", "", "operation name")
	vars := fs.String("vars", "", "variables as a JSON object")
	lang := fs.String("lang", "", "localize the response, e.g. fr or pt-BR")
	if err := fs.Parse(args); err != nil {
		return err
	}

	op, err := readOperation(*query, *file, *name, *vars)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, c, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if op == nil {
		customer, err := a.session.FetchCustomer(ctx)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, customer)
	}

	client, err := a.session.EnsureFreshClient(ctx)
	if err != nil {
		return err
	}
	var resp *customerapi.Response
	if *lang != "" {
		resp, err = client.LocalizedQuery(ctx, *op, *lang)
	} else {
		resp, err = client.Query(ctx, *op)
	}
	if err != nil {
		a.session.HandleAPIError(ctx, err)
	}
	if resp != nil {
		if werr := writeJSON(os.Stdout, resp); werr != nil {
			return werr
		}
	}
	return err
}

// readOperation returns nil when neither query text nor a file was given.
func readOperation(query, file, name, vars string) (*customerapi.Operation, error) {
	if query != "" && file != "" {
		return nil, errors.New("use either -q or -f, not both")
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read operation: %w", err)
		}
		query = string(b)
	}
	if query == "" {
		if vars != "" || name != "" {
			return nil, errors.New("-vars and -name need an operation from -q or -f")
		}
		return nil, nil
	}

	op := &customerapi.Operation{OperationName: name, Query: query}
	if vars != "" {
		if err := json.Unmarshal([]byte(vars), &op.Variables); err != nil {
			return nil, fmt.Errorf("parse -vars: %w", err)
		}
	}
	return op, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
