package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jrsteele09/go-customer-auth/auth"
	"github.com/jrsteele09/go-customer-auth/customerapi"
	"github.com/jrsteele09/go-customer-auth/internal/config"
	"github.com/jrsteele09/go-customer-auth/session"
	"github.com/jrsteele09/go-customer-auth/storage"
	"github.com/jrsteele09/go-customer-auth/storage/filestore"
	"github.com/jrsteele09/go-customer-auth/storage/keyringstore"
	"github.com/jrsteele09/go-customer-auth/storage/memstore"
	"github.com/jrsteele09/go-customer-auth/storage/redisstore"
	"github.com/jrsteele09/go-customer-auth/storage/sqlitestore"
	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// app is one shop session wired to the configured store.
type app struct {
	cfg     config.Config
	authCfg auth.Config
	store   *token.Store
	session *session.Session
	closers []io.Closer
}

type appOptions struct {
	verifyIDToken bool
	navigator     session.Navigator
}

func shopConfig(c config.ShopConfig) auth.Config {
	return auth.Config{
		ShopID:      c.GetShopID(),
		ClientID:    c.GetClientID(),
		RedirectURI: c.GetRedirectURI(),
		Scope:       c.GetScope(),
		Locale:      c.GetLocale(),
		AuthHost:    c.GetAuthHost(),
		UserAgent:   c.GetUserAgent(),
		Origin:      c.GetOrigin(),
	}
}

func newApp(ctx context.Context, c config.Config, o appOptions) (*app, error) {
	a := &app{cfg: c, authCfg: shopConfig(c)}
	if err := a.authCfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "[newApp] shop configuration")
	}

	backend, closer, err := openBackend(ctx, c)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	client := token.NewClient(a.authCfg)
	a.store = token.NewStore(backend, client, token.WithExpiryBuffer(c.GetExpiryBuffer()))

	deps := session.Deps{
		Store:     a.store,
		Exchanger: client,
		Navigator: o.navigator,
		API: customerapi.New(a.authCfg.ShopID, "",
			customerapi.WithAPIVersion(c.GetAPIVersion()),
			customerapi.WithUserAgent(a.authCfg.GetUserAgent()),
		),
	}
	if deps.Navigator == nil {
		deps.Navigator = browserNavigator(os.Stderr)
	}
	if o.verifyIDToken && c.GetVerifyIDToken() {
		verifier, err := session.NewOIDCVerifier(ctx, a.authCfg)
		if err != nil {
			a.close()
			return nil, errors.Wrap(err, "[newApp] id token verifier")
		}
		deps.Verifier = verifier
	}

	mode := session.ExchangeAuto
	if c.GetManualExchange() {
		mode = session.ExchangeManual
	}
	a.session, err = session.New(a.authCfg, deps,
		session.WithExchangeMode(mode),
		session.WithSilentCheckTimeout(c.GetSilentCheckTimeout()),
		session.WithCompletionTimeout(c.GetCompletionTimeout()),
		session.WithPostLogoutRedirectURI(c.GetPostLogoutRedirectURI()),
	)
	if err != nil {
		a.close()
		return nil, errors.Wrap(err, "[newApp] session")
	}
	if err := a.session.Initialize(ctx); err != nil {
		a.close()
		return nil, errors.Wrap(err, "[newApp] initialise session")
	}
	return a, nil
}

func (a *app) close() {
	if a.session != nil {
		a.session.Dispose()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Err(err).Msg("close store")
		}
	}
}

// openBackend opens the store named by STORE_DRIVER. The closer is nil for
// backends that hold no connection.
func openBackend(ctx context.Context, c config.StoreConfig) (storage.Backend, io.Closer, error) {
	switch c.GetStoreDriver() {
	case config.StoreDriverMemory:
		log.Warn().Msg("memory store selected, the session ends with this process")
		return memstore.New(), nil, nil
	case config.StoreDriverFile:
		var opts []filestore.Option
		if key := c.GetStoreKey(); key != "" {
			opts = append(opts, filestore.WithPassphrase(key))
		}
		fs, err := filestore.New(c.GetStorePath(), opts...)
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openBackend] file store")
		}
		return fs, nil, nil
	case config.StoreDriverKeyring:
		ks, err := keyringstore.New(c.GetKeyringService())
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openBackend] keyring store")
		}
		return ks, nil, nil
	case config.StoreDriverSQLite:
		ss, err := sqlitestore.Open(ctx, c.GetStorePath())
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openBackend] sqlite store")
		}
		return ss, ss, nil
	case config.StoreDriverRedis:
		rs, err := redisstore.New(ctx, redisstore.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
			Prefix:   c.GetRedisPrefix(),
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openBackend] redis store")
		}
		return rs, rs, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", c.GetStoreDriver())
	}
}

// browserNavigator opens URLs in the desktop browser and prints them to out
// so they can be opened by hand when no browser is available.
func browserNavigator(out io.Writer) session.Navigator {
	return session.NavigatorFunc(func(_ context.Context, url string) error {
		fmt.Fprintf(out, "Opening %s\n", url)
		if err := browser.OpenURL(url); err != nil {
			log.Warn().Err(err).Msg("could not open a browser, open the URL above by hand")
		}
		return nil
	})
}

// printNavigator only prints the URL.
func printNavigator(out io.Writer) session.Navigator {
	return session.NavigatorFunc(func(_ context.Context, url string) error {
		_, err := fmt.Fprintf(out, "Open this URL in a browser:\n\n  %s\n\n", url)
		return err
	})
}
