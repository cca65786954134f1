package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-customer-auth/internal/config"
	"github.com/jrsteele09/go-customer-auth/internal/logging"
	"github.com/rs/zerolog/log"
)

const usage = `usage: customer-auth <command> [flags]

commands:
  login         sign in through the browser
  logout        sign out and clear stored tokens
  status        print the session diagnostics as JSON
  refresh       force a token refresh
  silent-check  check whether the session can continue without interaction
  query         run a Customer Account API GraphQL operation
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "customer-auth: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}

	c, err := config.New()
	if err != nil {
		return err
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd(ctx, c, args[1:])
}

// listen binds the callback address before the browser is sent anywhere, so
// a port clash fails the login up front.
func listen(addr string, handler http.Handler) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go serve(server, ln)
	return server, nil
}

func serve(server *http.Server, ln net.Listener) {
	log.Debug().Str("addr", server.Addr).Msg("callback server listening")
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("callback server stopped")
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
