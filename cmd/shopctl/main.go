// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/harvest-table/internal/client"
	"github.com/carterperez-dev/harvest-table/internal/session"
)

const (
	defaultAPIURL  = "http://localhost:8080/v1"
	settleTimeout  = 15 * time.Second
	requestTimeout = 30 * time.Second
)

var errNotSignedIn = errors.New("not signed in, run: shopctl login")

type app struct {
	apiURL      string
	sessionPath string
	verbose     bool

	logger *slog.Logger
	client *client.Client
	store  *session.Store
	cart   *session.Cart
}

func main() {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Harvest Table storefront from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.apiURL, "api", envOr("HARVEST_API_URL", defaultAPIURL), "API base URL")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", envOr("HARVEST_SESSION_FILE", defaultSessionPath()), "session file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newSignupCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProductsCmd(a),
		newCartCmd(a),
		newCheckoutCmd(a),
		newOrdersCmd(a),
		newTrackCmd(a),
	)

	return root
}

// open builds the client and session layer and waits for the stored
// session to settle, so every command starts from a known auth state.
func (a *app) open(ctx context.Context) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a.client = client.New(
		a.apiURL,
		client.WithLogger(a.logger),
		client.WithSessionStorage(client.FileStorage{Path: a.sessionPath}),
	)

	a.store = session.NewStore(a.client, a.logger)
	if err := a.store.Init(ctx); err != nil {
		return err
	}
	a.cart = session.NewCart(a.store, a.client, a.logger)

	settleCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	_, err := a.store.Settled(settleCtx)
	return err
}

func (a *app) close() {
	if a.cart != nil {
		a.cart.Close()
	}
	if a.store != nil {
		a.store.Dispose()
	}
	if a.client != nil {
		a.client.Close()
	}
}

// require blocks until the guard decides and turns a redirect into an
// error the user can act on.
func (a *app) require(ctx context.Context, req session.Requirement) error {
	decision, err := session.NewGuard(a.store, req).Wait(ctx)
	if err != nil {
		return err
	}

	switch decision {
	case session.Allow:
		return nil
	case session.Redirect:
		return errNotSignedIn
	default:
		return fmt.Errorf("session not ready: %s", decision)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".harvest-session.json"
	}
	return filepath.Join(dir, "harvest-table", "session.json")
}
