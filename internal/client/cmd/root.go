// Package cmd wires the MediLink command-line client: configuration,
// logging, the authenticated session and the backend API client are
// assembled once per invocation and shared by every subcommand.
package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"medilink/internal/client/api"
	"medilink/internal/client/config"
	"medilink/internal/client/docstore"
	"medilink/internal/client/keystore"
	"medilink/internal/client/logging"
	"medilink/internal/client/provider"
	"medilink/internal/client/session"
	"medilink/internal/client/transport"
)

// app is the composition root. Construction is deferred until a command
// actually runs so that flag-only invocations (help, version) never touch
// the keystore or the network.
type app struct {
	serverFlag *string

	once    sync.Once
	initErr error

	cfg     *config.Config
	log     zerolog.Logger
	session *session.Manager
	api     *api.Client
	docs    *docstore.Store
}

func (a *app) ensure() error {
	a.once.Do(a.build)
	return a.initErr
}

func (a *app) build() {
	cfg, err := config.Load()
	if err != nil {
		a.initErr = err
		return
	}
	if a.serverFlag != nil && *a.serverFlag != "" {
		cfg.API.BaseURL = *a.serverFlag
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Environment, cfg.Log.Level)

	ks, err := keystore.Open(cfg.Storage.DataDir, cfg.Storage.Passphrase)
	if err != nil {
		a.initErr = err
		return
	}

	prov := provider.NewREST(provider.Config{
		BaseURL:  cfg.Provider.BaseURL,
		TokenURL: cfg.Provider.TokenURL,
		AuthURL:  cfg.Provider.AuthURL,
		APIKey:   cfg.Provider.APIKey,
		Timeout:  cfg.Provider.Timeout,
	}, a.log)

	// the auth-exempt endpoints go through a bare client; everything else
	// rides the interceptor
	backend := api.New(cfg.API.BaseURL, &http.Client{Timeout: cfg.API.Timeout}, a.log)
	a.session = session.NewManager(prov, backend, ks, a.log,
		session.WithSafetyMargin(cfg.Session.SafetyMargin),
		session.WithRefreshAttempts(cfg.Session.RefreshAttempts),
	)

	authed := transport.New(nil, a.session, a.log, transport.WithAuthFailureHook(func() {
		a.log.Warn().Msg("session expired; run 'medilink auth login' to sign in again")
	})).Client()
	authed.Timeout = cfg.API.Timeout
	a.api = api.New(cfg.API.BaseURL, authed, a.log)

	dsn := cfg.DocumentsPath()
	if cfg.Storage.Disabled {
		dsn = ""
	}
	a.docs = docstore.New(dsn, a.log)

	a.session.Restore(context.Background())
}

// printJSON renders command results the way the backend shapes them.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func NewRootCmd(version, buildDate string) *cobra.Command {
	var serverURL string
	a := &app{serverFlag: &serverURL}

	root := &cobra.Command{
		Use:           "medilink",
		Short:         "MediLink clinic client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "", "Backend base URL (overrides config)")

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(newAuthCmd(a))
	root.AddCommand(newAppointmentsCmd(a))
	root.AddCommand(newDoctorsCmd(a))
	root.AddCommand(newConsultationsCmd(a))
	root.AddCommand(newDocumentsCmd(a))
	return root
}
