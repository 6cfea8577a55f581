package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/colyze-dev/colyze/internal/cli/app"
	"github.com/colyze-dev/colyze/internal/cli/auth"
	"github.com/colyze-dev/colyze/internal/cli/config"
	"github.com/colyze-dev/colyze/internal/cli/serverselect"
	envconfig "github.com/colyze-dev/colyze/internal/config"
	"github.com/colyze-dev/colyze/internal/logger"
)

// ServerFlag is the persistent flag selecting a server alias
const ServerFlag = "server"

// tokenStore is where session tokens are kept between runs. Tests swap it.
var tokenStore = auth.Detect

// newApp builds the running client for a command. Tests replace it to point
// at an in-process server.
var newApp = buildApp

// resolveServerURL picks the API root: COLYZE_API_URL, then the --server
// alias, the selected server, the only server or an interactive choice
func resolveServerURL(cmd *cobra.Command, env *envconfig.Config) (string, error) {
	if env.API.URL != "" {
		return env.API.URL, nil
	}

	alias, _ := cmd.Flags().GetString(ServerFlag)

	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w\nRun 'colyze init <api-url>' or set COLYZE_API_URL", err)
	}

	server, err := serverselect.ResolveServer(cfg, alias)
	if err != nil {
		return "", err
	}
	if server.URL == "" {
		return "", fmt.Errorf("server URL is empty. Please edit %s and add a valid URL", config.ConfigFileName)
	}
	return server.URL, nil
}

func buildApp(cmd *cobra.Command) (*app.App, error) {
	env, err := envconfig.Load()
	if err != nil {
		return nil, err
	}

	log := logger.Init(env.Logging.Level, env.Logging.Format)

	serverURL, err := resolveServerURL(cmd, env)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("server", serverURL).Msg("Using API server")

	return app.New(app.Options{
		ServerURL:   serverURL,
		Tokens:      tokenStore(),
		Out:         cmd.OutOrStdout(),
		Timeout:     env.API.Timeout,
		DenialDelay: env.Guards.AdminDenialDelay,
		Logger:      log,
	})
}

// startApp builds the app and resolves the session, the way a page load does
func startApp(cmd *cobra.Command) (*app.App, context.Context, func(), error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	a.Start(ctx)

	cleanup := func() {
		a.Close()
		stop()
	}
	return a, ctx, cleanup, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
