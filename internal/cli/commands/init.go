package commands

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/colyze-dev/colyze/internal/cli/config"
)

type initOptions struct {
	alias string
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init <api-url>",
		Short: "Add a Colyze API server to ./colyze.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitWithOptions(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.alias, "alias", "", "Alias for the server (default: production, then server-N)")
	return cmd
}

func runInitWithOptions(cmd *cobra.Command, args []string, opts *initOptions) error {
	apiURL := args[0]
	u, err := url.Parse(apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL %q: expected http(s)://host[:port]", apiURL)
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	out := cmd.OutOrStdout()
	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	if existing, err := config.FindConfigFile(); err == nil && filepath.Dir(existing) == currentDir {
		configPath = existing
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintf(out, "Found existing %s\n", filepath.Base(configPath))
	} else {
		cfg = &config.Config{Servers: []config.Server{}}
		isNewConfig = true
	}

	if _, err := cfg.GetServerByURL(apiURL); err == nil {
		fmt.Fprintf(out, "Server %s already exists in %s\n", apiURL, filepath.Base(configPath))
		return nil
	}

	alias := opts.alias
	if alias == "" {
		if len(cfg.Servers) == 0 {
			alias = "production"
		} else {
			alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
		}
	}
	if _, err := cfg.GetServerByAlias(alias); err == nil {
		return fmt.Errorf("alias %q is already in use", alias)
	}

	cfg.Servers = append(cfg.Servers, config.Server{URL: apiURL, Alias: alias})
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(out, "✓ Created ./%s with server %s (%s)\n", filepath.Base(configPath), apiURL, alias)
	} else {
		fmt.Fprintf(out, "✓ Added server %s (%s) to ./%s\n", apiURL, alias, filepath.Base(configPath))
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'colyze register' to create an account, or")
	fmt.Fprintln(out, "  2. Run 'colyze login' to sign in")
	return nil
}
