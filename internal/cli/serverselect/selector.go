// Package serverselect decides which API server from the project file a
// command talks to
package serverselect

import (
	"fmt"
	"slices"

	"github.com/manifoldco/promptui"

	"github.com/colyze-dev/colyze/internal/cli/config"
	"github.com/colyze-dev/colyze/internal/cli/userconfig"
	"github.com/colyze-dev/colyze/internal/logger"
)

// Prompter asks the user to pick one of servers. Tests replace it.
var Prompter = Prompt

// ResolveServer returns the server for a command. An explicit alias wins and
// is not remembered. Otherwise the user's default is used while the project
// still lists it. Failing that, a lone server is taken as is, and with
// several the user is asked. The last two outcomes become the new default.
func ResolveServer(cfg *config.Config, alias string) (*config.Server, error) {
	if alias != "" {
		return cfg.GetServerByAlias(alias)
	}

	settings, err := userconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load user settings: %w", err)
	}
	if settings.Server != "" {
		if server, err := cfg.GetServerByURL(settings.Server); err == nil {
			return server, nil
		}
		logger.Logger.Debug().Str("server", settings.Server).Msg("Default server is no longer in the project file")
	}

	var server *config.Server
	switch len(cfg.Servers) {
	case 0:
		return nil, fmt.Errorf("no servers configured in %s", config.ConfigFileName)
	case 1:
		server = &cfg.Servers[0]
	default:
		server, err = Prompter(byRecency(cfg.Servers, settings.Recent))
		if err != nil {
			return nil, err
		}
	}

	if err := userconfig.Select(server.URL); err != nil {
		logger.Logger.Warn().Err(err).Msg("Failed to remember the selected server")
	}
	return server, nil
}

// byRecency puts recently used servers first, keeping file order otherwise
func byRecency(servers []config.Server, recent []string) []config.Server {
	rank := func(s config.Server) int {
		if i := slices.Index(recent, s.URL); i >= 0 {
			return i
		}
		return len(recent)
	}
	out := slices.Clone(servers)
	slices.SortStableFunc(out, func(a, b config.Server) int { return rank(a) - rank(b) })
	return out
}

// Prompt shows an arrow-key menu of servers
func Prompt(servers []config.Server) (*config.Server, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("no servers configured in %s", config.ConfigFileName)
	}

	prompt := promptui.Select{
		Label: "Which server?",
		Items: servers,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Alias | cyan }} {{ .URL | faint }}",
			Inactive: "  {{ .Alias }} {{ .URL | faint }}",
			Selected: "Server: {{ .Alias | green }}",
		},
		Size: min(len(servers), 10),
	}

	i, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server selection cancelled: %w", err)
	}
	return &servers[i], nil
}

// GetServerByURLOrAlias looks a server up by URL first, then by alias
func GetServerByURLOrAlias(cfg *config.Config, urlOrAlias string) (*config.Server, error) {
	if server, err := cfg.GetServerByURL(urlOrAlias); err == nil {
		return server, nil
	}
	if server, err := cfg.GetServerByAlias(urlOrAlias); err == nil {
		return server, nil
	}
	return nil, fmt.Errorf("no server with URL or alias %q in %s", urlOrAlias, config.ConfigFileName)
}
