package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/coda-editor/extend/internal/ai"
	"github.com/coda-editor/extend/internal/config"
	"github.com/coda-editor/extend/internal/log"
	"github.com/coda-editor/extend/internal/plugin"
	"github.com/coda-editor/extend/internal/plugin/hostapi"
	"github.com/coda-editor/extend/internal/plugin/security"
	"github.com/coda-editor/extend/internal/term"
	"github.com/coda-editor/extend/internal/workspace"
)

// host bundles the wired services behind the CLI commands.
type host struct {
	cfg       *config.Config
	logger    log.Logger
	registry  *plugin.Registry
	engine    *plugin.Engine
	installer *plugin.Installer
}

// newHost constructs every service from configuration. No globals; the
// host owns the object graph for the life of the command.
func newHost(hostVersion *semver.Version) (*host, error) {
	loader, err := config.NewLoader()
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	logger := log.NewStderr(cfg.Debug)

	ws, err := workspace.New(cfg.Workspace)
	if err != nil {
		return nil, err
	}

	limits := security.DefaultResourceLimits()
	if cfg.Plugins.HookTimeout > 0 {
		limits.HookTimeout = cfg.Plugins.HookTimeout
	}

	backends := hostapi.Backends{
		Workspace: ws,
		Runner: term.NewRunner(
			term.WithMaxOutput(limits.MaxOutputBytes),
			term.WithLogger(logger),
		),
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Clipboard: hostapi.SystemClipboard{},
		Notifier:  logNotifier{logger},
	}
	if cfg.AI.Provider != "" {
		provider, err := ai.New(cfg.AI.Provider, ai.Options{
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		backends.AI = provider
	}

	surface := hostapi.NewSurface(backends, logger)

	env := plugin.EnvProduction
	if cfg.Environment == string(plugin.EnvDevelopment) {
		env = plugin.EnvDevelopment
	}

	registry := plugin.NewRegistry()
	engine := plugin.NewEngine(registry, hostVersion,
		plugin.WithBinder(surface),
		plugin.WithLogger(logger),
		plugin.WithLimits(limits),
		plugin.WithEnvironment(env),
	)

	var keys []ed25519.PublicKey
	for _, encoded := range cfg.Plugins.TrustedKeys {
		key, err := plugin.ParsePublicKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("trusted key: %w", err)
		}
		keys = append(keys, key)
	}

	installer := plugin.NewInstaller(cfg.Plugins.Dir, registry, engine, hostVersion,
		plugin.WithSearchDirs(cfg.Plugins.SearchDirs...),
		plugin.WithTrustedKeys(keys...),
		plugin.WithAllowUnsigned(cfg.Plugins.AllowUnsigned),
		plugin.WithInstallerLogger(logger),
	)

	return &host{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		engine:    engine,
		installer: installer,
	}, nil
}

// logNotifier surfaces plugin notifications on the host log. The editor
// shell replaces this with its notification panel.
type logNotifier struct {
	logger log.Logger
}

func (n logNotifier) Notify(_ context.Context, pluginID, level, message string) error {
	n.logger.Info("notification", "plugin", pluginID, "level", level, "message", message)
	return nil
}

func newRootCmd(hostVersion *semver.Version) *cobra.Command {
	root := &cobra.Command{
		Use:          "extend",
		Short:        "Plugin host for the Coda editor",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", hostVersion, commit, date),
		SilenceUsage: true,
	}

	root.AddCommand(
		newDiscoverCmd(hostVersion),
		newListCmd(hostVersion),
		newInstallCmd(hostVersion),
		newUninstallCmd(hostVersion),
		newActivateCmd(hostVersion),
		newDeactivateCmd(hostVersion),
		newCallCmd(hostVersion),
		newRunCmd(hostVersion),
		newKeygenCmd(),
		newSignCmd(),
	)
	return root
}

func newDiscoverCmd(hostVersion *semver.Version) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Scan plugin directories and report valid bundles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := newHost(hostVersion)
			if err != nil {
				return err
			}
			found, err := h.installer.Discover(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Manifest, p.Path)
			}
			return nil
		},
	}
}

func newListCmd(hostVersion *semver.Version) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := newHost(hostVersion)
			if err != nil {
				return err
			}
			if _, err := h.installer.Discover(cmd.Context()); err != nil {
				return err
			}

			for _, p := range h.registry.List() {
				m := p.Manifest
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", m.ID, m.Version, m.Name, h.engine.State(m.ID))
			}
			return nil
		},
	}
}

func newInstallCmd(hostVersion *semver.Version) *cobra.Command {
	return &cobra.Command{
		Use:   "install <bundle-dir|bundle.cxp>",
		Short: "Install a plugin bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(hostVersion)
			if err != nil {
				return err
			}
			if _, err := h.installer.Discover(cmd.Context()); err != nil {
				return err
			}

			p, err := h.installer.Install(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", p.Manifest)
			return nil
		},
	}
}

func newUninstallCmd(hostVersion *semver.Version) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <id>",
		Short: "Uninstall a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(hostVersion)
			if err != nil {
				return err
			}
			if _, err := h.installer.Discover(cmd.Context()); err != nil {
				return err
			}
			return h.installer.Uninstall(cmd.Context(), args[0])
		},
	}
}

func newActivateCmd(hostVersion *semver.Version) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Activate an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(hostVersion)
			if err != nil {
				return err
			}
			if _, err := h.installer.Discover(cmd.Context()); err != nil {
				return err
			}
			defer h.engine.Shutdown(cmd.Context())
			return h.engine.Activate(cmd.Context(), args[0])
		},
	}
}

func newDeactivateCmd(hostVersion *semver.Version) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate an active plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(hostVersion)
			if err != nil {
				return err
			}
			h.engine.Deactivate(cmd.Context(), args[0])
			return nil
		},
	}
}

func newCallCmd(hostVersion *semver.Version) *cobra.Command {
	return &cobra.Command{
		Use:   "call <id> <command> [args...]",
		Short: "Activate a plugin and invoke one of its commands",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(hostVersion)
			if err != nil {
				return err
			}
			if _, err := h.installer.Discover(cmd.Context()); err != nil {
				return err
			}
			defer h.engine.Shutdown(cmd.Context())

			id, command := args[0], args[1]
			if err := h.engine.Activate(cmd.Context(), id); err != nil {
				return err
			}

			callArgs := make([]any, 0, len(args)-2)
			for _, a := range args[2:] {
				callArgs = append(callArgs, a)
			}

			results, err := h.engine.ExecuteCommand(cmd.Context(), id, command, callArgs...)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%v\n", r)
			}
			return nil
		},
	}
}

func newRunCmd(hostVersion *semver.Version) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Discover, activate all plugins, and serve until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := newHost(hostVersion)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if _, err := h.installer.Discover(ctx); err != nil {
				return err
			}

			for _, p := range h.registry.List() {
				if err := h.engine.Activate(ctx, p.ID()); err != nil {
					h.logger.Error("activation failed", "plugin", p.ID(), "err", err)
				}
			}

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
			<-signals

			h.engine.Shutdown(ctx)
			return nil
		},
	}
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a bundle signing key pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "public:  %s\n", base64.StdEncoding.EncodeToString(pub))
			fmt.Fprintf(cmd.OutOrStdout(), "private: %s\n", base64.StdEncoding.EncodeToString(priv))
			return nil
		},
	}
}

func newSignCmd() *cobra.Command {
	var keyEncoded string

	cmd := &cobra.Command{
		Use:   "sign <bundle-dir>",
		Short: "Sign a plugin bundle with a private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := base64.StdEncoding.DecodeString(keyEncoded)
			if err != nil {
				return fmt.Errorf("invalid private key encoding: %w", err)
			}
			if len(raw) != ed25519.PrivateKeySize {
				return fmt.Errorf("invalid private key length %d", len(raw))
			}
			return plugin.SignBundle(args[0], ed25519.PrivateKey(raw))
		},
	}
	cmd.Flags().StringVar(&keyEncoded, "key", "", "base64 ed25519 private key")
	cmd.MarkFlagRequired("key")
	return cmd
}
