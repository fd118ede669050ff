package cli

import (
	"errors"
	"os"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/config"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	server     string
	token      string
	multiplier int
	timeout    time.Duration
}

// NewRootCommand builds the gophdrive command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(NewApp())
}

func newRootCommand(app *App) *cobra.Command {
	var f rootFlags

	root := &cobra.Command{
		Use:           "gophdrive",
		Short:         "Upload files and cache entries to a gophdrive server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd, f)
		},
	}
	root.SetOut(app.out)
	root.SetErr(app.errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "path to a JSON config file")
	pf.StringVarP(&f.server, "server", "s", "", "server base URL")
	pf.StringVarP(&f.token, "token", "t", "", "upload token or delegated grant")
	pf.IntVarP(&f.multiplier, "chunk-multiplier", "m", 0, "chunk size in units of 320 KiB (0 = server default)")
	pf.DurationVar(&f.timeout, "timeout", 0, "per-request timeout")

	root.AddCommand(app.uploadCommand(), app.cacheCommand(), app.grantCommand())
	return root
}

// setup loads the configuration, applies the flags the user set and builds
// the uploader.
func (a *App) setup(cmd *cobra.Command, f rootFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = f.server
	}
	if flags.Changed("token") {
		cfg.Token = f.token
	}
	if flags.Changed("chunk-multiplier") {
		cfg.ChunkMultiplier = f.multiplier
	}
	if flags.Changed("timeout") {
		cfg.Timeout = f.timeout
	}

	if cfg.Token == "" {
		if !stdinIsTerminal() {
			return errors.New("no upload token: set GOPHDRIVE_TOKEN or pass --token")
		}
		if cfg.Token, err = GetToken(a.errOut); err != nil {
			return err
		}
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	u, err := a.newUploader(cfg, a.progress, logger)
	if err != nil {
		return err
	}
	a.config = cfg
	a.uploader = u
	return nil
}
