package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/pbaille/medcat/internal/catalog"
	"github.com/pbaille/medcat/internal/config"
	"github.com/pbaille/medcat/internal/logging"
	"github.com/pbaille/medcat/internal/taxonomy"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(exitCode(err))
	}
}

// app holds the loaded configuration and lazily opened stores of one invocation
type app struct {
	cfgPath  string
	logLevel string

	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	cfg     *config.Config
	logger  *log.Logger
	hier    *taxonomy.Hierarchy
	catalog *catalog.Store
	groups  *taxonomy.GroupManager
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:           "medcat",
		Short:         "Medical paper catalog with a controlled tag vocabulary",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default: $MEDCAT_CONFIG, ./medcat.yaml, $XDG_CONFIG_HOME/medcat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(initCmd(a))
	rootCmd.AddCommand(addCmd(a))
	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(showCmd(a))
	rootCmd.AddCommand(statusCmd(a))
	rootCmd.AddCommand(retagCmd(a))
	rootCmd.AddCommand(tagsCmd(a))
	rootCmd.AddCommand(groupsCmd(a))
	rootCmd.AddCommand(statsCmd(a))
	rootCmd.AddCommand(exportCmd(a))
	rootCmd.AddCommand(searchCmd(a))
	rootCmd.AddCommand(serveCmd(a))

	return rootCmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(a.errOut, cfg.Log.Level)
	if cfg.File != "" {
		a.logger.Debug("loaded config", "file", cfg.File)
	}
	return nil
}

func (a *app) hierarchy() (*taxonomy.Hierarchy, error) {
	if a.hier == nil {
		h, err := taxonomy.OpenHierarchy(a.cfg.HierarchyPath, taxonomy.WithLogger(a.logger))
		if err != nil {
			return nil, fmt.Errorf("open tag hierarchy: %w", err)
		}
		a.hier = h
	}
	return a.hier, nil
}

func (a *app) normalizer() (*taxonomy.Normalizer, error) {
	h, err := a.hierarchy()
	if err != nil {
		return nil, err
	}
	return taxonomy.NewNormalizer(h, a.logger), nil
}

func (a *app) store() (*catalog.Store, error) {
	if a.catalog == nil {
		h, err := a.hierarchy()
		if err != nil {
			return nil, err
		}
		scheme, err := catalog.ParseIDScheme(a.cfg.IDs.Scheme)
		if err != nil {
			return nil, err
		}
		s, err := catalog.Open(a.cfg.CatalogPath, h,
			catalog.WithLogger(a.logger),
			catalog.WithIDs(scheme, a.cfg.IDs.Prefix, a.cfg.IDs.Width),
		)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		a.catalog = s
	}
	return a.catalog, nil
}

func (a *app) groupManager() (*taxonomy.GroupManager, error) {
	if a.groups == nil {
		h, err := a.hierarchy()
		if err != nil {
			return nil, err
		}
		g, err := taxonomy.OpenGroups(a.cfg.GroupsPath, h, taxonomy.WithLogger(a.logger))
		if err != nil {
			return nil, fmt.Errorf("open tag groups: %w", err)
		}
		a.groups = g
	}
	return a.groups, nil
}
