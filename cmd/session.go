package cmd

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentic-research/tagfs/api"
	"github.com/agentic-research/tagfs/internal/config"
	"github.com/agentic-research/tagfs/internal/enrich"
	"github.com/agentic-research/tagfs/internal/items"
	"github.com/agentic-research/tagfs/internal/metrics"
	"github.com/agentic-research/tagfs/internal/rescan"
	"github.com/agentic-research/tagfs/internal/view"
)

var (
	itemsDir  string
	logFormat string
)

func init() {
	def := api.DefaultOptions()
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&itemsDir, "items", "i", "", "Directory whose subdirectories are the items")
	pf.String(config.FlagName(config.KeyTagFile), def.TagFileName, "Name of the per-item tag file")
	pf.Bool(config.FlagName(config.KeyValueFilters), def.EnableValueFilters, "Expose flat value directories next to contexts")
	pf.Bool(config.FlagName(config.KeyRootItemLinks), def.EnableRootItemLinks, "List every tagged item under the root")
	pf.Int(config.FlagName(config.KeyCacheSize), def.CacheSize, "Number of resolved paths kept in the path cache")
	pf.String(config.FlagName(config.KeyRescan), def.Rescan, "Rescan policy: once, timeout, interval, signal or watch")
	pf.Duration(config.FlagName(config.KeyRescanInterval), def.RescanInterval, "Period of the timeout and interval rescan policies")
	pf.String(config.FlagName(config.KeyEnrichFile), "", "JSON file inside each item that enrich rules read")
	pf.String(config.FlagName(config.KeyLogLevel), def.LogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "console", "Log format: console or json")
}

// session is everything a command needs to serve one items directory.
type session struct {
	opts     api.Options
	log      *zap.Logger
	policy   rescan.Policy
	store    *items.Store
	view     *view.View
	registry *prometheus.Registry
}

func openSession(cmd *cobra.Command) (*session, error) {
	if itemsDir == "" {
		return nil, errors.New("--items is required")
	}
	opts, err := config.Load(itemsDir, cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, err := newLogger(opts.LogLevel, logFormat)
	if err != nil {
		return nil, err
	}

	scanner, err := items.NewScanner(opts.ItemsDir, opts.TagFileName, log)
	if err != nil {
		return nil, err
	}
	opts.ItemsDir = scanner.Root

	if opts.EnrichFile != "" {
		e, err := enrich.NewJSONPath(opts.EnrichFile, opts.Enrich)
		if err != nil {
			return nil, err
		}
		scanner.Enricher = e
	}

	policy, err := rescan.New(opts.Rescan, opts.RescanInterval, opts.ItemsDir, rescan.WithLogger(log))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store, err := items.NewStore(scanner,
		items.WithStrategy(policy.Strategy()),
		items.WithObserver(m))
	if err != nil {
		return nil, err
	}

	return &session{
		opts:     opts,
		log:      log,
		policy:   policy,
		store:    store,
		view:     view.New(store, opts, view.WithLogger(log), view.WithMetrics(m)),
		registry: reg,
	}, nil
}

// rescan rebuilds the snapshot now instead of on the next access. A failed
// scan keeps the previous snapshot.
func (s *session) rescan() {
	if _, err := s.store.Rescan(); err != nil {
		s.log.Error("rescan failed, keeping previous snapshot", zap.Error(err))
	}
}

// newLogger builds a zap logger at level. "console" selects the
// development encoder, "json" the production one.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var cfg zap.Config
	switch format {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = lvl
	return cfg.Build()
}
