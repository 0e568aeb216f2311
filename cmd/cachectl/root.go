package main

import (
	"context"
	"io"
	"strconv"

	"github.com/agentuity/go-cachekit/cache"
	"github.com/agentuity/go-cachekit/env"
	"github.com/agentuity/go-cachekit/logger"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand for one invocation.
type app struct {
	out     io.Writer
	logger  logger.Logger
	cache   *cache.Cache
	columns columnSet
}

// execute runs cachectl with args and closes the cache on the way out,
// whether or not the command failed.
func execute(ctx context.Context, out io.Writer, args []string) error {
	a := &app{out: out}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	err := root.ExecuteContext(ctx)
	return errors.CombineErrors(err, a.close())
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and edit a cachekit cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.configure(cmd); err != nil {
				return err
			}
			return a.open(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("backend", "", "cache backend: noop, memory, sqlite or redis (env CACHEKIT_BACKEND, default sqlite)")
	flags.String("target", "", "sqlite database path or redis url (env CACHEKIT_TARGET)")
	flags.String("capacity", "", "sqlite page cache bytes, redis pool size or memory entries (env CACHEKIT_CAPACITY)")
	flags.String("columns", "", "YAML file declaring columns and their ttl (env CACHEKIT_COLUMNS)")
	flags.String("prefix", "", "redis key prefix (env CACHEKIT_PREFIX)")
	flags.String("env-file", ".env", "dotenv file loaded before resolving settings")
	flags.String("log-level", "", "log level (env CACHEKIT_LOG_LEVEL, default warn)")
	flags.String("log-format", "", "log format: console or json (env CACHEKIT_LOG_FORMAT)")

	root.AddCommand(
		a.setCmd(),
		a.getCmd(),
		a.delCmd(),
		a.existsCmd(),
		a.dropCmd(),
		a.purgeCmd(),
		a.columnsCmd(),
	)
	return root
}

// configure loads the dotenv file, the logger and the declared columns.
func (a *app) configure(cmd *cobra.Command) error {
	if file, _ := cmd.Flags().GetString("env-file"); file != "" {
		if err := env.LoadEnvFile(file); err != nil {
			return err
		}
	}
	a.logger = env.NewLogger(cmd).WithPrefix("[cachectl]")

	columns, err := loadColumns(env.FlagOrEnv(cmd, "columns", "CACHEKIT_COLUMNS", ""))
	if err != nil {
		return err
	}
	a.columns = columns
	return nil
}

func (a *app) open(cmd *cobra.Command) error {
	var err error
	cfg := cache.Config{
		Kind:   env.FlagOrEnv(cmd, "backend", "CACHEKIT_BACKEND", cache.BackendSQLite),
		Target: env.FlagOrEnv(cmd, "target", "CACHEKIT_TARGET", ""),
	}
	if capacity := env.FlagOrEnv(cmd, "capacity", "CACHEKIT_CAPACITY", ""); capacity != "" {
		cfg.Capacity, err = strconv.ParseInt(capacity, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid capacity %q", capacity)
		}
	}
	if cfg.Kind == cache.BackendSQLite && cfg.Target == "" {
		cfg.Target = "cachekit.db"
	}

	opts := []cache.Option{cache.WithLogger(a.logger)}
	if prefix := env.FlagOrEnv(cmd, "prefix", "CACHEKIT_PREFIX", ""); prefix != "" {
		opts = append(opts, cache.WithPrefix(prefix))
	}
	a.logger.Debug("opening %s cache %s", cfg.Kind, cfg.Target)
	a.cache, err = cache.Build(cmd.Context(), cfg, opts...)
	return err
}

func (a *app) close() error {
	if a.cache == nil {
		return nil
	}
	err := a.cache.Close()
	a.cache = nil
	return err
}

// exitCode maps a cache error to the process exit status. A miss exits with
// 1 so scripts can branch on it; everything else is 2 or more.
func exitCode(err error) int {
	switch cache.KindOf(err) {
	case cache.KindNotFound:
		return 1
	case cache.KindUnavailable:
		return 3
	case cache.KindCorruptData, cache.KindDecode:
		return 4
	default:
		return 2
	}
}
