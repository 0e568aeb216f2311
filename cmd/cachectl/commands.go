package main

import (
	"fmt"

	"github.com/agentuity/go-cachekit/cache"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) print(v any) error {
	buf, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "render output")
	}
	_, err = a.out.Write(buf)
	return err
}

func (a *app) setCmd() *cobra.Command {
	var (
		ttl      string
		yamlFlag bool
	)
	cmd := &cobra.Command{
		Use:   "set <column> <key> <value>",
		Short: "Store a value under key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := a.columns.resolve(args[0], ttl)
			if err != nil {
				return err
			}
			if !yamlFlag {
				return cache.Insert(cmd.Context(), a.cache, col, args[1], args[2])
			}
			var value any
			if err := yaml.Unmarshal([]byte(args[2]), &value); err != nil {
				return errors.Wrap(err, "parse yaml value")
			}
			return cache.Insert(cmd.Context(), a.cache, col, args[1], value)
		},
	}
	cmd.Flags().StringVar(&ttl, "ttl", "", "time to live, e.g. 90s or 1d12h; overrides the declared column ttl")
	cmd.Flags().BoolVar(&yamlFlag, "yaml", false, "parse value as YAML and store the structure")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <column> <key>",
		Short: "Print the value stored under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := a.columns.resolve(args[0], "")
			if err != nil {
				return err
			}
			value, err := cache.Get[any](cmd.Context(), a.cache, col, args[1])
			if err != nil {
				return errors.Wrapf(err, "get %s", args[1])
			}
			return a.print(value)
		},
	}
}

func (a *app) delCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "del <column> <key>",
		Aliases: []string{"rm"},
		Short:   "Remove key",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := a.columns.resolve(args[0], "")
			if err != nil {
				return err
			}
			return cache.Remove(cmd.Context(), a.cache, col, args[1])
		},
	}
}

func (a *app) existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <column> <key>",
		Short: "Print whether a live value exists under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := a.columns.resolve(args[0], "")
			if err != nil {
				return err
			}
			ok, err := cache.Exists(cmd.Context(), a.cache, col, args[1])
			if err != nil {
				return err
			}
			return a.print(ok)
		},
	}
}

func (a *app) dropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <column>",
		Short: "Remove every value in column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := a.columns.resolve(args[0], "")
			if err != nil {
				return err
			}
			return a.cache.DropColumn(cmd.Context(), col)
		},
	}
}

func (a *app) purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired values from backends that keep them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.cache.Purge(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("purged %d expired records", n)
			return a.print(map[string]int64{"purged": n})
		},
	}
}

type columnOutput struct {
	Name string `yaml:"name"`
	TTL  string `yaml:"ttl"`
}

func (a *app) columnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "List the columns declared in the columns file",
		Args:  cobra.NoArgs,
		// Listing columns needs no backend.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]columnOutput, 0, len(a.columns))
			for _, col := range a.columns.sorted() {
				ttl := "never"
				if d := cache.Expiry(col); d > 0 {
					ttl = fmt.Sprint(d)
				}
				out = append(out, columnOutput{Name: col.Name(), TTL: ttl})
			}
			return a.print(map[string][]columnOutput{"columns": out})
		},
	}
}
