package main

import (
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/agentuity/go-cachekit/cache"
	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// columnFile is the layout of the --columns file:
//
//	columns:
//	  - name: users
//	    ttl: 10m
//	  - name: sessions
//	    ttl: 1d12h
type columnFile struct {
	Columns []columnEntry `yaml:"columns"`
}

type columnEntry struct {
	Name string `yaml:"name"`
	TTL  string `yaml:"ttl"`
}

type columnSet map[string]cache.ColumnDef

// parseTTL accepts a duration such as "90s" or "1d12h", or a bare number of
// seconds. Empty means no expiry.
func parseTTL(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid ttl %q", s)
	}
	if d > 0 && d < time.Second {
		return 0, errors.Newf("ttl %q is shorter than one second", s)
	}
	return int(d / time.Second), nil
}

func parseColumns(buf []byte) (columnSet, error) {
	var file columnFile
	if err := yaml.Unmarshal(buf, &file); err != nil {
		return nil, errors.Wrap(err, "parse columns")
	}
	set := make(columnSet, len(file.Columns))
	for _, entry := range file.Columns {
		ttl, err := parseTTL(entry.TTL)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", entry.Name)
		}
		col := cache.NewColumn(entry.Name, ttl)
		if err := cache.ValidateColumn(col); err != nil {
			return nil, err
		}
		if _, dup := set[entry.Name]; dup {
			return nil, errors.Newf("column %q declared twice", entry.Name)
		}
		set[entry.Name] = col
	}
	return set, nil
}

func loadColumns(path string) (columnSet, error) {
	if path == "" {
		return columnSet{}, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read columns file %s", path)
	}
	return parseColumns(buf)
}

// resolve returns the declared column, or an ad-hoc one using ttl when name
// is not declared. A non-empty ttl always overrides the declared value.
func (s columnSet) resolve(name, ttl string) (cache.ColumnDef, error) {
	col, ok := s[name]
	if !ok {
		col = cache.NewColumn(name, 0)
	}
	if ttl != "" {
		seconds, err := parseTTL(ttl)
		if err != nil {
			return cache.ColumnDef{}, err
		}
		col.TTL = seconds
	}
	return col, cache.ValidateColumn(col)
}

func (s columnSet) sorted() []cache.ColumnDef {
	cols := make([]cache.ColumnDef, 0, len(s))
	for _, col := range s {
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name() < cols[j].Name() })
	return cols
}
