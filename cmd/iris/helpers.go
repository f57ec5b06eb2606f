package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/iris/pkg/client"
	"github.com/charlie0129/iris/pkg/daemon"
	"github.com/charlie0129/iris/pkg/store"
)

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func good(ok bool) string {
	if ok {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func newClient() *client.Client {
	return client.NewClient(socketPath())
}

// openCatalog opens, and if needed initializes, the data tree together with
// the config tree when one exists.
func openCatalog() (store.Catalog, error) {
	if _, err := openDataStore(); err != nil {
		return store.Catalog{}, err
	}
	data, confStore, err := daemon.OpenStores(conf)
	if err != nil {
		return store.Catalog{}, err
	}
	return store.Catalog{Data: data, Config: confStore}, nil
}

// openDataStore opens, and if needed initializes, the data tree.
func openDataStore() (*store.Store, error) {
	root := conf.DataStore()
	if root == "" {
		var err error
		if root, err = store.DefaultDataRoot(); err != nil {
			return nil, err
		}
	}
	return store.Init(root)
}

// parseMode parses WIDTHxHEIGHT@REFRESH.
func parseMode(s string) (store.Mode, error) {
	var m store.Mode
	size, refresh, ok := strings.Cut(s, "@")
	if !ok {
		return m, fmt.Errorf("invalid mode %q, want WIDTHxHEIGHT@REFRESH", s)
	}
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return m, fmt.Errorf("invalid mode %q, want WIDTHxHEIGHT@REFRESH", s)
	}
	var err error
	if m.Width, err = strconv.ParseFloat(w, 64); err != nil {
		return m, fmt.Errorf("invalid width in mode %q: %v", s, err)
	}
	if m.Height, err = strconv.ParseFloat(h, 64); err != nil {
		return m, fmt.Errorf("invalid height in mode %q: %v", s, err)
	}
	if m.Refresh, err = strconv.ParseFloat(refresh, 64); err != nil {
		return m, fmt.Errorf("invalid refresh rate in mode %q: %v", s, err)
	}
	return m, nil
}

func formatMode(m store.Mode) string {
	return fmt.Sprintf("%gx%g@%g", m.Width, m.Height, m.Refresh)
}

// readColumns reads a CSV file of at least n numeric columns. Lines starting
// with '#' are comments and a non-numeric first row is treated as a header.
func readColumns(path string, n int) ([][]float64, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to open %s", path)
		}
		defer f.Close()
		r = f
	}

	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows [][]float64
	for first := true; ; first = false {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to read %s", path)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < n {
			return nil, fmt.Errorf("%s:%d: want %d columns, got %d", path, line, n, len(rec))
		}
		row, err := parseRow(rec[:n])
		if err != nil {
			if first {
				continue
			}
			return nil, fmt.Errorf("%s:%d: %v", path, line, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no data", path)
	}
	return rows, nil
}

func parseRow(rec []string) ([]float64, error) {
	row := make([]float64, len(rec))
	for i, f := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %v", i+1, err)
		}
		row[i] = v
	}
	return row, nil
}

func column(rows [][]float64, i int) []float64 {
	out := make([]float64, len(rows))
	for k, r := range rows {
		out[k] = r[i]
	}
	return out
}
