// Package dashboard renders the Grafana dashboards for the GreptimeDB tables
// the simulator writes.
package dashboard

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"railwsn-sim/internal/telemetry"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

// Tables names the GreptimeDB tables the dashboards query.
type Tables struct {
	Status    string
	Vibration string
	Routes    string
	State     string
}

// DefaultTables returns the table names the writers currently use.
func DefaultTables() Tables {
	return Tables{
		Status:    telemetry.TrackStatusTableName,
		Vibration: telemetry.VibrationTableName,
		Routes:    telemetry.RouteTableName,
		State:     telemetry.NetworkStateTableName,
	}
}

var funcMap = template.FuncMap{
	"env": func(key string) (string, error) {
		v := os.Getenv(key)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", key)
		}
		return v, nil
	},
}

// Render writes every embedded dashboard to outDir, using the default table
// names.
func Render(outDir string) error {
	return RenderTables(outDir, DefaultTables())
}

// RenderTables is Render with explicit table names.
func RenderTables(outDir string, tables Tables) error {
	names, err := fs.Glob(templates, "templates/*.json.tmpl")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, name := range names {
		t, err := template.New(filepath.Base(name)).Funcs(funcMap).ParseFS(templates, name)
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(name), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, tables); err != nil {
			f.Close()
			return fmt.Errorf("render %s: %w", filepath.Base(name), err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
