// CUE schema validation code
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var defaultSchema []byte

// DefaultSchema returns the built-in CUE schema.
func DefaultSchema() []byte { return defaultSchema }

// Validate checks cfg against the CUE schema at schemaPath (built-in when
// empty) and then against the rules a schema cannot express.
func Validate(cfg *Config, schemaPath string) error {
	schema := defaultSchema
	if schemaPath != "" {
		b, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("cannot read CUE schema: %w", err)
		}
		schema = b
	}
	if err := validateWithCue(cfg, schema); err != nil {
		return err
	}
	return cfg.check()
}

func validateWithCue(cfg *Config, schema []byte) error {
	doc, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot encode config: %w", err)
	}
	ctx := cuecontext.New()

	schemaVal := ctx.CompileBytes(schema, cue.Filename("schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", err)
	}
	def := schemaVal.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return fmt.Errorf("CUE schema has no #Config definition")
	}

	file, err := cueyaml.Extract("config.yaml", doc)
	if err != nil {
		return fmt.Errorf("cannot load config into CUE: %w", err)
	}
	configVal := ctx.BuildFile(file)

	final := def.Unify(configVal)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: schema validation failed: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) check() error {
	n := c.Network
	for name, t := range map[string]Thresholds{"field": n.FieldThresholds, "gateway": n.GatewayThresholds} {
		if t.Lower >= t.Upper {
			return fmt.Errorf("%w: %s thresholds: lower %d must be below upper %d", ErrInvalidConfig, name, t.Lower, t.Upper)
		}
	}
	periods := []struct {
		name string
		d    time.Duration
	}{
		{"advertisement_period", n.AdvertisementPeriod},
		{"field_sensing_period", n.FieldSensingPeriod},
		{"gateway_sensing_period", n.GatewaySensingPeriod},
		{"route_reset_period", n.RouteResetPeriod},
		{"aggregation_window", n.AggregationWindow},
		{"step_interval", c.Track.StepInterval},
	}
	for _, p := range periods {
		if p.d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, p.name)
		}
	}
	if n.InitialRSSI > 0 || n.MaxRSSI < n.InitialRSSI {
		return fmt.Errorf("%w: max_rssi %d must be at least initial_rssi %d", ErrInvalidConfig, n.MaxRSSI, n.InitialRSSI)
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
