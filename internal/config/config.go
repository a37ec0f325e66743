// Network configuration loader. YAML or TOML, overlaid on the values the
// motes were built with, then validated against a CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/radio"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Thresholds is a resting band on the 12-bit vibration ADC.
type Thresholds struct {
	Lower int `yaml:"lower" toml:"lower" json:"lower"`
	Upper int `yaml:"upper" toml:"upper" json:"upper"`
}

// Network holds the protocol constants shared by every mote.
type Network struct {
	Motes                 int           `yaml:"motes" toml:"motes" json:"motes"`
	Gateway               int           `yaml:"gateway" toml:"gateway" json:"gateway"`
	MaxRSSI               int           `yaml:"max_rssi" toml:"max_rssi" json:"max_rssi"`
	InitialRSSI           int           `yaml:"initial_rssi" toml:"initial_rssi" json:"initial_rssi"`
	CostSentinel          int           `yaml:"cost_sentinel" toml:"cost_sentinel" json:"cost_sentinel"`
	InitialBattery        int           `yaml:"initial_battery" toml:"initial_battery" json:"initial_battery"`
	AdvertisementPeriod   time.Duration `yaml:"advertisement_period" toml:"advertisement_period" json:"advertisement_period"`
	AdvertisementJitter   time.Duration `yaml:"advertisement_jitter" toml:"advertisement_jitter" json:"advertisement_jitter"`
	FieldSensingPeriod    time.Duration `yaml:"field_sensing_period" toml:"field_sensing_period" json:"field_sensing_period"`
	GatewaySensingPeriod  time.Duration `yaml:"gateway_sensing_period" toml:"gateway_sensing_period" json:"gateway_sensing_period"`
	SensingJitter         time.Duration `yaml:"sensing_jitter" toml:"sensing_jitter" json:"sensing_jitter"`
	RouteResetPeriod      time.Duration `yaml:"route_reset_period" toml:"route_reset_period" json:"route_reset_period"`
	AggregationWindow     time.Duration `yaml:"aggregation_window" toml:"aggregation_window" json:"aggregation_window"`
	FieldThresholds       Thresholds    `yaml:"field_thresholds" toml:"field_thresholds" json:"field_thresholds"`
	GatewayThresholds     Thresholds    `yaml:"gateway_thresholds" toml:"gateway_thresholds" json:"gateway_thresholds"`
	GatewayInitialAverage int           `yaml:"gateway_initial_average" toml:"gateway_initial_average" json:"gateway_initial_average"`
}

// Track describes the trains running over the motes.
type Track struct {
	VibrationRadiusM float64       `yaml:"vibration_radius_m" toml:"vibration_radius_m" json:"vibration_radius_m"`
	TrainSpeedMPS    float64       `yaml:"train_speed_mps" toml:"train_speed_mps" json:"train_speed_mps"`
	TrainLengthM     float64       `yaml:"train_length_m" toml:"train_length_m" json:"train_length_m"`
	StepInterval     time.Duration `yaml:"step_interval" toml:"step_interval" json:"step_interval"`
}

// Sensor models the accelerometer ADC on each mote.
type Sensor struct {
	RestValue  int     `yaml:"rest_value" toml:"rest_value" json:"rest_value"`
	Amplitude  int     `yaml:"amplitude" toml:"amplitude" json:"amplitude"`
	NoiseSigma float64 `yaml:"noise_sigma" toml:"noise_sigma" json:"noise_sigma"`
	ErrorRate  float64 `yaml:"error_rate" toml:"error_rate" json:"error_rate"`
}

// Battery models the drain of the two AA cells, in percent.
type Battery struct {
	DrainPerTx   float64 `yaml:"drain_per_tx" toml:"drain_per_tx" json:"drain_per_tx"`
	DrainPerHour float64 `yaml:"drain_per_hour" toml:"drain_per_hour" json:"drain_per_hour"`
}

// Config is the root configuration of a simulated deployment.
type Config struct {
	Seed    int64        `yaml:"seed" toml:"seed" json:"seed"`
	Network Network      `yaml:"network" toml:"network" json:"network"`
	Radio   radio.Config `yaml:"radio" toml:"radio" json:"radio"`
	Track   Track        `yaml:"track" toml:"track" json:"track"`
	Sensor  Sensor       `yaml:"sensor" toml:"sensor" json:"sensor"`
	Battery Battery      `yaml:"battery" toml:"battery" json:"battery"`
}

// Default returns the deployment the firmware was written for: six motes on
// channel 16, the last one being the gateway.
func Default() *Config {
	p := mote.DefaultParams()
	return &Config{
		Seed: 1,
		Network: Network{
			Motes:                 p.MoteCount,
			Gateway:               int(p.GatewayAddr),
			MaxRSSI:               int(p.MaxRSSI),
			InitialRSSI:           int(p.InitialRSSI),
			CostSentinel:          int(p.CostSentinel),
			InitialBattery:        int(p.InitialBattery),
			AdvertisementPeriod:   p.AdvertisementPeriod,
			AdvertisementJitter:   p.AdvertisementJitter,
			FieldSensingPeriod:    p.FieldSensingPeriod,
			GatewaySensingPeriod:  p.GatewaySensingPeriod,
			SensingJitter:         p.SensingJitter,
			RouteResetPeriod:      p.RouteResetPeriod,
			AggregationWindow:     p.AggregationWindow,
			FieldThresholds:       Thresholds{Lower: int(p.FieldThresholds.Lower), Upper: int(p.FieldThresholds.Upper)},
			GatewayThresholds:     Thresholds{Lower: int(p.GatewayThresholds.Lower), Upper: int(p.GatewayThresholds.Upper)},
			GatewayInitialAverage: int(p.GatewayInitialAverage),
		},
		Radio: radio.DefaultConfig(),
		Track: Track{
			VibrationRadiusM: 25,
			TrainSpeedMPS:    20,
			TrainLengthM:     200,
			StepInterval:     100 * time.Millisecond,
		},
		Sensor: Sensor{
			RestValue:  1000,
			Amplitude:  1500,
			NoiseSigma: 40,
			ErrorRate:  0.001,
		},
		Battery: Battery{
			DrainPerTx:   0.001,
			DrainPerHour: 0.5,
		},
	}
}

// Params converts the network section for the protocol core.
func (c *Config) Params() mote.Params {
	n := c.Network
	return mote.Params{
		MoteCount:             n.Motes,
		GatewayAddr:           mote.NodeID(n.Gateway),
		MaxRSSI:               int16(n.MaxRSSI),
		InitialRSSI:           int16(n.InitialRSSI),
		CostSentinel:          uint16(n.CostSentinel),
		InitialBattery:        uint16(n.InitialBattery),
		AdvertisementPeriod:   n.AdvertisementPeriod,
		AdvertisementJitter:   n.AdvertisementJitter,
		FieldSensingPeriod:    n.FieldSensingPeriod,
		GatewaySensingPeriod:  n.GatewaySensingPeriod,
		SensingJitter:         n.SensingJitter,
		RouteResetPeriod:      n.RouteResetPeriod,
		AggregationWindow:     n.AggregationWindow,
		FieldThresholds:       mote.Thresholds{Lower: uint16(n.FieldThresholds.Lower), Upper: uint16(n.FieldThresholds.Upper)},
		GatewayThresholds:     mote.Thresholds{Lower: uint16(n.GatewayThresholds.Lower), Upper: uint16(n.GatewayThresholds.Upper)},
		GatewayInitialAverage: uint16(n.GatewayInitialAverage),
	}
}

// Load reads a YAML or TOML config file, chosen by extension, and validates
// it. An empty schemaPath uses the built-in schema.
func Load(configPath, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	cfg, err := Parse(data, formatOf(configPath))
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg, schemaPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Format is a config file syntax.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

func formatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return TOML
	}
	return YAML
}

// Parse decodes data on top of the defaults without validating it.
func Parse(data []byte, f Format) (*Config, error) {
	cfg := Default()
	switch f {
	case TOML:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot parse TOML: %v", ErrInvalidConfig, err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidConfig, undec)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: cannot parse YAML: %v", ErrInvalidConfig, err)
		}
	}
	return cfg, nil
}
