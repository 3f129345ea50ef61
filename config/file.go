package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// fileConfig mirrors the YAML file.  Pointers tell an absent key from
// a zero value.
type fileConfig struct {
	Host         *string `yaml:"host"`
	Port         *int    `yaml:"port"`
	BufferSize   *int    `yaml:"buffer_size"`
	Backlog      *int    `yaml:"backlog"`
	PollInterval *string `yaml:"poll_interval"`
	MaxEvents    *int    `yaml:"max_events"`
	StatsAddr    *string `yaml:"stats_addr"`
	Verbose      *int    `yaml:"verbose"`
	Timeout      *string `yaml:"timeout"`
	Retries      *int    `yaml:"retries"`
}

// LoadFile overlays the YAML file at path onto cfg.  Keys absent from
// the file leave cfg untouched; unknown keys are an error.
//
//	host: 127.0.0.1
//	port: 9000
//	poll_interval: 50ms
//	stats_addr: 127.0.0.1:9100
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	return parseFile(path, data, cfg)
}

func parseFile(path string, data []byte, cfg *Config) error {
	var fc fileConfig
	if err := yaml.UnmarshalWithOptions(data, &fc, yaml.DisallowUnknownField()); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	setString(&cfg.Host, fc.Host)
	setInt(&cfg.Port, fc.Port)
	setInt(&cfg.BufferSize, fc.BufferSize)
	setInt(&cfg.Backlog, fc.Backlog)
	setInt(&cfg.MaxEvents, fc.MaxEvents)
	setString(&cfg.StatsAddr, fc.StatsAddr)
	setInt(&cfg.Verbose, fc.Verbose)
	setInt(&cfg.Retries, fc.Retries)

	if err := setDuration(&cfg.PollInterval, fc.PollInterval); err != nil {
		return fmt.Errorf("config file %s: poll_interval: %w", path, err)
	}
	if err := setDuration(&cfg.Timeout, fc.Timeout); err != nil {
		return fmt.Errorf("config file %s: timeout: %w", path, err)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
