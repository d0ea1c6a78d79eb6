// Package config loads a core.Config from a YAML file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"futurex/pkg/core"
)

// Environment variables overlaid on the file.
const (
	EnvPublicKey = "FUTUREX_PUBLIC_KEY"
	EnvSecretKey = "FUTUREX_SECRET_KEY"
	EnvTestnet   = "FUTUREX_TESTNET"
)

type File struct {
	Testnet     bool            `yaml:"testnet"`
	Credentials CredentialsFile `yaml:"credentials"`
	BaseURL     string          `yaml:"base_url"`
	StreamURL   string          `yaml:"stream_url"`
	Timeout     time.Duration   `yaml:"timeout"`
	RecvWindow  time.Duration   `yaml:"recv_window"`
	RateLimit   RateLimitFile   `yaml:"rate_limit"`
	Stream      StreamFile      `yaml:"stream"`
	LogLevel    string          `yaml:"log_level"`
}

type CredentialsFile struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
}

type RateLimitFile struct {
	Weight int           `yaml:"weight"`
	Period time.Duration `yaml:"period"`
}

type StreamFile struct {
	BufferSize int      `yaml:"buffer_size"`
	Symbols    []string `yaml:"symbols"`
}

// Load reads path (skipped when empty), overlays the environment and
// returns a validated config. Credentials may still be absent; futures.New
// reports that.
func Load(path string) (*core.Config, error) {
	var f File
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if f, err = Parse(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := f.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	f.normalize()

	cfg := f.Config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes a single YAML document, rejecting unknown fields.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return File{}, errors.New("config must contain a single YAML document")
		}
		return File{}, err
	}
	return f, nil
}

func (f *File) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPublicKey); ok && v != "" {
		f.Credentials.PublicKey = v
	}
	if v, ok := lookup(EnvSecretKey); ok && v != "" {
		f.Credentials.SecretKey = v
	}
	if v, ok := lookup(EnvTestnet); ok && v != "" {
		testnet, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTestnet, err)
		}
		f.Testnet = testnet
	}
	return nil
}

func (f *File) normalize() {
	f.Credentials.PublicKey = strings.TrimSpace(f.Credentials.PublicKey)
	f.Credentials.SecretKey = strings.TrimSpace(f.Credentials.SecretKey)
	f.BaseURL = strings.TrimSpace(f.BaseURL)
	f.StreamURL = strings.TrimSpace(f.StreamURL)
	f.LogLevel = strings.ToLower(strings.TrimSpace(f.LogLevel))
	for i, s := range f.Stream.Symbols {
		f.Stream.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}

// Config builds a core.Config from the defaults, overridden by every field
// set in f.
func (f *File) Config() *core.Config {
	cfg := core.DefaultConfig().
		WithTestnet(f.Testnet).
		WithBaseURL(f.BaseURL).
		WithStreamURL(f.StreamURL).
		WithRecvWindow(f.RecvWindow).
		WithStreamSymbols(f.Stream.Symbols...)

	if f.Credentials.PublicKey != "" || f.Credentials.SecretKey != "" {
		cfg.WithCredentials(f.Credentials.PublicKey, f.Credentials.SecretKey)
	}
	if f.Timeout > 0 {
		cfg.WithTimeout(f.Timeout)
	}
	if f.RateLimit.Weight > 0 {
		period := f.RateLimit.Period
		if period == 0 {
			period = cfg.RateLimitPeriod
		}
		cfg.WithRateLimit(f.RateLimit.Weight, period)
	}
	if f.Stream.BufferSize > 0 {
		cfg.StreamBufferSize = f.Stream.BufferSize
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	return cfg
}
