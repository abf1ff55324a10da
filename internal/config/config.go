// Package config loads the reference CLIs' on-disk defaults (producer
// signing identity, default endpoint/face address, default digest
// algorithm) from a YAML file, the same config-file shape the teacher's
// own rclone.conf loader uses, generalized from an INI-style remote list to
// a single flat YAML document.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the reference CLIs' persisted defaults (spec.md §6's CLI
// surface never requires a config file — endpoint, signer identity and
// metrics address are also available as flags; digest and key directory
// are set only here — but a file lets a deployment pin sane defaults
// instead of repeating flags on every invocation).
type Config struct {
	// Endpoint is the default face/transport address: segconsumer sends to
	// it when -e/--endpoint isn't given, segproducer listens on it when
	// --listen isn't given.
	Endpoint string `yaml:"endpoint"`
	// DefaultSignerID names the identity segproducer signs with when -s
	// isn't given.
	DefaultSignerID string `yaml:"default_signer_id"`
	// Digest names the keyless hash used for non-head chain segments
	// ("sha256", "blake2s" or "blake3"); see security.ParseDigestAlgorithm.
	Digest string `yaml:"digest"`
	// KeyDir is the directory security.FileKeyStore reads/writes identities
	// under.
	KeyDir string `yaml:"key_dir"`
	// MetricsAddr is the default Prometheus listen address for
	// --metrics-addr, empty disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the CLIs' built-in fallback configuration, used whenever
// no config file is found.
func Default() Config {
	return Config{
		Endpoint:        "127.0.0.1:6363",
		DefaultSignerID: "default",
		Digest:          "sha256",
		KeyDir:          "",
		MetricsAddr:     "",
	}
}

// Load reads and parses a YAML config file at path, overlaying it onto
// Default() so a partial file only overrides the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}
