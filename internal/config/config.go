// Package config loads the server's YAML configuration file, creating a
// commented default on first run the same way the proxy this server grew
// out of bootstraps its own config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultConfig = `# h2d HTTP/2 origin server configuration.

server:
  port: 443
  address: ""
  htdocs: ./htdocs
  verbose: false
  num_worker: 1

timeouts:
  stream_read: 60
  stream_write: 60

http2:
  padding: 0
  header_table_size: -1
  early_response: false

tls:
  enabled: true
  cert_file: ""
  private_key_file: ""
  dh_param_file: ""
  verify_client: false

errors:
  gzip: false

# Map of request path to a list of paths to push-promise alongside it.
push: {}

# Ordered list of trailer name/value pairs emitted after every file body.
trailer: []
`

type TrailerEntry struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	Address   string `yaml:"address"`
	Htdocs    string `yaml:"htdocs"`
	Verbose   bool   `yaml:"verbose"`
	NumWorker int    `yaml:"num_worker"`
}

type TimeoutsConfig struct {
	StreamRead  float64 `yaml:"stream_read"`
	StreamWrite float64 `yaml:"stream_write"`
}

type HTTP2Config struct {
	Padding          int  `yaml:"padding"`
	HeaderTableSize  int  `yaml:"header_table_size"`
	EarlyResponse    bool `yaml:"early_response"`
}

type TLSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CertFile        string `yaml:"cert_file"`
	PrivateKeyFile  string `yaml:"private_key_file"`
	DHParamFile     string `yaml:"dh_param_file"`
	VerifyClient    bool   `yaml:"verify_client"`
}

type ErrorsConfig struct {
	Gzip bool `yaml:"gzip"`
}

type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Timeouts TimeoutsConfig          `yaml:"timeouts"`
	HTTP2    HTTP2Config             `yaml:"http2"`
	TLS      TLSConfig               `yaml:"tls"`
	Errors   ErrorsConfig            `yaml:"errors"`
	Push     map[string][]string     `yaml:"push"`
	Trailer  []TrailerEntry          `yaml:"trailer"`
}

// NoTLS reports whether this server should serve cleartext HTTP/2 with
// prior knowledge instead of negotiating TLS+ALPN.
func (c *Config) NoTLS() bool {
	return !c.TLS.Enabled
}

// Load reads and parses the YAML file at path, writing out DefaultConfig
// first if the file does not yet exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(path, []byte(DefaultConfig), 0644); err != nil {
				return nil, fmt.Errorf("failed to write default config file: %v", err)
			}
			data = []byte(DefaultConfig)
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Htdocs == "" {
		cfg.Server.Htdocs = "."
	}
	if cfg.Server.NumWorker <= 0 {
		cfg.Server.NumWorker = 1
	}
	if cfg.Timeouts.StreamRead <= 0 {
		cfg.Timeouts.StreamRead = 60
	}
	if cfg.Timeouts.StreamWrite <= 0 {
		cfg.Timeouts.StreamWrite = 60
	}
	if cfg.HTTP2.HeaderTableSize == 0 {
		cfg.HTTP2.HeaderTableSize = -1
	}
}
