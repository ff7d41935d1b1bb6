package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/imdario/mergo"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"hpackCodec/internal/hpack"
	"hpackCodec/internal/http2/structs"
	"hpackCodec/internal/logging"
	"hpackCodec/internal/session"
)

type ServerConfig struct {
	Address  string `yaml:"address" toml:"address"`
	CertFile string `yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`
}

type CodecConfig struct {
	HeaderTableSize   uint32 `yaml:"header_table_size" toml:"header_table_size"`
	MaxHeaderListSize uint32 `yaml:"max_header_list_size" toml:"max_header_list_size"`
	Huffman           string `yaml:"huffman" toml:"huffman"`
}

type SessionsConfig struct {
	TTL          int    `yaml:"ttl" toml:"ttl"`
	MaxFrameSize uint32 `yaml:"max_frame_size" toml:"max_frame_size"`
}

type LoggerConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

type Config struct {
	Server    ServerConfig   `yaml:"server" toml:"server"`
	Codec     CodecConfig    `yaml:"codec" toml:"codec"`
	Sessions  SessionsConfig `yaml:"sessions" toml:"sessions"`
	Blacklist []string       `yaml:"blacklist" toml:"blacklist"`
	Logger    LoggerConfig   `yaml:"logger" toml:"logger"`
}

// DefaultConfig holds the values used for every field a config file leaves out.
// Zero values cannot be told apart from missing ones and also get the default:
// a header_table_size of 0 becomes 4096 and a sessions ttl of 0 becomes 300,
// so sessions always expire.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address: "127.0.0.1:8087",
		},
		Codec: CodecConfig{
			HeaderTableSize:   hpack.DefaultMaxDynamicTableSize,
			MaxHeaderListSize: hpack.DefaultMaxHeaderListSize,
			Huffman:           hpack.HuffmanAuto.String(),
		},
		Sessions: SessionsConfig{
			TTL:          300,
			MaxFrameSize: structs.DefaultMaxFrameSize,
		},
		Logger: LoggerConfig{
			Level: "info",
		},
	}
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var err error

	if _, _, splitErr := net.SplitHostPort(c.Server.Address); splitErr != nil {
		err = multierr.Append(err, fmt.Errorf("server address %q: %w", c.Server.Address, splitErr))
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		err = multierr.Append(err, errors.New("server cert_file and key_file must be set together"))
	}
	if _, policyErr := hpack.ParseHuffmanPolicy(c.Codec.Huffman); policyErr != nil {
		err = multierr.Append(err, policyErr)
	}
	if c.Sessions.TTL <= 0 {
		err = multierr.Append(err, fmt.Errorf("sessions ttl must be positive: %d", c.Sessions.TTL))
	}
	if c.Sessions.MaxFrameSize < structs.DefaultMaxFrameSize || c.Sessions.MaxFrameSize > structs.MaxAllowedFrameSize {
		err = multierr.Append(err, fmt.Errorf("sessions max_frame_size %d outside [%d, %d]",
			c.Sessions.MaxFrameSize, structs.DefaultMaxFrameSize, structs.MaxAllowedFrameSize))
	}
	for _, ip := range c.Blacklist {
		if net.ParseIP(ip) == nil {
			err = multierr.Append(err, fmt.Errorf("blacklist entry %q is not an IP address", ip))
		}
	}
	if _, levelErr := logging.ParseLogLevel(c.Logger.Level); levelErr != nil {
		err = multierr.Append(err, levelErr)
	}

	return err
}

func (c *Config) TLSEnabled() bool {
	return c.Server.CertFile != ""
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Sessions.TTL) * time.Second
}

// SessionOptions translates the codec section; the logger is left to the caller.
func (c *Config) SessionOptions() session.Options {
	policy, _ := hpack.ParseHuffmanPolicy(c.Codec.Huffman)
	return session.Options{
		HeaderTableSize:   c.Codec.HeaderTableSize,
		MaxHeaderListSize: c.Codec.MaxHeaderListSize,
		MaxFrameSize:      c.Sessions.MaxFrameSize,
		Huffman:           policy,
	}
}

// LoadConfig reads a YAML file, or a TOML file when the name ends in .toml.
func LoadConfig(configFileName string) (*Config, error) {
	data, err := os.ReadFile(configFileName)
	if err != nil {
		return nil, err
	}

	var config Config
	if strings.EqualFold(filepath.Ext(configFileName), ".toml") {
		err = toml.Unmarshal(data, &config)
	} else {
		err = yaml.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", configFileName, err)
	}

	if err := mergo.Merge(&config, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("cannot apply defaults: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFileName, err)
	}

	return &config, nil
}
