// Package config loads mirrorctl configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the MIRRORCTL_CONFIG environment variable. Without either, defaults are
// used. Command-line flags are applied on top by the caller, then Validate
// is run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "MIRRORCTL_CONFIG"

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Remote    RemoteConfig    `yaml:"remote"`
	HTTP      HTTPConfig      `yaml:"http"`
	Recording RecordingConfig `yaml:"recording"`
	Log       LogConfig       `yaml:"log"`
}

// DeviceConfig locates the device control socket.
type DeviceConfig struct {
	// Serial selects the device when several are attached.
	Serial string `yaml:"serial"`

	// ADB is the adb binary. Default: adb (found in PATH)
	ADB string `yaml:"adb"`

	// ControlAddr is the local TCP address of the control socket.
	// Default: 127.0.0.1:27183
	ControlAddr string `yaml:"control_addr" validate:"required,hostname_port"`

	// SocketName is the device's abstract socket, forwarded to ControlAddr
	// when Forward is set. Default: scrcpy
	SocketName string `yaml:"socket_name" validate:"required"`

	// Forward sets up `adb forward` before connecting.
	Forward bool `yaml:"forward"`

	// ConnectTimeout bounds the dial to ControlAddr. Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
}

// RemoteConfig configures the remote peer listener.
type RemoteConfig struct {
	// Listen is the TCP address for remote peers; empty disables it.
	// Default: 127.0.0.1:27184
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`

	// Announce registers the listener over mDNS.
	Announce bool `yaml:"announce"`

	// Instance is the mDNS instance name. Default: mirrorctl
	Instance string `yaml:"instance" validate:"required_if=Announce true"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	// Listen is the HTTP address; empty disables the API.
	// Default: 127.0.0.1:8079
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`

	// PIN unlocks the API. Empty disables authentication.
	PIN string `yaml:"pin"`

	// JWTSecret signs session tokens. Generated at startup when empty.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the session lifetime. Default: 2h
	TokenTTL time.Duration `yaml:"token_ttl" validate:"gt=0"`

	WebRTC WebRTCConfig `yaml:"webrtc"`
}

type WebRTCConfig struct {
	// ICEServers, e.g. stun:stun.l.google.com:19302
	ICEServers []string `yaml:"ice_servers" validate:"dive,required"`
	PortMin    uint16   `yaml:"port_min"`
	PortMax    uint16   `yaml:"port_max" validate:"omitempty,gtefield=PortMin"`
}

// RecordingConfig configures the recording sink.
type RecordingConfig struct {
	// Path is rewritten on every start_recording. Empty disables recording.
	// Default: saved_event.json
	Path string `yaml:"path"`
}

type LogConfig struct {
	// Level: debug, info, warn, error. Default: info
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Format: text or json. Default: text
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ADB:            "adb",
			ControlAddr:    "127.0.0.1:27183",
			SocketName:     "scrcpy",
			ConnectTimeout: 5 * time.Second,
		},
		Remote: RemoteConfig{
			Listen:   "127.0.0.1:27184",
			Instance: "mirrorctl",
		},
		HTTP: HTTPConfig{
			Listen:   "127.0.0.1:8079",
			TokenTTL: 2 * time.Hour,
		},
		Recording: RecordingConfig{
			Path: "saved_event.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path, or the file named by MIRRORCTL_CONFIG when path is
// empty, over the defaults. With neither set it returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.Recording.Path = os.ExpandEnv(cfg.Recording.Path)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
