package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shyifrah/kas/internal/access"
	"github.com/shyifrah/kas/internal/auth"
	logpkg "github.com/shyifrah/kas/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// ServerName identifies this broker and is the SERVER class resource.
	ServerName string        `json:"serverName" yaml:"serverName"`
	DataDir    string        `json:"dataDir" yaml:"dataDir"`
	Fsync      string        `json:"fsync" yaml:"fsync"`
	Listen     ListenConfig  `json:"listen" yaml:"listen"`
	Session    SessionConfig `json:"session" yaml:"session"`
	Queues     QueueConfig   `json:"queues" yaml:"queues"`
	Log        logpkg.Config `json:"log" yaml:"log"`
	Users      []UserConfig  `json:"users" yaml:"users"`
	Access     []ClassConfig `json:"access" yaml:"access"`
}

// ListenConfig holds listener addresses. An empty address disables that
// listener, except Broker which is required.
type ListenConfig struct {
	Broker string `json:"broker" yaml:"broker"`
	GRPC   string `json:"grpc" yaml:"grpc"`
	HTTP   string `json:"http" yaml:"http"`
}

// SessionConfig bounds client sessions.
type SessionConfig struct {
	AuthTimeout Duration `json:"authTimeout" yaml:"authTimeout"`
	IdleTimeout Duration `json:"idleTimeout" yaml:"idleTimeout"`
	MaxGetWait  Duration `json:"maxGetWait" yaml:"maxGetWait"`
}

// QueueConfig captures queue engine defaults.
type QueueConfig struct {
	DefaultPoll   Duration `json:"defaultPoll" yaml:"defaultPoll"`
	MaxBodyBytes  int      `json:"maxBodyBytes" yaml:"maxBodyBytes"`
	SelectorCache int      `json:"selectorCache" yaml:"selectorCache"`
}

// UserConfig is one directory entry. PasswordHash is a bcrypt hash.
type UserConfig struct {
	Name         string   `json:"name" yaml:"name"`
	PasswordHash string   `json:"passwordHash" yaml:"passwordHash"`
	Groups       []string `json:"groups" yaml:"groups"`
}

// ClassConfig is the access list of one resource class.
type ClassConfig struct {
	Class   string        `json:"class" yaml:"class"`
	Default access.Level  `json:"default" yaml:"default"`
	Entries []EntryConfig `json:"entries" yaml:"entries"`
}

// EntryConfig is one access entry; entries are evaluated in file order.
type EntryConfig struct {
	Pattern string                  `json:"pattern" yaml:"pattern"`
	Users   map[string]access.Level `json:"users,omitempty" yaml:"users,omitempty"`
	Groups  map[string]access.Level `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Duration is a time.Duration read from strings such as "250ms" or "5m".
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		ServerName: "KAS",
		Fsync:      "always",
		Listen: ListenConfig{
			Broker: ":14560",
			GRPC:   "127.0.0.1:14561",
			HTTP:   "127.0.0.1:14562",
		},
		Session: SessionConfig{
			AuthTimeout: Duration(10 * time.Second),
			MaxGetWait:  Duration(5 * time.Minute),
		},
		Queues: QueueConfig{
			DefaultPoll:   Duration(100 * time.Millisecond),
			MaxBodyBytes:  4 << 20,
			SelectorCache: 256,
		},
		Log: logpkg.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON (comments allowed) or YAML file, by
// extension. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports the first structural problem in cfg.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServerName) == "" {
		return errors.New("config: serverName is required")
	}
	if c.Listen.Broker == "" {
		return errors.New("config: listen.broker is required")
	}
	if c.Queues.MaxBodyBytes < 0 || uint64(c.Queues.MaxBodyBytes) > math.MaxUint32 {
		return fmt.Errorf("config: queues.maxBodyBytes must be between 0 and %d", uint64(math.MaxUint32))
	}
	if _, err := c.AccessSpecs(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if u.Name == "" {
			return errors.New("config: user without name")
		}
		if seen[u.Name] {
			return fmt.Errorf("config: duplicate user %q", u.Name)
		}
		seen[u.Name] = true
	}
	return nil
}

// AuthUsers converts the users section into directory entries.
func (c Config) AuthUsers() []auth.User {
	out := make([]auth.User, 0, len(c.Users))
	for _, u := range c.Users {
		out = append(out, auth.User{
			Name:         u.Name,
			PasswordHash: u.PasswordHash,
			Groups:       append([]string(nil), u.Groups...),
		})
	}
	return out
}

// AccessSpecs converts the access section into per-class list specs.
func (c Config) AccessSpecs() (map[access.ClassName]access.ListSpec, error) {
	out := make(map[access.ClassName]access.ListSpec, len(c.Access))
	for _, cc := range c.Access {
		name := access.ClassName(strings.ToUpper(strings.TrimSpace(cc.Class)))
		if name == "" {
			return nil, errors.New("config: access class without name")
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("config: duplicate access class %q", name)
		}
		spec := access.ListSpec{Default: cc.Default}
		for _, ec := range cc.Entries {
			spec.Entries = append(spec.Entries, access.EntrySpec{
				Pattern: ec.Pattern,
				Users:   ec.Users,
				Groups:  ec.Groups,
			})
		}
		out[name] = spec
	}
	return out, nil
}
