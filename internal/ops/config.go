package ops

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the YAML config layout.
type FileConfig struct {
	Venue    VenueConfig    `yaml:"venue"`
	Backlog  BacklogConfig  `yaml:"backlog"`
	Resolver ResolverConfig `yaml:"resolver"`
	Journal  JournalConfig  `yaml:"journal"`
	Profiler ProfilerConfig `yaml:"profiler"`
	Assets   []AssetConfig  `yaml:"assets"`
}

// VenueConfig describes the venue endpoint and session credentials.
type VenueConfig struct {
	URL                string `yaml:"url"`
	Origin             string `yaml:"origin"`
	UserAgent          string `yaml:"userAgent"`
	Token              string `yaml:"token"`
	Demo               *bool  `yaml:"demo"`
	HeartbeatSeconds   int    `yaml:"heartbeatSeconds"`
	HandshakeSeconds   int    `yaml:"handshakeSeconds"`
	DialRetries        uint64 `yaml:"dialRetries"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// BacklogConfig bounds the unclaimed push buffer.
type BacklogConfig struct {
	Capacity int `yaml:"capacity"`
	TrimTo   int `yaml:"trimTo"`
}

// ResolverConfig tunes the trade lifecycle waits.
type ResolverConfig struct {
	ConfirmSeconds int `yaml:"confirmSeconds"`
	ResultSeconds  int `yaml:"resultSeconds"`
}

// JournalConfig points at the optional deal journal database.
type JournalConfig struct {
	DSN string `yaml:"dsn"`
}

// ProfilerConfig captures the optional continuous profiler target.
type ProfilerConfig struct {
	ServerAddress   string `yaml:"serverAddress"`
	ApplicationName string `yaml:"applicationName"`
}

// AssetConfig maps a venue asset id to a human symbol.
type AssetConfig struct {
	ID     int    `yaml:"id"`
	Symbol string `yaml:"symbol"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Venue    VenueSpec
	Backlog  BacklogConfig
	Resolver ResolverSpec
	Journal  JournalConfig
	Profiler ProfilerConfig
	Symbols  map[string]int
}

// VenueSpec is the resolved venue definition.
type VenueSpec struct {
	URL                string
	Origin             string
	UserAgent          string
	Token              string
	Demo               bool
	Heartbeat          time.Duration
	Handshake          time.Duration
	DialRetries        uint64
	InsecureSkipVerify bool
}

// ResolverSpec is the resolved lifecycle timing.
type ResolverSpec struct {
	ConfirmTimeout time.Duration
	ResultTimeout  time.Duration
}

// Load reads a YAML config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	venue, err := resolveVenue(cfg.Venue)
	if err != nil {
		return Loaded{}, err
	}
	backlog, err := resolveBacklog(cfg.Backlog)
	if err != nil {
		return Loaded{}, err
	}
	resolver, err := resolveResolver(cfg.Resolver)
	if err != nil {
		return Loaded{}, err
	}
	symbols, err := buildSymbols(cfg.Assets)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Venue:    venue,
		Backlog:  backlog,
		Resolver: resolver,
		Journal:  cfg.Journal,
		Profiler: cfg.Profiler,
		Symbols:  symbols,
	}, nil
}

func resolveVenue(cfg VenueConfig) (VenueSpec, error) {
	if cfg.URL == "" {
		return VenueSpec{}, fmt.Errorf("venue url is empty")
	}
	if cfg.Token == "" {
		return VenueSpec{}, fmt.Errorf("venue token is empty")
	}
	if cfg.HeartbeatSeconds < 0 || cfg.HandshakeSeconds < 0 {
		return VenueSpec{}, fmt.Errorf("venue timings must be >= 0")
	}
	demo := true
	if cfg.Demo != nil {
		demo = *cfg.Demo
	}
	return VenueSpec{
		URL:                cfg.URL,
		Origin:             cfg.Origin,
		UserAgent:          cfg.UserAgent,
		Token:              cfg.Token,
		Demo:               demo,
		Heartbeat:          time.Duration(cfg.HeartbeatSeconds) * time.Second,
		Handshake:          time.Duration(cfg.HandshakeSeconds) * time.Second,
		DialRetries:        cfg.DialRetries,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, nil
}

func resolveBacklog(cfg BacklogConfig) (BacklogConfig, error) {
	if cfg.Capacity < 0 || cfg.TrimTo < 0 {
		return BacklogConfig{}, fmt.Errorf("backlog bounds must be >= 0")
	}
	if cfg.Capacity != 0 && cfg.TrimTo >= cfg.Capacity {
		return BacklogConfig{}, fmt.Errorf("backlog trimTo must be < capacity")
	}
	return cfg, nil
}

func resolveResolver(cfg ResolverConfig) (ResolverSpec, error) {
	if cfg.ConfirmSeconds < 0 || cfg.ResultSeconds < 0 {
		return ResolverSpec{}, fmt.Errorf("resolver waits must be >= 0")
	}
	return ResolverSpec{
		ConfirmTimeout: time.Duration(cfg.ConfirmSeconds) * time.Second,
		ResultTimeout:  time.Duration(cfg.ResultSeconds) * time.Second,
	}, nil
}

func buildSymbols(assets []AssetConfig) (map[string]int, error) {
	symbols := make(map[string]int, len(assets))
	for _, asset := range assets {
		if asset.Symbol == "" {
			return nil, fmt.Errorf("asset %d has an empty symbol", asset.ID)
		}
		if asset.ID <= 0 {
			return nil, fmt.Errorf("asset %s has an invalid id", asset.Symbol)
		}
		if prev, ok := symbols[asset.Symbol]; ok {
			return nil, fmt.Errorf("symbol %s maps to both %d and %d", asset.Symbol, prev, asset.ID)
		}
		symbols[asset.Symbol] = asset.ID
	}
	return symbols, nil
}
