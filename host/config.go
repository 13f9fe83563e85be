package host

import (
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"gopkg.in/yaml.v3"
)

// DefaultCacheSize is the default number of unit records cached in memory.
const DefaultCacheSize = 1024

// Config groups Host configuration parameters.
type Config struct {
	// Storage backend of the Host. Defaults to in-memory one.
	Storage dbconfig.DBConfiguration `yaml:"Storage"`
	// Number of unit records cached in memory. Defaults to DefaultCacheSize.
	CacheSize int `yaml:"CacheSize"`
}

// DefaultConfig returns Config with in-memory storage.
func DefaultConfig() Config {
	return Config{
		Storage:   dbconfig.DBConfiguration{Type: dbconfig.InMemoryDB},
		CacheSize: DefaultCacheSize,
	}
}

// LoadConfig reads YAML Config from the given file. Omitted parameters are
// set to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("decode YAML config: %w", err)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = dbconfig.InMemoryDB
	}

	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	return cfg, nil
}

// NewFromConfig opens configured storage and constructs Host over it. The
// storage is closed by Host.Close.
func NewFromConfig(cfg Config, opts Options) (*Host, error) {
	st, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Type, err)
	}

	if opts.CacheSize == 0 {
		opts.CacheSize = cfg.CacheSize
	}

	h, err := New(st, opts)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return h, nil
}
