// Package config holds the root configuration tree for an lsmkv Index:
// memtable sizing, on-disk run layout, cache capacity, bloom filter false
// positive target, and the point-lookup environment knobs (slow-lookup
// threshold, logging).
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the root configuration structure. yaml tags drive
// deserialization; there is no separate validation pass, matching the
// size of this repo's actual knob surface.
type Config struct {
	Logger LoggerConfig `yaml:"logger"`
	DB     DB           `yaml:"db"`
}

// DB groups every knob that shapes a single Index.
type DB struct {
	Env         Env               `yaml:"env"`
	Memtable    MemtableConfig    `yaml:"memtable"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

// Env carries the point-lookup environment: thresholds that change how a
// lookup behaves without changing what it returns.
type Env struct {
	// TooLongThresholdMs is the lookup latency, in milliseconds, above
	// which a completed PointLookup is logged at warn level with its key,
	// latency and whether a value was found.
	TooLongThresholdMs int64 `yaml:"too_long_threshold_ms"`

	// ArenaChunkBytes sizes the scratch arena handed to each lookup.
	ArenaChunkBytes int `yaml:"arena_chunk_bytes"`
}

type MemtableConfig struct {
	FlushThresholdBytes int `yaml:"flush_threshold"`
	FlushChanBuffSize   int `yaml:"flush_chan_buff_size"`
	MaxImmTables        int `yaml:"max_imm_tables"`
}

type PersistenceConfig struct {
	RootPath    string            `yaml:"path"`
	SSTable     SSTableConfig     `yaml:"sstable"`
	Cache       CacheConfig       `yaml:"cache"`
	BloomFilter BloomFilterConfig `yaml:"bloom_filter"`
}

type SSTableConfig struct {
	SizeMultiplier   int `yaml:"size_multiplier"`
	CompactThreshold int `yaml:"compact_threshold"`
}

type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

type BloomFilterConfig struct {
	FPRate float64 `yaml:"fp_rate"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "DEBUG",
			JSON:  false,
		},
		DB: DB{
			Env: Env{
				TooLongThresholdMs: 100,
				ArenaChunkBytes:    16 * 1024,
			},
			Memtable: MemtableConfig{
				FlushThresholdBytes: 1024 * 1024,
				FlushChanBuffSize:   3,
				MaxImmTables:        3,
			},
			Persistence: PersistenceConfig{
				RootPath: "./data",
				SSTable: SSTableConfig{
					SizeMultiplier:   10,
					CompactThreshold: 4,
				},
				Cache: CacheConfig{
					Capacity: 10000,
				},
				BloomFilter: BloomFilterConfig{
					FPRate: 0.01,
				},
			},
		},
	}
}

// Load reads path as YAML and unmarshals it into a Config. A missing file
// is not an error: it falls back to Default(), matching how the demo
// command boots with no config present.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
