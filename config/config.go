// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/propagation"
)

// Config aggregates configuration for the application.
type Config struct {
	Cache       CacheConfig       `mapstructure:"cache"`
	Propagation PropagationConfig `mapstructure:"propagation"`
	Resolve     ResolveConfig     `mapstructure:"resolve"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	// Invalidation is "expire" or "delete".
	Invalidation string `mapstructure:"invalidation"`
	// Retention bounds how long the in-memory cache keeps rows. Zero keeps
	// them until overwritten.
	Retention time.Duration `mapstructure:"retention"`
}

// PropagationConfig holds the defaults applied to requests that leave the
// flags unset.
type PropagationConfig struct {
	ToChildren             bool `mapstructure:"to_children"`
	PreserveLocalOverrides bool `mapstructure:"preserve_local_overrides"`
}

type ResolveConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	ServeStale  bool `mapstructure:"serve_stale"`
}

func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			TTL:          effcache.DefaultTTL,
			Invalidation: effcache.PolicyExpire.String(),
		},
		Propagation: PropagationConfig{
			ToChildren:             true,
			PreserveLocalOverrides: true,
		},
		Resolve: ResolveConfig{
			Concurrency: 8,
			ServeStale:  true,
		},
	}
}

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables.
// Environment variables use the prefix "HIERCFG" and the dot character
// in keys is replaced by an underscore. For example, "cache.ttl" becomes
// "HIERCFG_CACHE_TTL".
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory for config.yaml and tolerates its absence.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("HIERCFG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if _, err := effcache.ParsePolicy(cfg.Cache.Invalidation); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EngineOptions maps the configuration onto propagation engine options.
func (c *Config) EngineOptions() (propagation.Options, error) {
	policy, err := effcache.ParsePolicy(c.Cache.Invalidation)
	if err != nil {
		return propagation.Options{}, err
	}
	opts := propagation.DefaultOptions()
	opts.CacheTTL = c.Cache.TTL
	opts.Invalidation = policy
	opts.PreserveLocalOverrides = c.Propagation.PreserveLocalOverrides
	opts.ServeStale = c.Resolve.ServeStale
	opts.Concurrency = c.Resolve.Concurrency
	return opts, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
