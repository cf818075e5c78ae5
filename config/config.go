/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package config provides structures and functions for loading and managing
// the caching engine configuration.
package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// CacheProperty holds the configuration for an individual cache domain.
type CacheProperty struct {
	Domain          string `yaml:"domain"`
	Disabled        bool   `yaml:"disabled"`
	Adapter         string `yaml:"adapter"`
	Size            int    `yaml:"size"`
	TTL             int    `yaml:"ttl"`
	EvictionPolicy  string `yaml:"eviction_policy"`
	CleanupInterval int    `yaml:"cleanup_interval"`
}

// BoltConfig holds the configuration for the persistent bolt adapter.
type BoltConfig struct {
	Path          string `yaml:"path"`
	FlushInterval int    `yaml:"flush_interval"`
}

// RedisConfig holds the configuration for the redis adapter.
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AdapterConfig holds the configuration for the storage adapters.
type AdapterConfig struct {
	Bolt  BoltConfig  `yaml:"bolt"`
	Redis RedisConfig `yaml:"redis"`
}

// HealthConfig holds the health monitor configuration.
type HealthConfig struct {
	CheckInterval     int     `yaml:"check_interval"`
	MinHitRate        float64 `yaml:"min_hit_rate"`
	MaxErrorRate      float64 `yaml:"max_error_rate"`
	MinAvailableSpace float64 `yaml:"min_available_space"`
	MaxResponseTime   int     `yaml:"max_response_time"`
}

// RevalidationConfig holds the stale-while-revalidate queue configuration.
type RevalidationConfig struct {
	TickInterval  int `yaml:"tick_interval"`
	MaxConcurrent int `yaml:"max_concurrent"`
	MinInterval   int `yaml:"min_interval"`
}

// CacheConfig holds the complete configuration of the caching engine.
type CacheConfig struct {
	Disabled        bool               `yaml:"disabled"`
	DefaultAdapter  string             `yaml:"default_adapter"`
	EvictionPolicy  string             `yaml:"eviction_policy"`
	CleanupInterval int                `yaml:"cleanup_interval"`
	Size            int                `yaml:"size"`
	TTL             int                `yaml:"ttl"`
	Properties      []CacheProperty    `yaml:"properties"`
	Adapters        AdapterConfig      `yaml:"adapters"`
	Health          HealthConfig       `yaml:"health"`
	Revalidation    RevalidationConfig `yaml:"revalidation"`
}

// GetCacheProperty retrieves the cache property for the specified domain.
// A zero-value property is returned when the domain has no explicit entry.
func (c CacheConfig) GetCacheProperty(domain string) CacheProperty {
	for _, property := range c.Properties {
		if property.Domain == domain {
			return property
		}
	}
	return CacheProperty{}
}

// LoadConfig loads the configurations from the specified YAML file.
func LoadConfig(path string) (*CacheConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is provided by the deployer
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg CacheConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}
