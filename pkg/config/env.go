// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"github.com/kelseyhightower/envconfig"
	"gitlab.com/tozd/go/errors"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "tracksync"

// 🌱 Env holds the environment overrides. Unset variables leave the file's
// values alone.
type Env struct {
	CacheDSN    string `envconfig:"CACHE_DSN"`
	Parallelism *int   `envconfig:"PARALLELISM"`
	Debug       *bool  `envconfig:"DEBUG"`
	LogFile     string `envconfig:"LOG_FILE"`
}

// ReadEnv reads TRACKSYNC_* variables.
func ReadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, errors.Errorf("processing environment: %w", err)
	}
	return &env, nil
}

// ApplyEnv overlays the TRACKSYNC_* variables on cfg.
func ApplyEnv(cfg *Config) error {
	env, err := ReadEnv()
	if err != nil {
		return err
	}
	env.Apply(cfg)
	return nil
}

func (e *Env) Apply(cfg *Config) {
	if e.CacheDSN != "" {
		cfg.CacheDSN = e.CacheDSN
	}
	if e.Parallelism != nil {
		cfg.Parallelism = *e.Parallelism
	}
	if e.Debug != nil {
		cfg.Debug = *e.Debug
	}
	if e.LogFile != "" {
		cfg.LogFile = e.LogFile
	}
}
