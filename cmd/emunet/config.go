// Copyright 2025 The emunet authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"io"

	"github.com/emunet-project/emunet/pkg/log"
	"github.com/emunet-project/emunet/pkg/private/serrors"
	libconfig "github.com/emunet-project/emunet/private/config"
)

const defaultAPIAddr = ":8080"

type config struct {
	General generalConfig `toml:"general,omitempty"`
	Logging log.Config    `toml:"log,omitempty"`
	API     apiConfig     `toml:"api,omitempty"`
	Metrics metricsConfig `toml:"metrics,omitempty"`
}

type generalConfig struct {
	// ID is the instance identifier, used in logs.
	ID string `toml:"id,omitempty"`
}

type apiConfig struct {
	// Addr is the listen address of the control API.
	Addr string `toml:"addr,omitempty"`
}

type metricsConfig struct {
	// Prometheus is the listen address of the metrics endpoint. Empty
	// disables metrics serving.
	Prometheus string `toml:"prometheus,omitempty"`
}

func (cfg *config) InitDefaults() {
	libconfig.InitAll(&cfg.Logging)
	if cfg.General.ID == "" {
		cfg.General.ID = "emunet"
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = defaultAPIAddr
	}
}

func (cfg *config) Validate() error {
	if cfg.API.Addr == "" {
		return serrors.New("api.addr must not be empty")
	}
	return libconfig.ValidateAll(&cfg.Logging)
}

func (cfg *config) Sample(dst io.Writer, path libconfig.Path, _ libconfig.CtxMap) {
	libconfig.WriteSample(dst, path, libconfig.CtxMap{},
		libconfig.StringSampler{Text: generalSample, Name: "general"},
		libconfig.StringSampler{Text: logSample, Name: "log.console"},
		libconfig.StringSampler{Text: apiSample, Name: "api"},
		libconfig.StringSampler{Text: metricsSample, Name: "metrics"},
	)
}

const generalSample = `
# Identifier of this instance, used in logs. (default "emunet")
id = "emunet"
`

const logSample = `
# Console logging level. (debug|info|error) (default info)
level = "info"

# Encoding of the console logs. (human|json) (default human)
format = "human"

# Level at which stack traces are logged. (none|error) (default none)
stacktrace_level = "none"
`

const apiSample = `
# Listen address of the control API. (default ":8080")
addr = ":8080"
`

const metricsSample = `
# Listen address of the prometheus endpoint. Empty disables metrics.
prometheus = ""
`
