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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	libconfig "github.com/emunet-project/emunet/private/config"
)

func TestConfigSampleRoundTrip(t *testing.T) {
	var sample bytes.Buffer
	var cfg config
	cfg.Sample(&sample, nil, nil)

	var loaded config
	require.NoError(t, libconfig.Decode(sample.Bytes(), &loaded))
	loaded.InitDefaults()
	assert.NoError(t, loaded.Validate())
}

func TestConfigDefaults(t *testing.T) {
	var cfg config
	cfg.InitDefaults()

	assert.Equal(t, "emunet", cfg.General.ID)
	assert.Equal(t, defaultAPIAddr, cfg.API.Addr)
	assert.Equal(t, "info", cfg.Logging.Console.Level)
	assert.Empty(t, cfg.Metrics.Prometheus)
	assert.NoError(t, cfg.Validate())
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	raw := []byte("[general]\nid = \"x\"\nbogus = true\n")
	var cfg config
	assert.Error(t, libconfig.Decode(raw, &cfg))
}
