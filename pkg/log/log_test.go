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

package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emunet-project/emunet/pkg/log"
)

func TestConfigValidate(t *testing.T) {
	testCases := map[string]struct {
		cfg       log.ConsoleConfig
		assertErr assert.ErrorAssertionFunc
	}{
		"empty defaults":  {cfg: log.ConsoleConfig{}, assertErr: assert.NoError},
		"debug json":      {cfg: log.ConsoleConfig{Level: "debug", Format: "json"}, assertErr: assert.NoError},
		"bad level":       {cfg: log.ConsoleConfig{Level: "verbose"}, assertErr: assert.Error},
		"bad format":      {cfg: log.ConsoleConfig{Format: "xml"}, assertErr: assert.Error},
		"bad stacktrace":  {cfg: log.ConsoleConfig{StacktraceLevel: "sometimes"}, assertErr: assert.Error},
		"none stacktrace": {cfg: log.ConsoleConfig{StacktraceLevel: "none"}, assertErr: assert.NoError},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := log.Config{Console: tc.cfg}
			tc.assertErr(t, cfg.Validate())
		})
	}
}

func TestSetupRejectsBadLevel(t *testing.T) {
	err := log.Setup(log.Config{Console: log.ConsoleConfig{Level: "verbose"}})
	assert.Error(t, err)
}

func TestFromCtx(t *testing.T) {
	assert.NotNil(t, log.FromCtx(context.Background()))

	sub := log.New("component", "test")
	ctx := log.CtxWith(context.Background(), sub)
	assert.Equal(t, sub, log.FromCtx(ctx))

	ctx2, logger := log.WithLabels(ctx, "request", 7)
	assert.Equal(t, logger, log.FromCtx(ctx2))
}
