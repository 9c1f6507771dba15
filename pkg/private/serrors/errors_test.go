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

package serrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emunet-project/emunet/pkg/private/serrors"
)

func TestNew(t *testing.T) {
	err := serrors.New("something failed", "ctx", 1)
	assert.Equal(t, "something failed {ctx=1}", err.Error())

	// Two errors with the same message are not the same error.
	assert.NotErrorIs(t, serrors.New("x"), serrors.New("x"))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := serrors.Wrap("operation failed", cause, "b", 2, "a", 1)

	assert.ErrorIs(t, err, cause)
	// Context is rendered in sorted key order.
	assert.Equal(t, "operation failed {a=1; b=2}: root cause", err.Error())
}

func TestJoinSupportsSentinels(t *testing.T) {
	sentinel := serrors.New("not found")
	cause := errors.New("lookup miss")

	err := serrors.Join(sentinel, cause, "name", "n3")
	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, serrors.Join(nil, nil))
	assert.ErrorIs(t, serrors.Join(sentinel, nil), sentinel)
}

func TestList(t *testing.T) {
	var errs serrors.List
	assert.NoError(t, errs.ToError())

	errs = append(errs, serrors.New("first"), serrors.New("second"))
	err := errs.ToError()
	assert.Error(t, err)
	assert.Equal(t, "[ first; second ]", err.Error())
}
