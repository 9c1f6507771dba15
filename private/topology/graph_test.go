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

package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emunet-project/emunet/private/topology"
)

func TestGraphProjection(t *testing.T) {
	d, err := topology.Build(2, 2)
	require.NoError(t, err)

	g, err := d.Graph()
	require.NoError(t, err)
	for _, n := range d.Nodes() {
		assert.True(t, g.HasVertex(n.Name), "missing vertex %s", n.Name)
	}
}

func TestReachable(t *testing.T) {
	for _, tc := range []struct{ numEdges, numPaths int }{
		{1, 1}, {2, 2}, {4, 3},
	} {
		d, err := topology.Build(tc.numEdges, tc.numPaths)
		require.NoError(t, err)

		ok, err := d.Reachable()
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
