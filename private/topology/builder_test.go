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
	"fmt"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emunet-project/emunet/private/topology"
)

func TestBuildInvalidParameters(t *testing.T) {
	testCases := map[string]struct {
		numEdges int
		numPaths int
	}{
		"zero edges":     {numEdges: 0, numPaths: 2},
		"zero paths":     {numEdges: 2, numPaths: 0},
		"negative edges": {numEdges: -1, numPaths: 2},
		"negative paths": {numEdges: 2, numPaths: -3},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := topology.Build(tc.numEdges, tc.numPaths)
			assert.ErrorIs(t, err, topology.ErrInvalidParameter)
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	a, err := topology.Build(3, 2)
	require.NoError(t, err)
	b, err := topology.Build(3, 2)
	require.NoError(t, err)

	diff := cmp.Diff(a, b,
		cmp.Comparer(func(x, y netip.Addr) bool { return x == y }),
		cmp.Comparer(func(x, y netip.Prefix) bool { return x == y }),
	)
	assert.Empty(t, diff)
}

func TestBuildCounts(t *testing.T) {
	testCases := []struct {
		numEdges int
		numPaths int
	}{
		{numEdges: 1, numPaths: 1},
		{numEdges: 2, numPaths: 2},
		{numEdges: 5, numPaths: 3},
	}
	for _, tc := range testCases {
		name := fmt.Sprintf("%d edges %d paths", tc.numEdges, tc.numPaths)
		t.Run(name, func(t *testing.T) {
			d, err := topology.Build(tc.numEdges, tc.numPaths)
			require.NoError(t, err)

			assert.Len(t, d.Routers, tc.numPaths+1)
			assert.Len(t, d.Edges, tc.numEdges)
			assert.Equal(t, tc.numEdges+tc.numPaths+2, d.HostCount())

			// One external link, one link per edge and router, one link per
			// path router back to the gateway router. One switch per link.
			wantLinks := 1 + tc.numEdges*(tc.numPaths+1) + tc.numPaths
			assert.Equal(t, wantLinks, d.LinkCount())
			assert.Len(t, d.Switches, wantLinks)
		})
	}
}

func TestBuildSubnetsDisjoint(t *testing.T) {
	d, err := topology.Build(4, 3)
	require.NoError(t, err)

	seen := make(map[netip.Prefix]string)
	for _, l := range d.Links {
		if prev, ok := seen[l.Subnet]; ok {
			t.Fatalf("subnet %s assigned to both %s and %s", l.Subnet, prev, l.Switch)
		}
		seen[l.Subnet] = l.Switch
	}
}

func TestBuildAddressing(t *testing.T) {
	d, err := topology.Build(2, 1)
	require.NoError(t, err)

	require.Len(t, d.Routers, 2)
	assert.Equal(t, "r1", d.Routers[0].Name)
	assert.Equal(t, "r2", d.Routers[1].Name)
	assert.Equal(t, "nat0", d.Gateway.Name)
	require.Len(t, d.Edges, 2)
	assert.Equal(t, "n1", d.Edges[0].Name)
	assert.Equal(t, "n2", d.Edges[1].Name)

	// External link is built first, so the gateway router's external
	// interface is r1-eth0.
	ext := d.Links[0]
	assert.Equal(t, "nat0-eth0", ext.A.Intf)
	assert.Equal(t, "11.0.3.2", ext.A.Addr.Addr().String())
	assert.Equal(t, "r1-eth0", ext.B.Intf)
	assert.Equal(t, "11.0.3.1", ext.B.Addr.Addr().String())

	assertLink(t, d, "n1", "r1", "11.0.1.2", "11.0.1.1")
	assertLink(t, d, "n1", "r2", "12.0.1.2", "12.0.1.1")
	assertLink(t, d, "n2", "r1", "11.0.2.2", "11.0.2.1")
	assertLink(t, d, "n2", "r2", "12.0.2.2", "12.0.2.1")
	assertLink(t, d, "r2", "r1", "11.12.1.2", "11.12.1.1")

	assert.Equal(t, "11.0.1.1", d.Edges[0].DefaultRoute.String())
	assert.Equal(t, "11.0.2.1", d.Edges[1].DefaultRoute.String())
	assert.Equal(t, "11.0.3.2", d.Routers[0].DefaultRoute.String())
}

func TestBuildInterfaceOrdinals(t *testing.T) {
	d, err := topology.Build(2, 2)
	require.NoError(t, err)

	// Edge interface ordinal k leads to router k, whose links carry first
	// octet 11+k.
	for _, e := range d.Edges {
		require.Len(t, e.Interfaces, 3)
		for k, intf := range e.Interfaces {
			assert.Equal(t, fmt.Sprintf("%s-eth%d", e.Name, k), intf.Name)
			assert.EqualValues(t, 11+k, intf.IP().As4()[0])
		}
	}
}

// assertLink verifies that a link between the two nodes exists and carries
// the given addresses.
func assertLink(t *testing.T, d *topology.Descriptor, a, b, aIP, bIP string) {
	t.Helper()
	for _, l := range d.Links {
		if l.A.Node == a && l.B.Node == b {
			assert.Equal(t, aIP, l.A.Addr.Addr().String())
			assert.Equal(t, bIP, l.B.Addr.Addr().String())
			return
		}
	}
	t.Fatalf("no link between %s and %s", a, b)
}

func TestNodeLookup(t *testing.T) {
	d, err := topology.Build(2, 1)
	require.NoError(t, err)

	n, ok := d.Node("r2")
	require.True(t, ok)
	assert.Equal(t, topology.TypeRouter, n.Type)

	_, ok = d.Node("bogus")
	assert.False(t, ok)
}
