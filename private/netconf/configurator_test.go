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

package netconf_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emunet-project/emunet/private/fabric/fabrictest"
	"github.com/emunet-project/emunet/private/netconf"
	"github.com/emunet-project/emunet/private/topology"
)

func TestConfiguratorAppliesRouterPlanInOrder(t *testing.T) {
	d, err := topology.Build(2, 1)
	require.NoError(t, err)
	f := fabrictest.New()
	require.NoError(t, f.Start(context.Background(), d))
	c := netconf.NewConfigurator(nil)

	h, ok := f.Node("r1")
	require.True(t, ok)
	require.NoError(t, c.ConfigureRouter(context.Background(), h, d.Routers[0]))

	assert.Equal(t, netconf.RouterConfigPlan(d.Routers[0]), f.Lookup("r1").Commands())
}

func TestConfiguratorConfigureTerminateSymmetry(t *testing.T) {
	d, err := topology.Build(1, 1)
	require.NoError(t, err)
	f := fabrictest.New()
	require.NoError(t, f.Start(context.Background(), d))
	c := netconf.NewConfigurator(nil)
	ctx := context.Background()

	h, ok := f.Node("n1")
	require.True(t, ok)
	require.NoError(t, c.ConfigureEdge(ctx, h, d.Edges[0], 1, d.NumEdges))
	require.NoError(t, c.TerminateEdge(ctx, h, d.Edges[0]))

	cmds := f.Lookup("n1").Commands()
	// The daemon started by configure is flushed and killed by terminate.
	assert.Contains(t, cmds, "smcrouted -l debug -I smcroute-n1")
	assert.Contains(t, cmds, "smcroutectl -I smcroute-n1 flush")
	assert.Contains(t, cmds, "smcroutectl -I smcroute-n1 kill")
}

func TestConfiguratorGatewayIncludesFloodFallback(t *testing.T) {
	d, err := topology.Build(1, 1)
	require.NoError(t, err)
	f := fabrictest.New()
	require.NoError(t, f.Start(context.Background(), d))
	c := netconf.NewConfigurator(nil)

	h, ok := f.Node("nat0")
	require.True(t, ok)
	require.NoError(t, c.ConfigureGateway(context.Background(), h, d))

	cmds := f.Lookup("nat0").Commands()
	assert.Contains(t, cmds, "ip route add 11.0.1.0/24 via 11.0.2.1 dev nat0-eth0")
	assert.Contains(t, cmds, "bridge link set dev s0-nat0 flood on mcast_flood on")
}
