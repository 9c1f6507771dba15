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

package cplane_test

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/emunet-project/emunet/private/cplane"
	"github.com/emunet-project/emunet/private/fabric"
	"github.com/emunet-project/emunet/private/fabric/fabrictest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestPlane() (*cplane.ControlPlane, *fabrictest.Fabric) {
	f := fabrictest.New()
	cp := cplane.New(func() fabric.Fabric { return f }, nil)
	return cp, f
}

func TestLifecycle(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()

	assert.Equal(t, "stopped", cp.Status(ctx).Status)
	assert.False(t, cp.Running())

	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 2, NumPaths: 1}))
	assert.True(t, cp.Running())
	assert.True(t, f.Started())

	err := cp.Start(ctx, cplane.Params{NumEdges: 2, NumPaths: 1})
	assert.ErrorIs(t, err, cplane.ErrAlreadyRunning)
	assert.True(t, cp.Running())

	require.NoError(t, cp.Stop(ctx))
	assert.False(t, cp.Running())
	assert.False(t, f.Started())

	// Stopping a stopped control plane succeeds.
	require.NoError(t, cp.Stop(ctx))
}

func TestStatusRunning(t *testing.T) {
	cp, _ := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 2, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	status := cp.Status(ctx)
	assert.Equal(t, "running", status.Status)
	// Hosts only: 2 edges, 1+1 routers, gateway host.
	assert.Equal(t, 5, status.NodeCount)
	assert.Equal(t, 6, status.LinkCount)
	assert.Len(t, status.Nodes, 5)
	assert.Len(t, status.Links, 6)
	for _, l := range status.Links {
		assert.Equal(t, "up", l.Status)
	}
}

func TestStatusStopped(t *testing.T) {
	cp, _ := newTestPlane()

	status := cp.Status(context.Background())
	assert.Equal(t, "stopped", status.Status)
	assert.Empty(t, status.Nodes)
	assert.Empty(t, status.Links)
	assert.Zero(t, status.NodeCount)
	assert.Zero(t, status.LinkCount)
}

func TestStartDefaults(t *testing.T) {
	cp, _ := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	d, ok := cp.Descriptor()
	require.True(t, ok)
	assert.Equal(t, 2, d.NumEdges)
	assert.Equal(t, 2, d.NumPaths)
}

func TestStartFabricFailure(t *testing.T) {
	cp, f := newTestPlane()
	f.StartErr = errors.New("no privileges")

	err := cp.Start(context.Background(), cplane.Params{NumEdges: 1, NumPaths: 1})
	require.Error(t, err)
	// The fabric never came up, so the control plane stays stopped.
	assert.False(t, cp.Running())
}

func TestStartConfigureFailure(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()

	// The first router's relay daemon refuses to launch, aborting the
	// configuration sweep mid-way.
	daemonErr := errors.New("smcrouted missing")
	f.Fail("smcrouted -l debug", daemonErr)

	err := cp.Start(ctx, cplane.Params{NumEdges: 2, NumPaths: 1})
	require.ErrorIs(t, err, daemonErr)

	// The fabric came up before configuration, so there is no rollback: the
	// network stays alive and an explicit stop is the recovery path.
	assert.True(t, cp.Running())
	assert.True(t, f.Started())

	require.NoError(t, cp.Stop(ctx))
	assert.False(t, cp.Running())
	assert.False(t, f.Started())
}

func TestNodesIncludeSwitches(t *testing.T) {
	cp, _ := newTestPlane()
	ctx := context.Background()

	_, err := cp.Nodes()
	assert.ErrorIs(t, err, cplane.ErrNotRunning)

	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 2, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	nodes, err := cp.Nodes()
	require.NoError(t, err)
	// 5 hosts plus one switch per link.
	assert.Len(t, nodes, 11)
	types := make(map[string]bool)
	for _, n := range nodes {
		types[n.Type] = true
	}
	assert.True(t, types["LinuxRouter"])
	assert.True(t, types["EdgeNode"])
	assert.True(t, types["NAT"])
	assert.True(t, types["OVSSwitch"])
}

func TestLinksReportDown(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 1, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	f.DownLinks = map[string]bool{"s0": true}
	links, err := cp.Links(ctx)
	require.NoError(t, err)
	down := 0
	for _, l := range links {
		if l.Status == "down" {
			down++
		}
	}
	assert.Equal(t, 1, down)
}

func TestExecUnknownNode(t *testing.T) {
	cp, _ := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 1, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	err := cp.ExecBackground(ctx, "bogus", "true")
	assert.ErrorIs(t, err, cplane.ErrNodeNotFound)
	assert.True(t, cp.Running())
}

func TestExecNotRunning(t *testing.T) {
	cp, _ := newTestPlane()
	err := cp.ExecBackground(context.Background(), "n1", "true")
	assert.ErrorIs(t, err, cplane.ErrNotRunning)
}

func TestExecBackgroundDetaches(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 1, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	require.NoError(t, cp.ExecBackground(ctx, "n1", "sleep 600"))
	assert.Contains(t, f.Lookup("n1").Commands(), "sleep 600 &")

	// An already-detached command is passed through unchanged.
	require.NoError(t, cp.ExecBackground(ctx, "n1", "sleep 600 &"))
	cmds := f.Lookup("n1").Commands()
	assert.Equal(t, "sleep 600 &", cmds[len(cmds)-1])
}

type chunkRecorder struct {
	chunks []string
	err    error
}

func (c *chunkRecorder) WriteChunk(chunk string) error {
	if c.err != nil {
		return c.err
	}
	c.chunks = append(c.chunks, chunk)
	return nil
}

func TestExecStream(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 1, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	f.Reply("cat /etc/hosts", "first\nsecond\n")
	rec := &chunkRecorder{}
	require.NoError(t, cp.ExecStream(ctx, "n1", "cat /etc/hosts", rec))
	assert.Equal(t, []string{"first\n", "second\n"}, rec.chunks)
}

func TestExecStreamSinkFailure(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 1, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	f.Reply("yes", "y\ny\n")
	rec := &chunkRecorder{err: errors.New("client gone")}
	err := cp.ExecStream(ctx, "n1", "yes", rec)
	require.Error(t, err)
	assert.Empty(t, rec.chunks)
}

func TestExecStreamOversizedLine(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 1, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	// A line above the scanner's buffer cap breaks the stream mid-way. The
	// command must not report success, and the process must be killed
	// rather than left running behind the gate.
	f.Reply("dump", "first\n"+strings.Repeat("x", 2<<20)+"\nlast\n")
	rec := &chunkRecorder{}
	err := cp.ExecStream(ctx, "n1", "dump", rec)
	require.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Equal(t, []string{"first\n"}, rec.chunks)
	assert.Equal(t, 1, f.Lookup("n1").Kills())
}

func TestPingAll(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 2, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	f.Reply("ping -R -c 1", "1 packets transmitted, 1 received")
	results, err := cp.PingAll(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Same-path pair is probed and succeeds.
	res, ok := results["n1(11.0.1.2) -> n2(11.0.2.2)"]
	require.True(t, ok)
	assert.Equal(t, "Success", res.Ping)

	// Cross-path pairs between edge nodes are skipped.
	_, ok = results["n1(11.0.1.2) -> n2(12.0.2.2)"]
	assert.False(t, ok)

	// The gateway host is probed regardless of prefix.
	_, ok = results["n1(12.0.1.2) -> nat0(11.0.3.2)"]
	assert.True(t, ok)
}

func TestPingAllFailure(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 2, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	f.Reply("ping -R -c 1", "1 packets transmitted, 0 received")
	results, err := cp.PingAll(ctx)
	require.NoError(t, err)
	for key, r := range results {
		assert.Equal(t, "Failure", r.Ping, key)
	}
}

func TestPingAllNotRunning(t *testing.T) {
	cp, _ := newTestPlane()
	_, err := cp.PingAll(context.Background())
	assert.ErrorIs(t, err, cplane.ErrNotRunning)
}

func TestConfigurationCommandsApplied(t *testing.T) {
	cp, f := newTestPlane()
	ctx := context.Background()
	require.NoError(t, cp.Start(ctx, cplane.Params{NumEdges: 2, NumPaths: 1}))
	defer func() { require.NoError(t, cp.Stop(ctx)) }()

	// Start configures routers, edges and the gateway host.
	assert.Contains(t, f.Lookup("r1").Commands(), "sysctl -w net.ipv4.ip_forward=1")
	assert.Contains(t, f.Lookup("n1").Commands(), "ip route replace default via 11.0.1.1")
	assert.Contains(t, f.Lookup("nat0").Commands(),
		"ip route add 11.0.1.0/24 via 11.0.3.1 dev nat0-eth0")
	// Path router r2 gets the return route towards the gateway subnet.
	assert.Contains(t, f.Lookup("r2").Commands(),
		"ip route add 11.0.3.0/24 via 11.12.1.1 dev r2-eth2")
}
