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

package netconf

import (
	"context"

	"github.com/emunet-project/emunet/pkg/log"
	"github.com/emunet-project/emunet/pkg/private/serrors"
	"github.com/emunet-project/emunet/private/fabric"
	"github.com/emunet-project/emunet/private/topology"
)

// Configurator applies configuration plans to nodes through the fabric's
// command capability. It carries no state; one instance serves all nodes.
type Configurator struct {
	logger log.Logger
}

// NewConfigurator returns a configurator logging under the given logger.
func NewConfigurator(logger log.Logger) *Configurator {
	if logger == nil {
		logger = log.Root()
	}
	return &Configurator{logger: logger}
}

// ConfigureRouter applies the router plan to the given node.
func (c *Configurator) ConfigureRouter(
	ctx context.Context,
	h fabric.NodeHandle,
	node topology.Node,
) error {
	c.logger.Debug("Configuring router", "node", node.Name)
	return c.apply(ctx, h, RouterConfigPlan(node))
}

// TerminateRouter reverses ConfigureRouter.
func (c *Configurator) TerminateRouter(
	ctx context.Context,
	h fabric.NodeHandle,
	node topology.Node,
) error {
	c.logger.Debug("Terminating router", "node", node.Name)
	return c.apply(ctx, h, RouterTerminatePlan(node))
}

// ConfigureEdge applies the edge plan to edge node index (1-based) of a
// topology with numEdges edge nodes.
func (c *Configurator) ConfigureEdge(
	ctx context.Context,
	h fabric.NodeHandle,
	node topology.Node,
	index, numEdges int,
) error {
	c.logger.Debug("Configuring edge node", "node", node.Name)
	return c.apply(ctx, h, EdgeConfigPlan(node, index, numEdges))
}

// TerminateEdge reverses ConfigureEdge.
func (c *Configurator) TerminateEdge(
	ctx context.Context,
	h fabric.NodeHandle,
	node topology.Node,
) error {
	c.logger.Debug("Terminating edge node", "node", node.Name)
	return c.apply(ctx, h, EdgeTerminatePlan(node))
}

// ConfigureGateway installs the cross-domain routes on the gateway host
// and the switch flood fallback.
func (c *Configurator) ConfigureGateway(
	ctx context.Context,
	h fabric.NodeHandle,
	d *topology.Descriptor,
) error {
	c.logger.Debug("Configuring gateway", "node", d.Gateway.Name)
	if err := c.apply(ctx, h, GatewayRoutePlan(d)); err != nil {
		return err
	}
	return c.apply(ctx, h, SwitchFloodPlan(d))
}

// ConfigurePathRouterReturn installs the return route of path router j
// towards the gateway-host subnet.
func (c *Configurator) ConfigurePathRouterReturn(
	ctx context.Context,
	h fabric.NodeHandle,
	d *topology.Descriptor,
	j int,
) error {
	return c.apply(ctx, h, PathRouterReturnPlan(d, j))
}

func (c *Configurator) apply(ctx context.Context, h fabric.NodeHandle, cmds []string) error {
	for _, cmd := range cmds {
		stdout, stderr, err := h.RunCommand(ctx, cmd)
		if err != nil {
			return serrors.Wrap("applying configuration command", err,
				"node", h.Name(), "command", cmd)
		}
		if c.logger.Enabled(log.DebugLevel) && (stdout != "" || stderr != "") {
			c.logger.Debug("Command output",
				"node", h.Name(), "command", cmd, "stdout", stdout, "stderr", stderr)
		}
	}
	return nil
}
