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

// Package cplane owns the lifecycle of the emulated network: a single
// topology instance, the fabric realizing it, and one exclusive gate over
// every operation that touches them.
package cplane

import (
	"context"
	"sync"

	"github.com/emunet-project/emunet/pkg/log"
	"github.com/emunet-project/emunet/pkg/private/serrors"
	"github.com/emunet-project/emunet/private/fabric"
	"github.com/emunet-project/emunet/private/netconf"
	"github.com/emunet-project/emunet/private/topology"
)

// The lifecycle error sentinels.
var (
	// ErrAlreadyRunning is returned by Start while a network is alive.
	ErrAlreadyRunning = serrors.New("network already running")
	// ErrNotRunning is returned by operations that need a live network.
	ErrNotRunning = serrors.New("network not running")
	// ErrNodeNotFound is returned when a node name is not part of the
	// current descriptor.
	ErrNodeNotFound = serrors.New("node not found")
)

// Params are the topology sizing parameters of a start request.
type Params struct {
	// NumEdges is the number of edge nodes (n_nodes).
	NumEdges int
	// NumPaths is the number of redundant paths (n_paths).
	NumPaths int
}

// InitDefaults sets the historical default of two edge nodes on two paths.
func (p *Params) InitDefaults() {
	if p.NumEdges == 0 {
		p.NumEdges = 2
	}
	if p.NumPaths == 0 {
		p.NumPaths = 2
	}
}

// ControlPlane is the single writer over the emulated network. All methods
// serialize on one mutex; the streaming Exec holds it for the entire
// lifetime of the executed command, so no lifecycle transition can overlap
// a running command. Reads take the same gate because they observe state a
// concurrent stop would tear down underneath them.
type ControlPlane struct {
	mu           sync.Mutex
	newFabric    fabric.Factory
	configurator *netconf.Configurator
	logger       log.Logger
	metrics      *Metrics

	// Both nil while stopped, both live while running.
	desc *topology.Descriptor
	fab  fabric.Fabric
}

// New creates a stopped control plane. The factory is invoked once per
// Start; metrics may be nil.
func New(factory fabric.Factory, metrics *Metrics) *ControlPlane {
	logger := log.New("component", "cplane")
	return &ControlPlane{
		newFabric:    factory,
		configurator: netconf.NewConfigurator(logger),
		logger:       logger,
		metrics:      metrics,
	}
}

// Start builds the topology for the given parameters, brings the fabric up
// and configures every node. On a mid-sequence failure the partially built
// network is not rolled back: the control plane stays Running and the
// documented recovery is an explicit Stop.
func (cp *ControlPlane) Start(ctx context.Context, params Params) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.desc != nil {
		return ErrAlreadyRunning
	}
	params.InitDefaults()

	desc, err := topology.Build(params.NumEdges, params.NumPaths)
	if err != nil {
		return err
	}
	fab := cp.newFabric()
	if err := fab.Start(ctx, desc); err != nil {
		return serrors.Wrap("starting fabric", err)
	}
	// The network exists from here on; an explicit Stop tears it down even
	// if configuration fails below.
	cp.desc = desc
	cp.fab = fab
	cp.metrics.networkUp(desc)
	cp.logger.Info("Network started",
		"n_nodes", params.NumEdges, "n_paths", params.NumPaths,
		"hosts", desc.HostCount(), "links", desc.LinkCount())

	if err := cp.configureAll(ctx); err != nil {
		cp.logger.Error("Configuration incomplete, explicit stop required", "err", err)
		return err
	}
	return nil
}

func (cp *ControlPlane) configureAll(ctx context.Context) error {
	for _, r := range cp.desc.Routers {
		h, ok := cp.fab.Node(r.Name)
		if !ok {
			return serrors.Join(ErrNodeNotFound, nil, "node", r.Name)
		}
		if err := cp.configurator.ConfigureRouter(ctx, h, r); err != nil {
			return err
		}
	}
	for i, e := range cp.desc.Edges {
		h, ok := cp.fab.Node(e.Name)
		if !ok {
			return serrors.Join(ErrNodeNotFound, nil, "node", e.Name)
		}
		if err := cp.configurator.ConfigureEdge(ctx, h, e, i+1, cp.desc.NumEdges); err != nil {
			return err
		}
	}
	gw, ok := cp.fab.Node(cp.desc.Gateway.Name)
	if !ok {
		return serrors.Join(ErrNodeNotFound, nil, "node", cp.desc.Gateway.Name)
	}
	if err := cp.configurator.ConfigureGateway(ctx, gw, cp.desc); err != nil {
		return err
	}
	for j := 1; j <= cp.desc.NumPaths; j++ {
		h, ok := cp.fab.Node(cp.desc.Routers[j].Name)
		if !ok {
			return serrors.Join(ErrNodeNotFound, nil, "node", cp.desc.Routers[j].Name)
		}
		if err := cp.configurator.ConfigurePathRouterReturn(ctx, h, cp.desc, j); err != nil {
			return err
		}
	}
	return nil
}

// Stop terminates every node, destroys the fabric and discards the
// descriptor. Stopping a stopped control plane succeeds, matching
// idempotent-shutdown expectations.
func (cp *ControlPlane) Stop(ctx context.Context) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.desc == nil {
		return nil
	}
	var errs serrors.List
	for _, r := range cp.desc.Routers {
		if h, ok := cp.fab.Node(r.Name); ok {
			if err := cp.configurator.TerminateRouter(ctx, h, r); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, e := range cp.desc.Edges {
		if h, ok := cp.fab.Node(e.Name); ok {
			if err := cp.configurator.TerminateEdge(ctx, h, e); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := cp.fab.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	cp.desc = nil
	cp.fab = nil
	cp.metrics.networkDown()
	cp.logger.Info("Network stopped", "errors", len(errs))
	if err := errs.ToError(); err != nil {
		return serrors.Wrap("stopping network", err)
	}
	return nil
}

// Running reports whether a network is alive.
func (cp *ControlPlane) Running() bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.desc != nil
}

// Descriptor returns the live descriptor, or false when stopped.
func (cp *ControlPlane) Descriptor() (*topology.Descriptor, bool) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.desc, cp.desc != nil
}

// NodeInfo is the wire representation of a node.
type NodeInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// LinkInfo is the wire representation of a link.
type LinkInfo struct {
	Node1  string `json:"node1"`
	Intf1  string `json:"intf1"`
	IP1    string `json:"ip1"`
	Node2  string `json:"node2"`
	Intf2  string `json:"intf2"`
	IP2    string `json:"ip2"`
	Status string `json:"status"`
}

// StatusInfo is the wire representation of the lifecycle state. Nodes and
// Links are only populated while running.
type StatusInfo struct {
	Status    string     `json:"status"`
	Nodes     []NodeInfo `json:"nodes,omitempty"`
	Links     []LinkInfo `json:"links,omitempty"`
	NodeCount int        `json:"node_count,omitempty"`
	LinkCount int        `json:"link_count,omitempty"`
}

// Nodes lists every node of the live topology, switches included.
func (cp *ControlPlane) Nodes() ([]NodeInfo, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.desc == nil {
		return nil, ErrNotRunning
	}
	return cp.nodesLocked(), nil
}

func (cp *ControlPlane) nodesLocked() []NodeInfo {
	nodes := make([]NodeInfo, 0, len(cp.desc.Nodes()))
	for _, n := range cp.desc.Nodes() {
		nodes = append(nodes, NodeInfo{Name: n.Name, Type: string(n.Type)})
	}
	return nodes
}

// Links lists every link of the live topology with its operational state.
func (cp *ControlPlane) Links(ctx context.Context) ([]LinkInfo, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.desc == nil {
		return nil, ErrNotRunning
	}
	return cp.linksLocked(ctx), nil
}

func (cp *ControlPlane) linksLocked(ctx context.Context) []LinkInfo {
	links := make([]LinkInfo, 0, len(cp.desc.Links))
	for _, l := range cp.desc.Links {
		status := "down"
		if cp.fab.LinkUp(ctx, l) {
			status = "up"
		}
		links = append(links, LinkInfo{
			Node1:  l.A.Node,
			Intf1:  l.A.Intf,
			IP1:    l.A.Addr.Addr().String(),
			Node2:  l.B.Node,
			Intf2:  l.B.Intf,
			IP2:    l.B.Addr.Addr().String(),
			Status: status,
		})
	}
	return links
}

// Status aggregates the lifecycle state. The node count covers hosts only,
// i.e. N + P + 2; switches are implementation detail of the links.
func (cp *ControlPlane) Status(ctx context.Context) StatusInfo {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.desc == nil {
		return StatusInfo{Status: "stopped"}
	}
	hosts := make([]NodeInfo, 0, cp.desc.HostCount())
	for _, n := range cp.desc.Hosts() {
		hosts = append(hosts, NodeInfo{Name: n.Name, Type: string(n.Type)})
	}
	links := cp.linksLocked(ctx)
	return StatusInfo{
		Status:    "running",
		Nodes:     hosts,
		Links:     links,
		NodeCount: len(hosts),
		LinkCount: len(links),
	}
}
