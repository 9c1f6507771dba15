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

// Package topology derives the emulated network layout from the two sizing
// parameters: the number of edge nodes and the number of redundant paths.
//
// The derivation is a pure function. Node and switch names, interface
// ordinals and the complete IPv4 addressing plan follow from (role, index)
// alone, so any component can address a node without a lookup table built
// during a prior run.
package topology

import (
	"fmt"
	"net/netip"
)

// NodeType classifies the nodes of a descriptor. The values mirror the node
// classes of the emulation fabric.
type NodeType string

const (
	// TypeRouter is a forwarding node, either the gateway router or one of
	// the path routers.
	TypeRouter NodeType = "LinuxRouter"
	// TypeEdge is a leaf host representing an end system.
	TypeEdge NodeType = "EdgeNode"
	// TypeGateway is the NAT host providing external connectivity.
	TypeGateway NodeType = "NAT"
	// TypeSwitch is an L2 relay connecting the interfaces assigned to it.
	TypeSwitch NodeType = "OVSSwitch"
)

// Interface is one addressed attachment point of a host.
type Interface struct {
	// Name is the fabric interface name, e.g. "n1-eth0".
	Name string
	// Addr is the assigned address including the /24 prefix length.
	Addr netip.Prefix
}

// IP returns the interface address without the prefix length.
func (i Interface) IP() netip.Addr {
	return i.Addr.Addr()
}

// Subnet returns the /24 the interface lives in.
func (i Interface) Subnet() netip.Prefix {
	return i.Addr.Masked()
}

// Node is a host of the topology: the gateway, a router or an edge node.
// Switches carry no interfaces of their own; their ports are implied by the
// links that name them.
type Node struct {
	Name string
	Type NodeType
	// Interfaces in ordinal order. The ordinal is the position in this
	// slice, and for edge nodes it equals the path index the interface
	// attaches to.
	Interfaces []Interface
	// DefaultRoute is the next hop of the default route, if any.
	DefaultRoute netip.Addr
}

// Interface returns the interface with the given ordinal.
func (n Node) Interface(ordinal int) (Interface, bool) {
	if ordinal < 0 || ordinal >= len(n.Interfaces) {
		return Interface{}, false
	}
	return n.Interfaces[ordinal], true
}

// Endpoint is one side of a link.
type Endpoint struct {
	Node string
	Intf string
	Addr netip.Prefix
}

// Link is one L3 link of the topology. Both endpoints are addressed out of
// Subnet; Switch names the L2 relay realizing the link.
type Link struct {
	A      Endpoint
	B      Endpoint
	Switch string
	Subnet netip.Prefix
}

// Descriptor is the complete, addressed graph for a given (N, P). It is
// immutable after construction; all methods are read-only projections.
type Descriptor struct {
	// NumEdges is the requested number of edge nodes (N).
	NumEdges int
	// NumPaths is the requested number of redundant paths (P).
	NumPaths int

	// Gateway is the NAT host.
	Gateway Node
	// Routers holds P+1 routers; index 0 is the gateway router, indices
	// 1..P the path routers.
	Routers []Node
	// Edges holds the N edge nodes in index order.
	Edges []Node
	// Switches holds one switch per link, in link allocation order.
	Switches []Node
	// Links is the edge list of the topology.
	Links []Link
}

// Hosts returns the gateway, all routers and all edge nodes, in that order.
func (d *Descriptor) Hosts() []Node {
	hosts := make([]Node, 0, 1+len(d.Routers)+len(d.Edges))
	hosts = append(hosts, d.Gateway)
	hosts = append(hosts, d.Routers...)
	hosts = append(hosts, d.Edges...)
	return hosts
}

// Nodes returns every node of the topology, hosts first, then switches.
func (d *Descriptor) Nodes() []Node {
	nodes := d.Hosts()
	return append(nodes, d.Switches...)
}

// Node looks up a node by name.
func (d *Descriptor) Node(name string) (Node, bool) {
	for _, n := range d.Nodes() {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// HostCount returns the number of hosts, i.e. N + P + 2.
func (d *Descriptor) HostCount() int {
	return 1 + len(d.Routers) + len(d.Edges)
}

// LinkCount returns the number of links.
func (d *Descriptor) LinkCount() int {
	return len(d.Links)
}

// GatewayName returns the name of the NAT host.
func GatewayName() string { return "nat0" }

// RouterName returns the stable name of router j; j = 0 is the gateway
// router.
func RouterName(j int) string { return fmt.Sprintf("r%d", j+1) }

// EdgeName returns the stable name of edge node i, counting from 1.
func EdgeName(i int) string { return fmt.Sprintf("n%d", i) }

// SwitchName returns the stable name of the switch with allocation index c.
func SwitchName(c int) string { return fmt.Sprintf("s%d", c) }

// IntfName returns the fabric name of interface k of the given node.
func IntfName(node string, k int) string { return fmt.Sprintf("%s-eth%d", node, k) }

// PathOctet returns the first octet owned by router j: 11 + j.
func PathOctet(j int) int { return 11 + j }
