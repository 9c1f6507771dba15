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

package topology

import (
	"fmt"
	"net/netip"

	"github.com/emunet-project/emunet/pkg/private/serrors"
)

// ErrInvalidParameter indicates a non-positive topology sizing parameter.
var ErrInvalidParameter = serrors.New("invalid topology parameter")

// Build derives the descriptor for numEdges edge nodes with numPaths
// redundant paths. It is pure and deterministic: two calls with the same
// parameters yield structurally identical descriptors.
//
// Construction order:
//  1. gateway host, gateway router and their external link
//  2. the path routers
//  3. per edge node, one link to every router (gateway router first)
//  4. per path router, one link back to the gateway router
func Build(numEdges, numPaths int) (*Descriptor, error) {
	if numEdges < 1 {
		return nil, serrors.Join(ErrInvalidParameter, nil, "n_nodes", numEdges)
	}
	if numPaths < 1 {
		return nil, serrors.Join(ErrInvalidParameter, nil, "n_paths", numPaths)
	}

	d := &Descriptor{
		NumEdges: numEdges,
		NumPaths: numPaths,
		Routers:  make([]Node, numPaths+1),
		Edges:    make([]Node, 0, numEdges),
	}

	// The gateway router owns path prefix 11; its edge-facing /24s occupy
	// 11.0.1 .. 11.0.N, so the external link takes 11.0.(N+1).
	extSubnet := subnet(11, 0, numEdges+1)
	d.Gateway = Node{
		Name:         GatewayName(),
		Type:         TypeGateway,
		DefaultRoute: netip.Addr{},
	}
	for j := 0; j <= numPaths; j++ {
		d.Routers[j] = Node{Name: RouterName(j), Type: TypeRouter}
	}
	// The gateway router reaches the outside world via the NAT host.
	d.Routers[0].DefaultRoute = hostAddr(extSubnet, 2)

	switchCount := 0
	addLink := func(a, b *Node, sub netip.Prefix, aHost, bHost int) {
		sw := Node{Name: SwitchName(switchCount), Type: TypeSwitch}
		switchCount++
		ea := attach(a, hostAddr(sub, aHost))
		eb := attach(b, hostAddr(sub, bHost))
		d.Switches = append(d.Switches, sw)
		d.Links = append(d.Links, Link{A: ea, B: eb, Switch: sw.Name, Subnet: sub})
	}

	// 1. External link: NAT host .2, gateway router .1.
	addLink(&d.Gateway, &d.Routers[0], extSubnet, 2, 1)

	// 3. Edge links: edge i interface j attaches to router j in the subnet
	// (11+j).0.i.0/24, router side .1, edge side .2.
	for i := 1; i <= numEdges; i++ {
		edge := Node{Name: EdgeName(i), Type: TypeEdge}
		d.Edges = append(d.Edges, edge)
		e := &d.Edges[i-1]
		for j := 0; j <= numPaths; j++ {
			addLink(e, &d.Routers[j], subnet(PathOctet(j), 0, i), 2, 1)
		}
		// Default route via the gateway router's edge-facing address.
		e.DefaultRoute = hostAddr(subnet(11, 0, i), 1)
	}

	// 4. Inter-router links: path router j reaches the gateway router in
	// 11.(11+j).1.0/24, gateway side .1, path-router side .2.
	for j := 1; j <= numPaths; j++ {
		addLink(&d.Routers[j], &d.Routers[0], subnet(11, PathOctet(j), 1), 2, 1)
	}

	return d, nil
}

// attach appends an interface with the given address to the node and
// returns the matching link endpoint.
func attach(n *Node, addr netip.Addr) Endpoint {
	name := IntfName(n.Name, len(n.Interfaces))
	pfx := netip.PrefixFrom(addr, 24)
	n.Interfaces = append(n.Interfaces, Interface{Name: name, Addr: pfx})
	return Endpoint{Node: n.Name, Intf: name, Addr: pfx}
}

// subnet returns the /24 a.b.c.0/24.
func subnet(a, b, c int) netip.Prefix {
	p, err := netip.ParsePrefix(fmt.Sprintf("%d.%d.%d.0/24", a, b, c))
	if err != nil {
		panic(err)
	}
	return p
}

// hostAddr returns the address with the given last octet inside the /24.
func hostAddr(sub netip.Prefix, host int) netip.Addr {
	b := sub.Addr().As4()
	b[3] = byte(host)
	return netip.AddrFrom4(b)
}
