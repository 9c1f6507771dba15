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

// Package netconf turns a node's position in the topology into the sequence
// of system-level configuration actions that make it behave as a multicast
// router or edge node. Plans are pure; the Configurator applies them
// through the fabric's command capability.
package netconf

import (
	"fmt"
	"strings"

	"github.com/emunet-project/emunet/private/topology"
)

// Multicast groups are path scoped: group 239.0.k.1 carries the traffic of
// the path whose interfaces sit at ordinal k. Duplicate-prefix unicast
// routes are disambiguated by metric: the gateway path gets the lowest one,
// so route selection is deterministic rather than insertion-order
// dependent.
const (
	// relayPrefix prefixes the per-node relay-daemon instance name.
	relayPrefix = "smcroute-"
	// pathMetricBase is the route metric of path 0; path j uses base+j.
	pathMetricBase = 100
	// mcastRouteMetric is the metric of the via-router multicast route,
	// keeping it distinct from the device route for the same group range.
	mcastRouteMetric = 10
)

// RelayInstance returns the relay-daemon instance name scoped to a node.
func RelayInstance(node string) string {
	return relayPrefix + node
}

// RouterConfigPlan returns the command sequence configuring a router,
// gateway router and path routers alike:
//
//  1. enable forwarding, answer broadcast ICMP echo
//  2. force IGMPv2 and disable reverse-path filtering per interface
//  3. start the relay daemon
//  4. relay the path-scoped group of every interface to all others
//  5. pin every interface's own /24 to the interface
//  6. default-accept firewall rules
func RouterConfigPlan(node topology.Node) []string {
	cmds := []string{
		"sysctl -w net.ipv4.ip_forward=1",
		"sysctl -w net.ipv6.conf.all.forwarding=1",
		"sysctl -w net.ipv4.icmp_echo_ignore_broadcasts=0",
	}
	for _, intf := range node.Interfaces {
		cmds = append(cmds,
			fmt.Sprintf("sysctl -w net.ipv4.conf.%s.force_igmp_version=2", intf.Name),
			fmt.Sprintf("sysctl -w net.ipv4.conf.%s.rp_filter=0", intf.Name),
		)
	}
	cmds = append(cmds,
		fmt.Sprintf("smcrouted -l debug -I %s", RelayInstance(node.Name)),
		"sleep 1",
	)
	for k, intf := range node.Interfaces {
		cmds = append(cmds, fmt.Sprintf("smcroutectl -I %s add %s 239.0.%d.1 %s",
			RelayInstance(node.Name), intf.Name, k,
			strings.Join(otherInterfaces(node, k), " ")))
		cmds = append(cmds, fmt.Sprintf("ip route replace %s dev %s",
			intf.Subnet(), intf.Name))
	}
	cmds = append(cmds,
		"iptables -A INPUT -j ACCEPT",
		"iptables -A FORWARD -j ACCEPT",
		"iptables -A OUTPUT -j ACCEPT",
	)
	return cmds
}

// RouterTerminatePlan reverses the flags and daemon of RouterConfigPlan.
// Routes die with the namespace.
func RouterTerminatePlan(node topology.Node) []string {
	cmds := []string{
		"sysctl -w net.ipv4.ip_forward=0",
		"sysctl -w net.ipv6.conf.all.forwarding=0",
		"sysctl -w net.ipv4.icmp_echo_ignore_broadcasts=1",
	}
	for _, intf := range node.Interfaces {
		cmds = append(cmds,
			fmt.Sprintf("sysctl -w net.ipv4.conf.%s.force_igmp_version=0", intf.Name),
			fmt.Sprintf("sysctl -w net.ipv4.conf.%s.rp_filter=1", intf.Name),
		)
	}
	return append(cmds,
		fmt.Sprintf("smcroutectl -I %s flush", RelayInstance(node.Name)),
		fmt.Sprintf("smcroutectl -I %s kill", RelayInstance(node.Name)),
	)
}

// EdgeConfigPlan returns the command sequence configuring edge node i:
//
//  1. answer broadcast ICMP echo
//  2. device route for each path's multicast group range
//  3. relay daemon and one group membership per interface
//  4. via-router route for the group range (distinct metric)
//  5. one route per remote edge subnet per path, metric 100+path
//  6. default route via the gateway router
//
// numEdges is the total number of edge nodes; remote subnets cover indices
// 0..numEdges excluding the node's own.
func EdgeConfigPlan(node topology.Node, index, numEdges int) []string {
	cmds := []string{
		"sysctl -w net.ipv4.icmp_echo_ignore_broadcasts=0",
	}
	for _, intf := range node.Interfaces {
		cmds = append(cmds, fmt.Sprintf("ip route replace 239.0.%d.0/24 dev %s",
			routerNumber(intf), intf.Name))
	}
	cmds = append(cmds,
		fmt.Sprintf("smcrouted -l debug -I %s", RelayInstance(node.Name)),
		"sleep 1",
	)
	for k, intf := range node.Interfaces {
		rn := routerNumber(intf)
		routerIP := pathRouterAddr(intf, index)
		cmds = append(cmds, fmt.Sprintf("smcroutectl -I %s join %s 239.0.%d.1",
			RelayInstance(node.Name), intf.Name, rn))
		cmds = append(cmds, fmt.Sprintf("ip route add 239.0.%d.0/24 via %s dev %s metric %d",
			rn, routerIP, intf.Name, mcastRouteMetric))
		for n := 0; n <= numEdges; n++ {
			if n == index {
				continue
			}
			first := intf.IP().As4()[0]
			cmds = append(cmds, fmt.Sprintf("ip route add %d.0.%d.0/24 via %s dev %s metric %d",
				first, n, routerIP, intf.Name, pathMetricBase+k))
		}
	}
	return append(cmds,
		fmt.Sprintf("ip route replace default via %s", node.DefaultRoute))
}

// EdgeTerminatePlan reverses the daemon and the ICMP flag. Routes are left
// to the namespace teardown.
func EdgeTerminatePlan(node topology.Node) []string {
	return []string{
		fmt.Sprintf("smcroutectl -I %s flush", RelayInstance(node.Name)),
		fmt.Sprintf("smcroutectl -I %s kill", RelayInstance(node.Name)),
		"sysctl -w net.ipv4.icmp_echo_ignore_broadcasts=1",
	}
}

// GatewayRoutePlan returns the cross-domain routes installed on the
// gateway host: every edge subnet and every inter-router subnet is reached
// via the gateway router's external address.
func GatewayRoutePlan(d *topology.Descriptor) []string {
	ext, ok := d.Gateway.Interface(0)
	if !ok {
		return nil
	}
	via := fmt.Sprintf("11.0.%d.1", d.NumEdges+1)
	var cmds []string
	for n := 1; n <= d.NumEdges; n++ {
		cmds = append(cmds, fmt.Sprintf("ip route add 11.0.%d.0/24 via %s dev %s",
			n, via, ext.Name))
	}
	for j := 1; j <= d.NumPaths; j++ {
		cmds = append(cmds, fmt.Sprintf("ip route add 11.%d.1.0/24 via %s dev %s",
			topology.PathOctet(j), via, ext.Name))
	}
	return cmds
}

// PathRouterReturnPlan returns the route installed on path router j that
// leads back to the gateway-host subnet via the gateway router.
func PathRouterReturnPlan(d *topology.Descriptor, j int) []string {
	if j < 1 || j > d.NumPaths {
		return nil
	}
	router := d.Routers[j]
	// The inter-router interface is the last one allocated on the router.
	intf := router.Interfaces[len(router.Interfaces)-1]
	return []string{
		fmt.Sprintf("ip route add 11.0.%d.0/24 via 11.%d.1.1 dev %s",
			d.NumEdges+1, topology.PathOctet(j), intf.Name),
	}
}

// SwitchFloodPlan returns the per-port flood fallback commands, run on the
// gateway host since the bridges live in the root namespace. Unmatched
// traffic is flooded rather than dropped.
func SwitchFloodPlan(d *topology.Descriptor) []string {
	var cmds []string
	for _, l := range d.Links {
		for _, ep := range []topology.Endpoint{l.A, l.B} {
			cmds = append(cmds, fmt.Sprintf(
				"bridge link set dev %s-%s flood on mcast_flood on", l.Switch, ep.Node))
		}
	}
	return cmds
}

// routerNumber derives the 1-based router number a path interface attaches
// to from the interface's first octet.
func routerNumber(intf topology.Interface) int {
	return int(intf.IP().As4()[0]) - 10
}

// pathRouterAddr is the router's edge-facing address on the interface's
// path: firstOctet.0.index.1.
func pathRouterAddr(intf topology.Interface, index int) string {
	return fmt.Sprintf("%d.0.%d.1", intf.IP().As4()[0], index)
}

func otherInterfaces(node topology.Node, k int) []string {
	names := make([]string, 0, len(node.Interfaces)-1)
	for i, intf := range node.Interfaces {
		if i == k {
			continue
		}
		names = append(names, intf.Name)
	}
	return names
}
