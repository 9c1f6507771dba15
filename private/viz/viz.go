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

// Package viz renders the live topology for human consumption. The graph
// is laid out in three ranks (routers, switches, hosts) and every router's
// branch is drawn in its own color, so the redundant paths are visually
// separable. Rendering to an image is delegated to the external graphviz
// renderer; the DOT source is the portable artifact.
package viz

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/lvlath/go/bfs"

	"github.com/emunet-project/emunet/pkg/private/serrors"
	"github.com/emunet-project/emunet/private/topology"
)

// branchPalette holds one color per router branch, reused cyclically.
var branchPalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

var fillColors = map[topology.NodeType]string{
	topology.TypeRouter:  "orange",
	topology.TypeEdge:    "skyblue",
	topology.TypeGateway: "green",
	topology.TypeSwitch:  "gray",
}

// RenderDOT produces the Graphviz DOT source for the descriptor.
func RenderDOT(d *topology.Descriptor) (string, error) {
	g, err := d.Graph()
	if err != nil {
		return "", err
	}
	// Walk the graph once from the gateway to order nodes by distance;
	// branches then come out grouped per router in the emitted edge list.
	res, err := bfs.BFS(g, d.Gateway.Name)
	if err != nil {
		return "", serrors.Wrap("ordering topology graph", err)
	}
	depth := res.Depth

	var b strings.Builder
	b.WriteString("graph emunet {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [style=filled, fontcolor=white, fontname=\"Helvetica\"];\n")
	for _, n := range d.Nodes() {
		shape := "ellipse"
		if n.Type == topology.TypeSwitch {
			shape = "box"
		}
		fmt.Fprintf(&b, "  %q [fillcolor=%q, shape=%s];\n",
			n.Name, fillColors[n.Type], shape)
	}
	writeRank(&b, routerNames(d))
	writeRank(&b, switchNames(d))
	writeRank(&b, hostRow(d))

	branch := branchColors(d)
	links := append([]topology.Link(nil), d.Links...)
	sort.Slice(links, func(i, j int) bool {
		return depth[links[i].Switch] < depth[links[j].Switch]
	})
	for _, l := range links {
		color := branch[routerOf(d, l)]
		label := fmt.Sprintf("%s:%s <-> %s:%s",
			l.A.Node, l.A.Addr.Addr(), l.B.Node, l.B.Addr.Addr())
		fmt.Fprintf(&b, "  %q -- %q [color=%q];\n", l.A.Node, l.Switch, color)
		fmt.Fprintf(&b, "  %q -- %q [color=%q, label=%q, fontsize=8, fontcolor=gray];\n",
			l.Switch, l.B.Node, color, label)
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// RenderPNG renders DOT source to a PNG using the external graphviz
// binary. Callers fall back to serving the DOT source when it fails.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "dot", "-Tpng")
	cmd.Stdin = strings.NewReader(dot)
	out, err := cmd.Output()
	if err != nil {
		return nil, serrors.Wrap("rendering graph image", err)
	}
	return out, nil
}

// branchColors assigns one palette color per router, gateway router first.
func branchColors(d *topology.Descriptor) map[string]string {
	colors := make(map[string]string, len(d.Routers))
	for j, r := range d.Routers {
		colors[r.Name] = branchPalette[j%len(branchPalette)]
	}
	return colors
}

// routerOf returns the router endpoint of a link; the gateway's external
// link belongs to the gateway router's branch.
func routerOf(d *topology.Descriptor, l topology.Link) string {
	for _, r := range d.Routers {
		if l.A.Node == r.Name || l.B.Node == r.Name {
			return r.Name
		}
	}
	return d.Routers[0].Name
}

func routerNames(d *topology.Descriptor) []string {
	names := make([]string, 0, len(d.Routers))
	for _, r := range d.Routers {
		names = append(names, r.Name)
	}
	return names
}

func switchNames(d *topology.Descriptor) []string {
	names := make([]string, 0, len(d.Switches))
	for _, s := range d.Switches {
		names = append(names, s.Name)
	}
	return names
}

// hostRow lists the gateway host and the edge nodes, the bottom rank.
func hostRow(d *topology.Descriptor) []string {
	names := []string{d.Gateway.Name}
	for _, e := range d.Edges {
		names = append(names, e.Name)
	}
	return names
}

func writeRank(b *strings.Builder, names []string) {
	b.WriteString("  { rank=same;")
	for _, n := range names {
		fmt.Fprintf(b, " %q;", n)
	}
	b.WriteString(" }\n")
}
