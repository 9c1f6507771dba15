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
	"github.com/lvlath/go/bfs"
	"github.com/lvlath/go/core"

	"github.com/emunet-project/emunet/pkg/private/serrors"
)

// Graph projects the descriptor onto an undirected lvlath graph. Hosts and
// switches become vertices, every link contributes the two legs through its
// relay switch. The projection is used by diagnostics and the visualizer;
// the descriptor itself stays the source of truth for addressing.
func (d *Descriptor) Graph() (*core.Graph, error) {
	g, err := core.NewGraph()
	if err != nil {
		return nil, err
	}
	for _, n := range d.Nodes() {
		if err := g.AddVertex(n.Name); err != nil {
			return nil, serrors.Wrap("adding vertex", err, "node", n.Name)
		}
	}
	for _, l := range d.Links {
		if _, err := g.AddEdge(l.A.Node, l.Switch, 0); err != nil {
			return nil, serrors.Wrap("adding edge", err,
				"from", l.A.Node, "to", l.Switch)
		}
		if _, err := g.AddEdge(l.Switch, l.B.Node, 0); err != nil {
			return nil, serrors.Wrap("adding edge", err,
				"from", l.Switch, "to", l.B.Node)
		}
	}
	return g, nil
}

// Reachable reports whether every node of the topology can be reached from
// the gateway host in the link graph.
func (d *Descriptor) Reachable() (bool, error) {
	g, err := d.Graph()
	if err != nil {
		return false, err
	}
	res, err := bfs.BFS(g, d.Gateway.Name)
	if err != nil {
		return false, serrors.Wrap("traversing topology graph", err)
	}
	return len(res.Order) == len(d.Nodes()), nil
}
