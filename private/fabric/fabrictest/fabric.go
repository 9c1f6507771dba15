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

// Package fabrictest provides an in-memory fabric for unit tests. It
// records every command dispatched to every node and serves scripted
// replies, so configurator and control-plane logic can be verified without
// privileges or namespaces.
package fabrictest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/emunet-project/emunet/private/fabric"
	"github.com/emunet-project/emunet/private/topology"
)

// Fabric is a recording fake implementing fabric.Fabric.
type Fabric struct {
	mu sync.Mutex

	// StartErr, if set, is returned by Start.
	StartErr error
	// Replies maps a command substring to the stdout served for commands
	// containing it. First match in insertion order wins.
	replies []reply
	// failures maps a command substring to the error returned for commands
	// containing it. Failures take precedence over replies.
	failures []failure
	// DownLinks contains switch names whose links report down.
	DownLinks map[string]bool

	started bool
	desc    *topology.Descriptor
	nodes   map[string]*Node
}

type reply struct {
	substr string
	stdout string
}

type failure struct {
	substr string
	err    error
}

// New returns an empty fake fabric.
func New() *Fabric {
	return &Fabric{nodes: make(map[string]*Node)}
}

// Reply registers scripted stdout for commands containing substr.
func (f *Fabric) Reply(substr, stdout string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{substr: substr, stdout: stdout})
}

// Fail registers a scripted error for commands containing substr, on any
// node. Used to drive the configuration-failure paths.
func (f *Fabric) Fail(substr string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure{substr: substr, err: err})
}

// Start implements fabric.Fabric.
func (f *Fabric) Start(ctx context.Context, d *topology.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.started = true
	f.desc = d
	for _, h := range d.Hosts() {
		f.nodes[h.Name] = &Node{name: h.Name, fabric: f}
	}
	return nil
}

// Stop implements fabric.Fabric.
func (f *Fabric) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	f.desc = nil
	return nil
}

// Started reports whether the fabric is currently running.
func (f *Fabric) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Node implements fabric.Fabric.
func (f *Fabric) Node(name string) (fabric.NodeHandle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[name]
	if !ok || !f.started {
		return nil, false
	}
	return n, true
}

// Lookup returns the fake node regardless of lifecycle state, for test
// assertions on recorded commands.
func (f *Fabric) Lookup(name string) *Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[name]
}

// LinkUp implements fabric.Fabric.
func (f *Fabric) LinkUp(ctx context.Context, link topology.Link) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started && !f.DownLinks[link.Switch]
}

func (f *Fabric) stdoutFor(command string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.replies {
		if strings.Contains(command, r.substr) {
			return r.stdout
		}
	}
	return ""
}

func (f *Fabric) errFor(command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fl := range f.failures {
		if strings.Contains(command, fl.substr) {
			return fl.err
		}
	}
	return nil
}

// Node is a fake node handle recording all commands it receives.
type Node struct {
	mu       sync.Mutex
	name     string
	fabric   *Fabric
	commands []string
	kills    int
}

// Name implements fabric.NodeHandle.
func (n *Node) Name() string { return n.name }

// Commands returns a copy of all commands run on this node, in order.
func (n *Node) Commands() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.commands...)
}

// Kills returns how many started processes were killed on this node.
func (n *Node) Kills() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kills
}

func (n *Node) recordKill() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kills++
}

// RunCommand implements fabric.NodeHandle.
func (n *Node) RunCommand(ctx context.Context, command string) (string, string, error) {
	n.mu.Lock()
	n.commands = append(n.commands, command)
	n.mu.Unlock()
	if err := n.fabric.errFor(command); err != nil {
		return "", "", err
	}
	return n.fabric.stdoutFor(command), "", nil
}

// StartCommand implements fabric.NodeHandle. The scripted stdout is served
// as the process output stream.
func (n *Node) StartCommand(ctx context.Context, command string) (fabric.Process, error) {
	n.mu.Lock()
	n.commands = append(n.commands, command)
	n.mu.Unlock()
	if err := n.fabric.errFor(command); err != nil {
		return nil, err
	}
	return &process{
		node:   n,
		stdout: strings.NewReader(n.fabric.stdoutFor(command)),
		stderr: strings.NewReader(""),
	}, nil
}

type process struct {
	node   *Node
	stdout io.Reader
	stderr io.Reader
}

func (p *process) Stdout() io.Reader { return p.stdout }
func (p *process) Stderr() io.Reader { return p.stderr }
func (p *process) Wait() error       { return nil }

func (p *process) Kill() error {
	p.node.recordKill()
	return nil
}
