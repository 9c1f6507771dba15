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

// Package fabric defines the boundary to the virtual-network emulation
// fabric: the component that realizes a topology descriptor as namespaces,
// bridges and veth links, and that executes shell commands inside a node.
//
// The control plane and the node configurator depend only on the interfaces
// of this package. The Linux implementation lives in linux.go; tests use
// the recording fake from the fabrictest subpackage.
package fabric

import (
	"context"
	"io"

	"github.com/emunet-project/emunet/private/topology"
)

// Process is a command started inside a node whose output is consumed as a
// stream. Stdout and Stderr must be drained before Wait returns.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until the process exits and releases its resources.
	Wait() error
	// Kill terminates the process. Needed when the consumer of the output
	// stream goes away while the process is still running.
	Kill() error
}

// NodeHandle is the capability to execute commands inside one node.
type NodeHandle interface {
	Name() string
	// RunCommand runs a shell command inside the node to completion.
	RunCommand(ctx context.Context, command string) (stdout, stderr string, err error)
	// StartCommand starts a shell command inside the node and returns the
	// running process with its output pipes attached.
	StartCommand(ctx context.Context, command string) (Process, error)
}

// Fabric realizes one topology descriptor. Start and Stop bracket the
// lifetime of the emulated network; node handles are only valid in between.
type Fabric interface {
	// Start creates the namespaces, switches and links of the descriptor
	// and assigns the planned addresses.
	Start(ctx context.Context, d *topology.Descriptor) error
	// Stop tears down everything Start created. It is best effort: it
	// keeps going on per-node failures and reports them joined.
	Stop(ctx context.Context) error
	// Node returns the handle for the named host.
	Node(name string) (NodeHandle, bool)
	// LinkUp reports whether both legs of the given link are operational.
	LinkUp(ctx context.Context, link topology.Link) bool
}

// Factory creates a fresh fabric instance per control-plane start. Injected
// so tests can substitute a fake emulator.
type Factory func() Fabric
