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

package cplane

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/emunet-project/emunet/pkg/private/serrors"
	"github.com/emunet-project/emunet/private/fabric"
)

// ChunkWriter consumes streamed command output. A write error signals that
// the consumer is gone; the stream is then aborted and the underlying
// process killed rather than orphaned.
type ChunkWriter interface {
	WriteChunk(chunk string) error
}

// ExecBackground dispatches a command on the named node and returns as
// soon as the shell accepted it. No output is captured.
func (cp *ControlPlane) ExecBackground(ctx context.Context, node, command string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	h, err := cp.nodeLocked(node)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(strings.TrimSpace(command), "&") {
		command += " &"
	}
	cp.metrics.execDispatched("background")
	if _, _, err := h.RunCommand(ctx, command); err != nil {
		return serrors.Wrap("dispatching background command", err, "node", node)
	}
	cp.logger.Info("Background command dispatched", "node", node, "command", command)
	return nil
}

// ExecStream runs a command on the named node to completion, forwarding
// stdout line by line to the sink as lines become available, followed by
// the entirety of stderr once the process exits. The gate is held for the
// whole duration; no other control operation can proceed until the command
// finishes or the sink fails.
func (cp *ControlPlane) ExecStream(
	ctx context.Context,
	node, command string,
	sink ChunkWriter,
) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	h, err := cp.nodeLocked(node)
	if err != nil {
		return err
	}
	cp.metrics.execDispatched("stream")
	cp.logger.Info("Executing command", "node", node, "command", command)

	proc, err := h.StartCommand(ctx, command)
	if err != nil {
		return serrors.Wrap("starting command", err, "node", node)
	}
	scanner := bufio.NewScanner(proc.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := sink.WriteChunk(scanner.Text() + "\n"); err != nil {
			// Consumer went away; don't leave the process behind.
			_ = proc.Kill()
			_ = proc.Wait()
			return serrors.Wrap("forwarding output", err, "node", node)
		}
	}
	if err := scanner.Err(); err != nil {
		// The stream is unusable, e.g. a line above the buffer cap. The
		// process may run forever and no further write would notice the
		// broken stream, so it must not be left alive behind the gate.
		_ = proc.Kill()
		_ = proc.Wait()
		return serrors.Wrap("reading output", err, "node", node)
	}
	stderr, _ := io.ReadAll(proc.Stderr())
	if len(stderr) > 0 {
		if err := sink.WriteChunk(string(stderr)); err != nil {
			_ = proc.Kill()
			_ = proc.Wait()
			return serrors.Wrap("forwarding stderr", err, "node", node)
		}
	}
	if err := proc.Wait(); err != nil {
		return serrors.Wrap("waiting for command", err, "node", node)
	}
	return nil
}

// StartXterm launches an interactive terminal attached to the node. Best
// effort: the terminal lives outside the control plane's supervision.
func (cp *ControlPlane) StartXterm(ctx context.Context, node string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	h, err := cp.nodeLocked(node)
	if err != nil {
		return err
	}
	_, _, err = h.RunCommand(ctx, "xterm -ls -xrm 'XTerm*selectToClipboard: true' &")
	if err != nil {
		return serrors.Wrap("starting xterm", err, "node", node)
	}
	return nil
}

// nodeLocked resolves a node handle; the caller holds the gate.
func (cp *ControlPlane) nodeLocked(node string) (fabric.NodeHandle, error) {
	if cp.desc == nil {
		return nil, ErrNotRunning
	}
	if _, ok := cp.desc.Node(node); !ok {
		return nil, serrors.Join(ErrNodeNotFound, nil, "node", node)
	}
	h, ok := cp.fab.Node(node)
	if !ok {
		return nil, serrors.Join(ErrNodeNotFound, nil, "node", node)
	}
	return h, nil
}
