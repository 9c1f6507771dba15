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

package fabric

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os/exec"
	"runtime"
	"strings"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"github.com/emunet-project/emunet/pkg/log"
	"github.com/emunet-project/emunet/pkg/private/serrors"
	"github.com/emunet-project/emunet/private/topology"
)

// Socket-buffer tuning applied on the host when the network comes up. The
// emulated streams move large volumes over loopback-speed links; default
// buffer limits throttle them.
var hostTuning = []string{
	"sysctl -w net.core.wmem_max=67108864",
	"sysctl -w net.core.wmem_default=67108864",
	"sysctl -w net.core.rmem_max=67108864",
	"sysctl -w net.core.rmem_default=67108864",
	"sysctl -w net.ipv4.tcp_rmem='20480 349520 67108864'",
	"sysctl -w net.ipv4.tcp_wmem='20480 349520 67108864'",
	"sysctl -w net.core.netdev_max_backlog=20000",
}

// LinuxFabric realizes a descriptor with named network namespaces per host,
// one Linux bridge per switch and veth pairs for the link legs. The gateway
// host stays in the root namespace, mirroring its role as the boundary to
// the outside world.
type LinuxFabric struct {
	logger log.Logger

	desc  *topology.Descriptor
	nodes map[string]*linuxNode
}

// NewLinuxFabric returns an unstarted Linux fabric.
func NewLinuxFabric() *LinuxFabric {
	return &LinuxFabric{logger: log.New("component", "fabric")}
}

type linuxNode struct {
	name string
	// ns is empty for nodes living in the root namespace.
	ns string
}

// Start implements Fabric.
func (f *LinuxFabric) Start(ctx context.Context, d *topology.Descriptor) error {
	f.desc = d
	f.nodes = make(map[string]*linuxNode)

	for _, h := range d.Hosts() {
		n := &linuxNode{name: h.Name}
		if h.Type != topology.TypeGateway {
			n.ns = h.Name
			if err := createNamespace(h.Name); err != nil {
				return serrors.Wrap("creating namespace", err, "node", h.Name)
			}
		}
		f.nodes[h.Name] = n
	}
	for _, sw := range d.Switches {
		if err := createBridge(sw.Name); err != nil {
			return serrors.Wrap("creating switch", err, "switch", sw.Name)
		}
	}
	for _, l := range d.Links {
		for _, ep := range []topology.Endpoint{l.A, l.B} {
			if err := f.plugIn(l.Switch, ep); err != nil {
				return serrors.Wrap("wiring link", err,
					"switch", l.Switch, "node", ep.Node, "intf", ep.Intf)
			}
		}
	}
	for _, cmd := range hostTuning {
		if out, err := exec.CommandContext(ctx, "/bin/sh", "-c", cmd).CombinedOutput(); err != nil {
			f.logger.Info("Host tuning failed", "cmd", cmd, "output", strings.TrimSpace(string(out)))
		}
	}
	f.logger.Info("Fabric started",
		"hosts", d.HostCount(), "switches", len(d.Switches), "links", d.LinkCount())
	return nil
}

// plugIn creates the veth leg between a switch and a node interface,
// moves the node side into its namespace and assigns the planned address.
func (f *LinuxFabric) plugIn(sw string, ep topology.Endpoint) error {
	port := portName(sw, ep.Node)
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: port},
		PeerName:  ep.Intf,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return serrors.Wrap("creating veth pair", err, "port", port)
	}
	bridge, err := netlink.LinkByName(sw)
	if err != nil {
		return serrors.Wrap("looking up bridge", err)
	}
	if err := netlink.LinkSetMaster(veth, bridge); err != nil {
		return serrors.Wrap("enslaving port", err)
	}
	if err := netlink.LinkSetUp(veth); err != nil {
		return serrors.Wrap("bringing port up", err)
	}

	node := f.nodes[ep.Node]
	handle, nsHandle, err := nodeHandle(node)
	if err != nil {
		return err
	}
	defer closeHandles(handle, nsHandle)

	peer, err := netlink.LinkByName(ep.Intf)
	if err != nil {
		return serrors.Wrap("looking up peer", err)
	}
	if node.ns != "" {
		if err := netlink.LinkSetNsFd(peer, int(nsHandle)); err != nil {
			return serrors.Wrap("moving peer into namespace", err, "ns", node.ns)
		}
		if peer, err = handle.LinkByName(ep.Intf); err != nil {
			return serrors.Wrap("looking up peer in namespace", err)
		}
	}
	addr := &netlink.Addr{IPNet: prefixToIPNet(ep.Addr)}
	if err := handle.AddrAdd(peer, addr); err != nil {
		return serrors.Wrap("assigning address", err, "addr", ep.Addr)
	}
	if err := handle.LinkSetUp(peer); err != nil {
		return serrors.Wrap("bringing peer up", err)
	}
	if lo, err := handle.LinkByName("lo"); err == nil {
		_ = handle.LinkSetUp(lo)
	}
	return nil
}

// Stop implements Fabric. Teardown keeps going on failure so a partially
// built network can always be dismantled.
func (f *LinuxFabric) Stop(ctx context.Context) error {
	var errs serrors.List
	if f.desc == nil {
		return nil
	}
	for _, n := range f.nodes {
		if n.ns == "" {
			continue
		}
		if err := netns.DeleteNamed(n.ns); err != nil {
			errs = append(errs, serrors.Wrap("deleting namespace", err, "ns", n.ns))
		}
	}
	// Deleting the namespaces removed the in-namespace veth ends and with
	// them their root-side peers; the gateway legs and bridges remain.
	for _, l := range f.desc.Links {
		for _, ep := range []topology.Endpoint{l.A, l.B} {
			if n := f.nodes[ep.Node]; n == nil || n.ns != "" {
				continue
			}
			if link, err := netlink.LinkByName(ep.Intf); err == nil {
				if err := netlink.LinkDel(link); err != nil {
					errs = append(errs, serrors.Wrap("deleting veth", err, "intf", ep.Intf))
				}
			}
		}
	}
	for _, sw := range f.desc.Switches {
		link, err := netlink.LinkByName(sw.Name)
		if err != nil {
			continue
		}
		if err := netlink.LinkDel(link); err != nil {
			errs = append(errs, serrors.Wrap("deleting bridge", err, "switch", sw.Name))
		}
	}
	f.desc = nil
	f.nodes = nil
	f.logger.Info("Fabric stopped", "errors", len(errs))
	return errs.ToError()
}

// Node implements Fabric.
func (f *LinuxFabric) Node(name string) (NodeHandle, bool) {
	n, ok := f.nodes[name]
	if !ok {
		return nil, false
	}
	return n, true
}

// LinkUp implements Fabric.
func (f *LinuxFabric) LinkUp(ctx context.Context, link topology.Link) bool {
	for _, ep := range []topology.Endpoint{link.A, link.B} {
		node := f.nodes[ep.Node]
		if node == nil {
			return false
		}
		handle, nsHandle, err := nodeHandle(node)
		if err != nil {
			return false
		}
		l, err := handle.LinkByName(ep.Intf)
		closeHandles(handle, nsHandle)
		if err != nil || l.Attrs().OperState == netlink.OperDown {
			return false
		}
	}
	return true
}

// Name implements NodeHandle.
func (n *linuxNode) Name() string { return n.name }

// RunCommand implements NodeHandle. Commands run under the node's network
// namespace via ip-netns, which is also the escape hatch users reach for
// when debugging the emulation by hand.
func (n *linuxNode) RunCommand(ctx context.Context, command string) (string, string, error) {
	cmd := n.command(ctx, command)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if _, ok := err.(*exec.ExitError); ok {
		// Non-zero exits are part of the result, not a fabric failure.
		err = nil
	}
	if err != nil {
		return "", "", serrors.Wrap("running command", err, "node", n.name, "command", command)
	}
	return stdout.String(), stderr.String(), nil
}

// StartCommand implements NodeHandle.
func (n *linuxNode) StartCommand(ctx context.Context, command string) (Process, error) {
	cmd := n.command(ctx, command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, serrors.Wrap("attaching stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, serrors.Wrap("attaching stderr", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, serrors.Wrap("starting command", err, "node", n.name, "command", command)
	}
	return &linuxProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

func (n *linuxNode) command(ctx context.Context, command string) *exec.Cmd {
	if n.ns == "" {
		return exec.CommandContext(ctx, "/bin/sh", "-c", command)
	}
	return exec.CommandContext(ctx, "ip", "netns", "exec", n.ns, "/bin/sh", "-c", command)
}

type linuxProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func (p *linuxProcess) Stdout() io.Reader { return p.stdout }

func (p *linuxProcess) Stderr() io.Reader { return p.stderr }

func (p *linuxProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil
		}
		return err
	}
	return nil
}

func (p *linuxProcess) Kill() error {
	return p.cmd.Process.Kill()
}

// createNamespace creates a named network namespace without leaving the
// calling thread inside it.
func createNamespace(name string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	orig, err := netns.Get()
	if err != nil {
		return err
	}
	defer orig.Close()
	ns, err := netns.NewNamed(name)
	if err != nil {
		return err
	}
	ns.Close()
	return netns.Set(orig)
}

func createBridge(name string) error {
	bridge := &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: name}}
	if err := netlink.LinkAdd(bridge); err != nil {
		return err
	}
	return netlink.LinkSetUp(bridge)
}

// nodeHandle returns a netlink handle scoped to the node's namespace. The
// returned namespace handle is invalid for root-namespace nodes.
func nodeHandle(n *linuxNode) (*netlink.Handle, netns.NsHandle, error) {
	if n.ns == "" {
		handle, err := netlink.NewHandle()
		if err != nil {
			return nil, netns.None(), serrors.Wrap("opening netlink handle", err)
		}
		return handle, netns.None(), nil
	}
	nsHandle, err := netns.GetFromName(n.ns)
	if err != nil {
		return nil, netns.None(), serrors.Wrap("opening namespace", err, "ns", n.ns)
	}
	handle, err := netlink.NewHandleAt(nsHandle)
	if err != nil {
		nsHandle.Close()
		return nil, netns.None(), serrors.Wrap("opening netlink handle", err, "ns", n.ns)
	}
	return handle, nsHandle, nil
}

func closeHandles(handle *netlink.Handle, nsHandle netns.NsHandle) {
	handle.Close()
	if nsHandle.IsOpen() {
		nsHandle.Close()
	}
}

func prefixToIPNet(p netip.Prefix) *net.IPNet {
	return &net.IPNet{
		IP:   p.Addr().AsSlice(),
		Mask: net.CIDRMask(p.Bits(), 32),
	}
}

// portName derives the bridge-side interface name of a link leg. Interface
// names are capped at 15 bytes; switch and node names stay well under that.
func portName(sw, node string) string {
	return fmt.Sprintf("%s-%s", sw, node)
}
