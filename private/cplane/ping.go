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
	"context"
	"fmt"
	"strings"
)

// PingResult reports one probe outcome.
type PingResult struct {
	Ping string `json:"ping"`
}

// pingOK is the marker of a successful single-probe ping.
const pingOK = "1 packets transmitted, 1 received"

// PingAll issues a single reachability probe for every ordered pair of
// distinct hosts and every pair of their addressed interfaces. Pairs whose
// address families are unrelated are skipped: probing across path prefixes
// only makes sense through the gateway host. This is a diagnostic sweep,
// O(hosts² × interfaces²), not a correctness check of the routing plan.
func (cp *ControlPlane) PingAll(ctx context.Context) (map[string]PingResult, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.desc == nil {
		return nil, ErrNotRunning
	}
	results := make(map[string]PingResult)
	hosts := cp.desc.Hosts()
	gateway := cp.desc.Gateway.Name
	for _, src := range hosts {
		h, ok := cp.fab.Node(src.Name)
		if !ok {
			continue
		}
		for _, dst := range hosts {
			if src.Name == dst.Name {
				continue
			}
			for _, srcIntf := range src.Interfaces {
				for _, dstIntf := range dst.Interfaces {
					srcOctet := srcIntf.IP().As4()[0]
					dstOctet := dstIntf.IP().As4()[0]
					if srcOctet != dstOctet && src.Name != gateway && dst.Name != gateway {
						continue
					}
					// The probe is not bound to srcIntf, so every source
					// interface of a node reports the default-path
					// measurement. Kept as is for output compatibility with
					// the historical sweep.
					out, _, err := h.RunCommand(ctx,
						fmt.Sprintf("ping -R -c 1 %s", dstIntf.IP()))
					key := fmt.Sprintf("%s(%s) -> %s(%s)",
						src.Name, srcIntf.IP(), dst.Name, dstIntf.IP())
					result := "Failure"
					if err == nil && strings.Contains(out, pingOK) {
						result = "Success"
					}
					results[key] = PingResult{Ping: result}
					cp.metrics.pingProbed(result)
				}
			}
		}
	}
	cp.logger.Info("Ping sweep finished", "probes", len(results))
	return results, nil
}
