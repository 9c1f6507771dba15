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

package main

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/emunet-project/emunet/pkg/log"
	"github.com/emunet-project/emunet/pkg/private/serrors"
	"github.com/emunet-project/emunet/private/api"
	"github.com/emunet-project/emunet/private/app/launcher"
	"github.com/emunet-project/emunet/private/cplane"
	"github.com/emunet-project/emunet/private/fabric"
)

var globalCfg config

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "Network Emulation Control Plane",
		Preflight:  preflight,
		Main:       realMain,
	}
	application.Run()
}

// preflight verifies the host-level requirements the control plane cannot
// function without. Failing any of them is fatal at startup, not a
// per-request error.
func preflight() error {
	if os.Geteuid() != 0 {
		return serrors.New("must run as root to manage namespaces and links")
	}
	if _, err := exec.LookPath("smcroutectl"); err != nil {
		return serrors.Wrap("multicast relay daemon not installed", err)
	}
	return nil
}

func realMain(ctx context.Context) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	metrics := cplane.NewMetrics(registry)

	cp := cplane.New(func() fabric.Fabric { return fabric.NewLinuxFabric() }, metrics)
	server := &http.Server{
		Addr:    globalCfg.API.Addr,
		Handler: api.NewServer(cp).Router(),
	}

	g, errCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.HandlePanic()
		log.Info("API server listening", "addr", globalCfg.API.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return serrors.Wrap("serving API", err)
		}
		return nil
	})
	if globalCfg.Metrics.Prometheus != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: globalCfg.Metrics.Prometheus, Handler: mux}
		g.Go(func() error {
			defer log.HandlePanic()
			log.Info("Metrics server listening", "addr", globalCfg.Metrics.Prometheus)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return serrors.Wrap("serving metrics", err)
			}
			return nil
		})
		g.Go(func() error {
			defer log.HandlePanic()
			<-errCtx.Done()
			return metricsServer.Close()
		})
	}
	g.Go(func() error {
		defer log.HandlePanic()
		<-errCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return server.Close()
		}
		return nil
	})
	g.Go(func() error {
		defer log.HandlePanic()
		<-errCtx.Done()
		// The namespaces outlive the process unless torn down here.
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := cp.Stop(stopCtx); err != nil {
			log.Error("Cleanup on shutdown failed", "err", err)
		}
		return nil
	})
	return g.Wait()
}
