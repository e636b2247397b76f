// Command tachtalkd runs the TachTalk OBD-II proxy and shift-light device
// firmware as a host process: the ELM327 proxy, adapter channel, LED
// renderer, HTTP configuration API, captive DNS and mDNS advertiser.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"tachtalk/dns"
	"tachtalk/engine"
	"tachtalk/engine/config"
	"tachtalk/engine/telemetry/logging"
	"tachtalk/engine/telemetry/metrics"
	"tachtalk/httpapi"
	"tachtalk/internal/kvstore"
	"tachtalk/mdns"
	"tachtalk/wifi"
)

func main() {
	var (
		dataDir        string
		httpAddr       string
		dnsAddr        string
		metricsBackend string
		enableMetrics  bool
		enableDNS      bool
		apAddr         string
	)
	flag.StringVar(&dataDir, "data-dir", "./tachtalk-data", "Directory backing the simulated NVS key/value store")
	flag.StringVar(&httpAddr, "http", ":80", "HTTP configuration API listen address")
	flag.StringVar(&dnsAddr, "dns", ":53", "Captive DNS listen address")
	flag.StringVar(&metricsBackend, "metrics-backend", "prom", "Metrics backend: prom|otel|noop")
	flag.BoolVar(&enableMetrics, "enable-metrics", false, "Enable metrics (the prom backend serves them at /metrics)")
	flag.BoolVar(&enableDNS, "enable-dns", false, "Enable the captive DNS responder")
	flag.StringVar(&apAddr, "ap-addr", "192.168.4.1", "Access-point address answered by the captive DNS responder")
	flag.Parse()

	log := logging.New(slog.Default())
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	kv, err := kvstore.NewFileStore(dataDir)
	if err != nil {
		log.ErrorCtx(ctx, "tachtalkd: failed to open NVS store", "error", err)
		os.Exit(1)
	}

	var provider metrics.Provider
	switch {
	case !enableMetrics:
		provider = metrics.NewNoopProvider()
	case metricsBackend == "otel":
		provider = metrics.NewOtelProvider()
	case metricsBackend == "noop":
		provider = metrics.NewNoopProvider()
	default:
		provider = metrics.NewPrometheusProvider()
	}

	eng := engine.New(engine.Deps{KVStore: kv, Metrics: provider, Log: log})

	if os.Getenv("TACHTALK_CONFIG_WATCH") == "1" {
		if fileStore, ok := kv.(*kvstore.FileStore); ok {
			path := fileStore.Path(config.Namespace, config.Key)
			if _, err := eng.Config.WatchFile(ctx, path); err != nil {
				log.WarnCtx(ctx, "tachtalkd: config hot-reload watch failed", "error", err, "path", path)
			} else {
				log.InfoCtx(ctx, "tachtalkd: config hot-reload enabled", "path", path)
			}
		}
	}

	wifiMgr := wifi.NewSimulated()
	httpSrv := httpapi.NewServer(httpAddr, httpapi.Deps{
		Config:       eng.Config,
		Bus:          eng.Bus,
		RPM:          eng.RPM,
		AdapterState: eng.Adapter.State,
		WifiManager:  wifiMgr,
		Reboot:       func() { os.Exit(0) },
		Metrics:      provider,
		Log:          log,
		UIBytes:      []byte("<html><body>tachtalk</body></html>"),
	})

	advertiser := mdns.NewSimulated(log)
	_ = advertiser.Start(ctx, "tachtalk.local")

	go func() {
		log.InfoCtx(ctx, "tachtalkd: http listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil {
			log.WarnCtx(ctx, "tachtalkd: http server stopped", "error", err)
		}
	}()

	if enableDNS {
		resolver := dns.NewCaptiveResolver(net.ParseIP(apAddr), log)
		go func() {
			if err := resolver.Serve(ctx, dnsAddr); err != nil {
				log.WarnCtx(ctx, "tachtalkd: dns responder stopped", "error", err)
			}
		}()
	}

	if err := eng.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tachtalkd:", err)
		os.Exit(1)
	}
}
