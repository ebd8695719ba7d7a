package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/fiuba-distribuidos/lottery-server/internal/discovery"
	"github.com/fiuba-distribuidos/lottery-server/internal/metrics"
	"github.com/fiuba-distribuidos/lottery-server/internal/server"
	"github.com/fiuba-distribuidos/lottery-server/internal/shutdown"
	"github.com/fiuba-distribuidos/lottery-server/internal/store"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("lottery-server %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := shutdown.Bind(context.Background())
	defer cancel()

	st := store.New(cfg.storePath)

	srv := server.NewServer(
		server.WithListenAddr(cfg.listenAddr),
		server.WithAcceptTimeout(cfg.acceptTimeout),
		server.WithWorkerCount(cfg.workers),
		server.WithWinningNumber(uint16(cfg.winningNumber)),
		server.WithStore(st),
		server.WithLogger(l),
	)

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Serve(ctx) }()

	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		port := portOf(srv.Addr())
		cleanupMDNS, err := startMDNS(ctx, cfg, port)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", discovery.ServiceType, "name", cfg.mdnsName, "port", port)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metricsSrv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}

	if err := <-serveErrCh; err != nil {
		l.Error("server_error", "error", err)
		cancel()
		os.Exit(1)
	}
	l.Info("lottery_run_complete", "store", st.Path())
}

func portOf(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			p = addr[i+1:]
		}
	}
	n, _ := strconv.Atoi(p)
	return n
}
