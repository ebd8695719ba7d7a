package main

import (
	"context"

	"github.com/fiuba-distribuidos/lottery-server/internal/discovery"
)

// startMDNS advertises the bound TCP port via discovery.Advertise,
// returning a no-op cleanup when mDNS advertisement is disabled.
func startMDNS(ctx context.Context, cfg *appConfig, port int) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	meta := []string{
		"version=" + version,
		"commit=" + commit,
	}
	return discovery.Advertise(ctx, cfg.mdnsName, port, meta)
}
