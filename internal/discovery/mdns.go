// Package discovery advertises the server's bound TCP address over
// mDNS so agencies on the same network segment can find it without a
// hardcoded address.
package discovery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type advertised for this server.
const ServiceType = "_lottery-server._tcp"

// Advertise registers instance (or a hostname-derived default when
// empty) under ServiceType on port, with meta as TXT records. It
// returns a cleanup function that unregisters the service; callers
// must run it exactly once, typically from a goroutine watching for
// ctx cancellation.
func Advertise(ctx context.Context, instance string, port int, meta []string) (func(), error) {
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("lottery-server-%s", host)
	}
	svc, err := zeroconf.Register(instance, ServiceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
