package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	listenAddr    string
	backlog       int
	acceptTimeout time.Duration
	workers       int
	winningNumber int
	storePath     string
	logFormat     string
	logLevel      string
	metricsAddr   string
	mdnsEnable    bool
	mdnsName      string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	listen := flag.String("listen", ":12345", "TCP listen address")
	backlog := flag.Int("backlog", 0, "TCP accept backlog; validated only, the listener always uses the OS default")
	acceptTimeout := flag.Duration("accept-timeout", 10*time.Second, "Idle-accept duration before the barrier phase starts")
	workers := flag.Int("workers", 5, "Fixed worker pool size")
	winningNumber := flag.Int("winning-number", 7574, "Winning number scored against every stored bet")
	storePath := flag.String("store-path", "bets.csv", "Path to the append-only bet store")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS advertisement of the bound TCP address")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default lottery-server-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.listenAddr = *listen
	cfg.backlog = *backlog
	cfg.acceptTimeout = *acceptTimeout
	cfg.workers = *workers
	cfg.winningNumber = *winningNumber
	cfg.storePath = *storePath
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed
// configuration. It does not open the listener or the store — only
// checks values and ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", c.workers)
	}
	if c.winningNumber < 0 || c.winningNumber > 0xFFFF {
		return fmt.Errorf("winning-number must fit in a uint16 (got %d)", c.winningNumber)
	}
	if c.acceptTimeout <= 0 {
		return fmt.Errorf("accept-timeout must be > 0")
	}
	if c.backlog < 0 {
		return fmt.Errorf("backlog must be >= 0")
	}
	if c.storePath == "" {
		return errors.New("store-path must not be empty")
	}
	return nil
}

// applyEnvOverrides maps LOTTERY_SERVER_* environment variables onto
// cfg, unless the corresponding flag was explicitly set on the command
// line, in which case the flag wins.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["listen"]; !ok {
		if v, ok := get("LOTTERY_SERVER_LISTEN"); ok && v != "" {
			c.listenAddr = v
		}
	}
	if _, ok := set["backlog"]; !ok {
		if v, ok := get("LOTTERY_SERVER_BACKLOG"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.backlog = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LOTTERY_SERVER_BACKLOG: %w", err)
			}
		}
	}
	if _, ok := set["accept-timeout"]; !ok {
		if v, ok := get("LOTTERY_SERVER_ACCEPT_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.acceptTimeout = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LOTTERY_SERVER_ACCEPT_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["workers"]; !ok {
		if v, ok := get("LOTTERY_SERVER_WORKERS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.workers = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LOTTERY_SERVER_WORKERS: %w", err)
			}
		}
	}
	if _, ok := set["winning-number"]; !ok {
		if v, ok := get("LOTTERY_SERVER_WINNING_NUMBER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.winningNumber = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LOTTERY_SERVER_WINNING_NUMBER: %w", err)
			}
		}
	}
	if _, ok := set["store-path"]; !ok {
		if v, ok := get("LOTTERY_SERVER_STORE_PATH"); ok && v != "" {
			c.storePath = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("LOTTERY_SERVER_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("LOTTERY_SERVER_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("LOTTERY_SERVER_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("LOTTERY_SERVER_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("LOTTERY_SERVER_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
