// Command upowerd is the power-management daemon's entrypoint: it loads
// config, wires up whichever native source adapters this platform and
// this config support, and runs the aggregator and bus surface until
// told to stop (spec §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"upowerd/bus"
	"upowerd/internal/aggregator"
	"upowerd/internal/busiface"
	"upowerd/internal/config"
	"upowerd/internal/history"
	"upowerd/internal/obslog"
	"upowerd/internal/source"
)

// daemonVersion is reported on the bus as org.freedesktop.UPower's
// DaemonVersion property (spec §4.7).
const daemonVersion = "1.0.0"

// shutdownGrace bounds how long Run waits for in-flight adapter Close
// calls and the busiface mirror goroutine to settle (spec §5).
const shutdownGrace = 2 * time.Second

type flags struct {
	verbose       bool
	timedExit     int
	immediateExit bool
	replace       bool
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "upowerd",
		Short: "Power-management daemon: batteries, line power, UPS, and peripheral devices on the bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
		SilenceUsage: true,
	}
	root.Flags().BoolVar(&f.verbose, "verbose", false, "increase log level")
	root.Flags().IntVar(&f.timedExit, "timed-exit", 0, "exit after N seconds of inactivity (0 disables, for testing)")
	root.Flags().BoolVar(&f.immediateExit, "immediate-exit", false, "exit after the first processed event (for testing)")
	root.Flags().BoolVar(&f.replace, "replace", false, "take over the bus name from a running instance")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "upowerd:", err)
		os.Exit(exitCodeOf(err))
	}
}

// initError and busError distinguish exit code 1 (init error) from exit
// code 2 (bus-acquire failure), spec §6's documented exit code table.
type initError struct{ err error }

func (e initError) Error() string { return e.err.Error() }
func (e initError) Unwrap() error { return e.err }

type busError struct{ err error }

func (e busError) Error() string { return e.err.Error() }
func (e busError) Unwrap() error { return e.err }

func exitCodeOf(err error) int {
	if _, ok := err.(busError); ok {
		return 2
	}
	return 1
}

func run(parentCtx context.Context, f flags) error {
	logger := obslog.New(f.verbose)

	cfg, err := config.Load()
	if err != nil {
		return initError{fmt.Errorf("load config: %w", err)}
	}

	histStore, err := history.NewStore(cfg.HistoryDir)
	if err != nil {
		return initError{fmt.Errorf("open history store: %w", err)}
	}

	b := bus.NewBus(16)
	conn := b.NewConnection("upowerd")

	daemon := aggregator.NewDaemon(conn, cfg.Thresholds(), logger.Std())

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	adapters, err := buildAdapters(cfg)
	if err != nil {
		return initError{fmt.Errorf("build native source adapters: %w", err)}
	}
	if len(adapters) == 0 {
		logger.Warnf("no native source adapters available on this platform/config; daemon will report an empty device set")
	}
	for _, a := range adapters {
		if err := daemon.AddAdapter(ctx, a); err != nil {
			return initError{fmt.Errorf("add adapter: %w", err)}
		}
	}

	dbusConn, err := godbus.ConnectSystemBus()
	if err != nil {
		return busError{fmt.Errorf("connect to system bus: %w", err)}
	}
	defer dbusConn.Close()

	svc := busiface.New(dbusConn, conn, daemon, histStore, daemonVersion, cfg.CriticalPowerAction)
	if err := svc.Start(ctx, f.replace); err != nil {
		return busError{fmt.Errorf("acquire bus name: %w", err)}
	}

	go daemon.Scheduler().Run(ctx)
	go daemon.Run(ctx)

	watchdog, resetWatchdog := newInactivityWatchdog(f.timedExit, f.immediateExit)
	activity := conn.Subscribe(bus.T("upower", "device", "#"))
	defer conn.Unsubscribe(activity)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-activity.Channel():
			if resetWatchdog() {
				cancel()
				waitForShutdown(ctx)
				return nil
			}
		case <-watchdog.C:
			logger.Infof("timed-exit elapsed with no activity, shutting down")
			cancel()
			waitForShutdown(ctx)
			return nil
		case <-sig:
			logger.Infof("received shutdown signal")
			cancel()
			waitForShutdown(ctx)
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// newInactivityWatchdog returns a timer that fires after timedExit
// seconds of silence (spec §6's --timed-exit), and a reset function that
// reports whether the daemon should now exit (always true immediately,
// once, under --immediate-exit).
func newInactivityWatchdog(timedExit int, immediateExit bool) (*time.Timer, func() bool) {
	if timedExit <= 0 {
		t := time.NewTimer(time.Duration(1<<62 - 1))
		return t, func() bool { return immediateExit }
	}
	d := time.Duration(timedExit) * time.Second
	t := time.NewTimer(d)
	return t, func() bool {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(d)
		return immediateExit
	}
}

// waitForShutdown gives the daemon's Run loop and the busiface mirror
// goroutine shutdownGrace to notice ctx is cancelled and unwind.
func waitForShutdown(ctx context.Context) {
	<-ctx.Done()
	time.Sleep(shutdownGrace)
}

// buildAdapters constructs whichever native source adapters this
// platform and config support (spec §4.1): sysfs on Linux, the
// cross-platform ACPI reader elsewhere, plus the optional HID-UPS (NUT)
// and LTC4015 adapters when configured. A platform/config combination
// with nothing to offer is not an init error; the daemon still runs
// with an empty registry (e.g. a bus-only display of line power that
// never appears).
func buildAdapters(cfg config.Config) ([]source.Adapter, error) {
	var out []source.Adapter

	if runtime.GOOS == "linux" {
		out = append(out, source.NewSysfsAdapter(cfg.MockSysfsRoot))
	} else {
		out = append(out, source.NewACPIAdapter())
	}

	if cfg.HidUpsEnabled {
		a, err := buildFromRegistry("hidups", map[string]string{
			"host":         cfg.HidUpsHost,
			"username":     cfg.HidUpsUsername,
			"password":     cfg.HidUpsPassword,
			"poll_seconds": strconv.Itoa(cfg.HidUpsPollSeconds),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	if cfg.LTC4015Enabled {
		a, err := buildFromRegistry("ltc4015", map[string]string{
			"id":                cfg.LTC4015ID,
			"i2c_bus":           strconv.Itoa(cfg.LTC4015I2CBus),
			"address":           cfg.LTC4015Address,
			"chemistry":         cfg.LTC4015Chemistry,
			"rsense_batt_uohm":  strconv.Itoa(cfg.LTC4015RSenseBatt),
			"rsense_input_uohm": strconv.Itoa(cfg.LTC4015RSenseInput),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, nil
}

// buildFromRegistry looks up a native-source builder by name (spec
// §4.1's registry, internal/source/registry.go) so main never imports
// the optional adapters' concrete packages directly.
func buildFromRegistry(name string, params map[string]string) (source.Adapter, error) {
	b, ok := source.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no native source adapter registered for %q", name)
	}
	return b.Build(params)
}
