package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luhtfiimanal/go-pico-bridge/internal/config"
	"github.com/luhtfiimanal/go-pico-bridge/internal/console"
	"github.com/luhtfiimanal/go-pico-bridge/internal/gbridge"
	"github.com/luhtfiimanal/go-pico-bridge/internal/logging"
	"github.com/luhtfiimanal/go-pico-bridge/internal/pipeline"
	"github.com/luhtfiimanal/go-pico-bridge/internal/router"
	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

var errInterrupted = errors.New("interrupted")

var retryInterval = time.Second

// newBackends builds the discovery order; tests replace it.
var newBackends = buildBackends

type options struct {
	configPath string
	vid        string
	pid        string
	timeout    time.Duration
	backends   []string
	noSignals  bool
	wait       bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "picobridge",
		Short: "Host bridge for a Pico link-cable adapter",
		Long: `picobridge claims the adapter through the first backend that works
(raw USB bulk, vendor CDC driver, OS serial port), then polls it with framed
transfers until interrupted. Debug requests are read from standard input.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts.wait, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	f.StringVar(&opts.vid, "vid", "", "USB vendor id, hex")
	f.StringVar(&opts.pid, "pid", "", "USB product id, hex")
	f.DurationVar(&opts.timeout, "timeout", 0, "bound on every transport call")
	f.StringArrayVar(&opts.backends, "backend", nil, "backend to try (usb, vendor, serial); repeat to set the order")
	f.BoolVar(&opts.noSignals, "no-signals", false, "do not handle SIGINT/SIGTERM")
	f.BoolVar(&opts.wait, "wait", false, "keep looking until the device shows up")
	f.StringVar(&opts.logLevel, "log-level", "", "diagnostics level (trace, debug, info, warn, error, off)")
	return cmd
}

// resolve layers the flags that were set over the config file.
func (o options) resolve(changed func(name string) bool) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if changed("vid") {
		v, err := config.ParseID(o.vid)
		if err != nil {
			return config.Config{}, fmt.Errorf("--vid: %w", err)
		}
		cfg.VendorID = v
	}
	if changed("pid") {
		v, err := config.ParseID(o.pid)
		if err != nil {
			return config.Config{}, fmt.Errorf("--pid: %w", err)
		}
		cfg.ProductID = v
	}
	if changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if changed("backend") {
		cfg.Backends = config.NormalizeBackends(o.backends)
	}
	if changed("no-signals") {
		cfg.HandleSignals = !o.noSignals
	}
	if changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, wait bool, in io.Reader, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lc := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		lc.Level = lvl
	}
	logging.Configure(lc)
	log := logging.For(logging.ComponentMain)

	out := console.NewOutput(stdout)
	control := &pipeline.Control{}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var interrupted atomic.Bool
	if cfg.HandleSignals {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)
		go func() {
			select {
			case sig := <-sigs:
				log.Debug().Stringer("signal", sig).Msg("stopping")
				interrupted.Store(true)
				out.Print("interrupted")
				control.Stop()
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	t, kind, err := discover(ctx, cfg, wait, out, log)
	if err != nil {
		if interrupted.Load() {
			return errInterrupted
		}
		return err
	}
	log.Info().Stringer("backend", kind).Msg("bridge running")

	r := router.New(gbridge.NewCodec(),
		router.WithOutput(out),
		router.WithLogger(logging.For(logging.ComponentRouter)),
	)
	interp := console.NewInterpreter(r, out, console.WithLogger(logging.For(logging.ComponentConsole)))
	surface := console.NewSurface(console.NewSource(in), interp)

	s := pipeline.NewSession(t, r, control,
		pipeline.Config{PollInterval: cfg.PollInterval, ChunkSize: cfg.ChunkSize},
		pipeline.WithSurface(surface),
		pipeline.WithHandler(traceDataUnits(logging.For(logging.ComponentPipeline))),
		pipeline.WithLogger(logging.For(logging.ComponentPipeline)),
	)
	err = s.Run(ctx)
	if interrupted.Load() {
		return errInterrupted
	}
	return err
}

// discover claims the device. With wait set, a missing device is retried
// until it appears or ctx ends.
func discover(ctx context.Context, cfg config.Config, wait bool, out router.Output, log zerolog.Logger) (transport.Transport, transport.Kind, error) {
	backends, err := newBackends(cfg.Backends)
	if err != nil {
		return nil, 0, err
	}
	opts := transport.Options{
		Identity:          transport.Identity{VendorID: cfg.VendorID, ProductID: cfg.ProductID},
		Timeout:           cfg.Timeout,
		USBConfig:         cfg.USBConfig,
		USBInterface:      cfg.USBInterface,
		BaudRate:          cfg.BaudRate,
		SerialReadTimeout: cfg.SerialReadTimeout,
	}
	tlog := logging.For(logging.ComponentTransport)

	reported := false
	for {
		t, kind, err := transport.Discover(ctx, backends, opts, tlog)
		if err == nil {
			return t, kind, nil
		}
		var nf *transport.NotFoundError
		if !errors.As(err, &nf) {
			return nil, 0, err
		}
		if !reported {
			reportNotFound(out, nf)
			reported = true
		}
		if !wait {
			return nil, 0, err
		}
		log.Debug().Dur("retry", retryInterval).Msg("device not found, waiting")

		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, 0, ctx.Err()
		case <-timer.C:
		}
	}
}

func reportNotFound(out router.Output, nf *transport.NotFoundError) {
	out.Print("Couldn't find USB device!")
	for _, a := range nf.Attempts {
		out.Print(fmt.Sprintf("  %s: %v", a.Kind, a.Err))
	}
	if kinds := nf.Unavailable(); len(kinds) > 0 {
		out.Print(fmt.Sprintf("Not supported on this system: %v", kinds))
	}
}

// traceDataUnits logs every data and poll unit. It never produces a pending
// result; relaying data units is left to an external processor.
func traceDataUnits(log zerolog.Logger) gbridge.Handler {
	return func(cmd gbridge.Command) ([]byte, bool, bool) {
		log.Trace().Stringer("kind", cmd.Kind).Int("bytes", len(cmd.Payload)).Msg("data unit")
		return nil, false, false
	}
}
