// bpulse is an always-on system pulse gadget for the terminal.
//
// It samples CPU, memory, disk, network, block I/O, battery and login
// information on a background worker and renders smoothed gauges at a fixed
// frame rate from a single-threaded event loop.
//
// Usage:
//
//	bpulse [flags]
//
// Flags:
//
//	-interval duration   sampling interval (default 1s)
//	-fps int             render frames per second (default 25)
//	-families string     metric families: cpu,mem,disk,net,io,users,battery,host or all
//	-disk string         mount path for free space (default "/")
//	-cpu string          cpu aggregate: empty for all cores, or cpuN
//	-eth string          network interface, empty for all
//	-io string           block device, empty for all
//	-battery             enable battery sampling (default true)
//	-json                output one-shot JSON and exit
//	-settings string     YAML settings file (default ~/.config/bpulse/settings.yaml)
//	-log-file string     write logs to this file
//	-log-level string    debug|info|warn|error
//	-metrics-addr string serve Prometheus metrics on this address
//
// Every flag can also be set through BPULSE_<FLAG> or the settings file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dicklesworthstone/bpulse/internal/config"
	"github.com/Dicklesworthstone/bpulse/internal/model"
	"github.com/Dicklesworthstone/bpulse/internal/reactor"
	"github.com/Dicklesworthstone/bpulse/internal/sampler"
	"github.com/Dicklesworthstone/bpulse/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.FromFlags(args, os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	var metrics *sampler.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = sampler.NewMetrics(reg)
		stop := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer stop()
	}

	smp := sampler.New(sampler.NewSystemSource(),
		sampler.WithLogger(logger),
		sampler.WithMetrics(metrics),
		sampler.WithMask(cfg.Mask()))
	defer smp.Close()
	smp.SetDisk(cfg.Disk)
	smp.SetCPU(cfg.CPU)
	smp.SetEth(cfg.Eth)
	smp.SetIO(cfg.IO)

	if cfg.JSON {
		if err := writeJSON(os.Stdout, smp, cfg.Interval); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	rc, err := runGadget(cfg, smp, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return rc
}

func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		w := io.Discard
		if cfg.JSON {
			w = os.Stderr
		}
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level()})), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.Level()}))
	return logger, func() { f.Close() }, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.String("error", err.Error()))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// writeJSON takes two samples one interval apart so rate families have a
// baseline, then prints the snapshot.
func writeJSON(w io.Writer, smp *sampler.Sampler, interval time.Duration) error {
	if _, err := awaitPass(smp, 1, 10*time.Second); err != nil {
		return err
	}
	time.Sleep(interval)
	snap, err := awaitPass(smp, 2, 10*time.Second)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*model.Snapshot
		Families string
		Errors   []string `json:",omitempty"`
	}{snap, snap.Families.String(), reportErrors(smp.LastReport())})
}

func awaitPass(smp *sampler.Sampler, gen uint64, timeout time.Duration) (*model.Snapshot, error) {
	smp.Probe()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if snap := smp.Latest(); snap.Generation >= gen {
			return snap, nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil, fmt.Errorf("sampling pass %d did not finish within %v", gen, timeout)
}

func reportErrors(rep sampler.Report) []string {
	var out []string
	for _, e := range rep.Errors {
		out = append(out, e.Error())
	}
	return out
}

func runGadget(cfg config.Config, smp *sampler.Sampler, logger *slog.Logger) (int, error) {
	term, err := ui.OpenTerminal(os.Stdin, os.Stdout)
	if err != nil {
		return 1, err
	}
	defer term.Close()

	r, err := reactor.New(reactor.WithLogger(logger), reactor.WithTimeout(cfg.FramePeriod()))
	if err != nil {
		return 1, err
	}
	defer r.Close()

	surf := ui.NewSurface(ui.New(smp), term, r.TerminateLoop, logger)
	surf.Resize()

	if err := r.RegisterEventHandler(surf.Fd(), surf.HandleInput); err != nil {
		return 1, err
	}
	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP} {
		if err := r.RegisterSignalHandler(sig, func(sig syscall.Signal) int {
			logger.Info("received signal, quitting", slog.String("signal", sig.String()))
			return int(sig)
		}); err != nil {
			return 1, err
		}
	}
	if err := registerResize(r, surf); err != nil {
		return 1, err
	}

	probeEvery := cfg.ProbeEvery()
	tick := 0
	if err := r.RegisterCallback(func() int {
		if !surf.Paused() {
			if tick%probeEvery == 0 {
				smp.Probe()
			}
			tick++
		}
		return surf.Render(smp.Latest(), time.Now())
	}); err != nil {
		return 1, err
	}

	logger.Info("bpulse started",
		slog.Duration("interval", cfg.Interval),
		slog.Int("fps", cfg.FrameRate),
		slog.String("families", cfg.Mask().String()))

	rc, err := r.RunLoop()
	st := r.Stats()
	logger.Info("bpulse stopped",
		slog.Int("result", rc),
		slog.Int64("rounds", st.Rounds),
		slog.Int64("overruns", st.Overruns),
		slog.Duration("p99", st.P99))
	return rc, err
}
