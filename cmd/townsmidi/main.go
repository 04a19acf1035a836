package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli"
	"github.com/valerio/go-townsmidi/townsmidi/chip"
	"github.com/valerio/go-townsmidi/townsmidi/config"
	"github.com/valerio/go-townsmidi/townsmidi/fm"
	"github.com/valerio/go-townsmidi/townsmidi/monitor"
	"github.com/valerio/go-townsmidi/townsmidi/player"
	"github.com/valerio/go-townsmidi/townsmidi/timing"
	"github.com/valerio/go-townsmidi/townsmidi/vgm"
)

const logBufferSize = 512

func main() {
	app := cli.NewApp()
	app.Name = "townsmidi"
	app.Description = "FM Towns MIDI driver: 32 MIDI parts on 6 FM voices"
	app.Usage = "townsmidi <command> [options]"
	app.Version = "1.0.0"
	app.Commands = []cli.Command{
		{
			Name:      "play",
			Usage:     "Play a standard MIDI file through the driver",
			ArgsUsage: "<file.mid>",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config",
					Usage: "Path to a YAML config with log level and part setup",
				},
				cli.StringFlag{
					Name:  "vgm",
					Usage: "Record the register stream to a VGM file (.vgz is compressed)",
				},
				cli.StringFlag{
					Name:  "limiter",
					Usage: "Real time pacing: adaptive or ticker",
					Value: timing.KindAdaptive,
				},
				cli.BoolFlag{
					Name:  "offline",
					Usage: "Render as fast as possible instead of in real time",
				},
				cli.BoolFlag{
					Name:  "monitor",
					Usage: "Show the live voice monitor",
				},
				cli.BoolFlag{
					Name:  "debug",
					Usage: "Log at debug level, including register writes",
				},
			},
			Action: runPlay,
		},
		{
			Name:   "freqtable",
			Usage:  "Print the frequency register encoding of every MIDI note",
			Action: runFreqTable,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running townsmidi", "error", err)
		os.Exit(1)
	}
}

func runPlay(c *cli.Context) error {
	if c.NArg() == 0 {
		cli.ShowCommandHelp(c, "play")
		return errors.New("no MIDI file provided")
	}
	path := c.Args().First()

	cfg := config.Default()
	if cfgPath := c.String("config"); cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if c.Bool("debug") {
		level = slog.LevelDebug
	}

	var logs *monitor.LogBuffer
	var handler slog.Handler
	if c.Bool("monitor") {
		logs = monitor.NewLogBuffer(logBufferSize)
		// the monitor filters on its own
		handler = monitor.NewLogBufferHandler(logs, slog.LevelDebug)
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	song, err := player.LoadFile(path)
	if err != nil {
		return err
	}

	var hw chip.Interface = chip.NewLogSink(chip.NewRegisterFile(), chip.WithLogger(logger))
	var rec *vgm.Recorder
	vgmPath := c.String("vgm")
	if vgmPath != "" {
		opts := []vgm.Option{}
		if cfg.Clock != 0 {
			opts = append(opts, vgm.WithClock(cfg.Clock))
		}
		if strings.HasSuffix(strings.ToLower(vgmPath), ".vgz") {
			opts = append(opts, vgm.WithGzip())
		}
		rec = vgm.NewRecorder(opts...)
		hw = chip.Tee(hw, rec)
	}

	drv := fm.New(hw, fm.WithLogger(logger))
	if err := drv.Open(); err != nil {
		return err
	}
	defer drv.Close()
	if err := cfg.Apply(drv); err != nil {
		return err
	}

	playerOpts := []player.Option{player.WithLogger(logger)}
	if !c.Bool("offline") {
		limiter, err := timing.NewLimiter(c.String("limiter"), timing.PulsePeriod(drv.BaseTempo()))
		if err != nil {
			return err
		}
		if t, ok := limiter.(*timing.TickerLimiter); ok {
			defer t.Stop()
		}
		playerOpts = append(playerOpts, player.WithLimiter(limiter))
	}
	if rec != nil {
		playerOpts = append(playerOpts, player.WithPulseHook(rec.WaitDuration))
	}
	p := player.New(drv, song, playerOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Playing",
		"file", path,
		"duration", song.Duration(),
		"offline", c.Bool("offline"),
		"pulses_per_second", timing.PulsesPerSecond(drv.BaseTempo()))
	if c.Bool("monitor") {
		err = playWithMonitor(ctx, p, drv, logs)
	} else {
		err = p.Play(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if rec != nil {
		if err := writeRecording(rec, vgmPath); err != nil {
			return err
		}
		slog.Info("Saved recording", "path", vgmPath, "samples", rec.TotalSamples(), "writes", rec.Writes())
	}
	return nil
}

// playWithMonitor plays on a goroutine while the monitor owns the terminal.
// Quitting the monitor stops playback.
func playWithMonitor(ctx context.Context, p *player.Player, drv *fm.Driver, logs *monitor.LogBuffer) error {
	mon, err := monitor.NewTerminal(drv, logs)
	if err != nil {
		return err
	}
	if err := mon.Init(); err != nil {
		return err
	}
	defer mon.Fini()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.Play(ctx)
		cancel()
	}()

	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cancel()
	return <-done
}

func writeRecording(rec *vgm.Recorder, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording: %v", err)
	}
	if _, err := rec.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write recording: %v", err)
	}
	return f.Close()
}

func runFreqTable(c *cli.Context) error {
	w := c.App.Writer
	fmt.Fprintln(w, "NOTE  A4  A0")
	for note := 0; note < 128; note++ {
		high, low := fm.EncodeFrequency(uint16(note) << 7)
		fmt.Fprintf(w, "%4d  %02X  %02X\n", note, high, low)
	}
	return nil
}
