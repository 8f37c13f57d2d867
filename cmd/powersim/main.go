// Package main provides powersim, which runs the power engine either headless
// over a YAML scenario or live on a wall-clock tick loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/powerbar/internal/config"
	"github.com/cory-johannsen/powerbar/internal/game/power"
	"github.com/cory-johannsen/powerbar/internal/observability"
	"github.com/cory-johannsen/powerbar/internal/scenario"
	"github.com/cory-johannsen/powerbar/internal/scripting"
	"github.com/cory-johannsen/powerbar/internal/sim"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("scenario", "", "scenario YAML to run headless; empty = live tick loop")
	tracePath := flag.String("trace", "", "CSV trace output path; overrides trace.path")
	duration := flag.Duration("duration", 0, "stop the live loop after this long; 0 = until interrupted")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *tracePath != "" {
		cfg.Trace.Path = *tracePath
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger, *scenarioPath, *duration); err != nil {
		logger.Fatal("powersim failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, scenarioPath string, duration time.Duration) error {
	start := time.Now()

	templates, err := power.LoadTemplates(cfg.Content.TemplatesDir)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	limits, err := power.LoadLimitDirectory(cfg.Content.LimitsDir)
	if err != nil {
		return fmt.Errorf("loading limit definitions: %w", err)
	}
	logger.Info("content loaded",
		zap.Int("templates", len(templates)),
		zap.Int("limits", len(limits.All())),
		zap.Duration("elapsed", time.Since(start)),
	)

	var curve power.BonusCurve = cfg.Curve
	if cfg.Content.BonusScript != "" {
		lc, err := scripting.LoadCurve(cfg.Content.BonusScript, cfg.Content.InstructionLimit, cfg.Curve, logger)
		if err != nil {
			return err
		}
		defer lc.Close()
		curve = lc
		logger.Info("bonus curve script loaded", zap.String("path", cfg.Content.BonusScript))
	}
	opts := []power.Option{power.WithBonusCurve(curve), power.WithWorkers(cfg.Simulation.Workers)}

	trace, closeTrace, err := openTrace(cfg.Trace.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeTrace(); err != nil {
			logger.Warn("closing trace", zap.String("path", cfg.Trace.Path), zap.Error(err))
		}
	}()

	if scenarioPath != "" {
		return runScenario(ctx, scenarioPath, templates, limits, opts, trace, logger)
	}
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	return runLive(ctx, cfg.Simulation, templates, opts, trace, logger)
}

// openTrace returns a nil writer when path is empty.
func openTrace(path string) (*scenario.TraceWriter, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace %q: %w", path, err)
	}
	return scenario.NewTraceWriter(f), f.Close, nil
}

func runScenario(
	ctx context.Context,
	path string,
	templates []*power.Template,
	limits *power.LimitRegistry,
	opts []power.Option,
	trace *scenario.TraceWriter,
	logger *zap.Logger,
) error {
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	out, err := scenario.NewRunner(templates, limits, logger, opts...).Run(ctx, sc)
	if err != nil {
		return err
	}
	for _, ev := range out.Events {
		logEvent(logger, ev.Tick, ev.Notification)
	}
	if trace != nil {
		return trace.Write(out.Rows)
	}
	return scenario.WriteTrace(os.Stdout, out.Rows)
}

func runLive(
	ctx context.Context,
	simCfg config.SimulationConfig,
	templates []*power.Template,
	opts []power.Option,
	trace *scenario.TraceWriter,
	logger *zap.Logger,
) error {
	engine := power.NewEngine(logger, opts...)
	for _, t := range templates {
		if err := engine.SpawnWithID(power.EntityID(t.ID), *t); err != nil {
			return err
		}
	}

	loop := sim.NewTickLoop(engine, simCfg.TickInterval, logger)
	batches := make(chan sim.Batch, 64)
	loop.Subscribe(batches)
	defer loop.Unsubscribe(batches)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case b := <-batches:
				for _, n := range b.Notifications {
					logEvent(logger, int(b.Seq), n)
				}
				if trace == nil {
					continue
				}
				rows := make([]scenario.TraceRow, 0, engine.Len())
				for _, id := range engine.IDs() {
					if ent, ok := engine.Get(id); ok {
						rows = append(rows, scenario.NewTraceRow(int(b.Seq), b.Elapsed, ent.Snapshot()))
					}
				}
				if err := trace.Write(rows); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}

// logEvent reports state transitions at Info; request echoes stay at the
// engine's Debug level.
func logEvent(logger *zap.Logger, tick int, n power.Notification) {
	fields := []zap.Field{zap.Int("tick", tick), zap.String("entity", string(n.EntityID()))}
	switch v := n.(type) {
	case power.KnockedOut:
		logger.Info("knocked out", fields...)
	case power.Revived:
		logger.Info("revived", append(fields, zap.Float32("current", v.Current))...)
	case power.LevelUpNotice:
		logger.Info("level up", append(fields, zap.Uint32("level", v.NewLevel), zap.Float32("bonus", v.PowerBonus))...)
	case power.LimitExpired:
		logger.Info("limit expired", append(fields, zap.Int64("limit", v.LimitID))...)
	case power.Result:
		if !v.Accepted {
			logger.Info("request rejected", append(fields, zap.String("op", string(v.Op)), zap.Error(v.Err))...)
		}
	}
}
