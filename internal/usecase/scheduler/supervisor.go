// Package scheduler runs the polling loops of the bot under one supervisor.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/errs"
	"orderbot/internal/ports"
)

// Loop is one periodic task. Tick runs immediately and then every Interval,
// never overlapping with itself.
type Loop struct {
	Name     string
	Interval time.Duration
	Tick     func(ctx context.Context) error
}

type Supervisor struct {
	loops     []Loop
	telemetry ports.Telemetry
}

func NewSupervisor(telemetry ports.Telemetry, loops ...Loop) *Supervisor {
	if telemetry == nil {
		telemetry = ports.NopTelemetry{}
	}
	return &Supervisor{loops: loops, telemetry: telemetry}
}

func (s *Supervisor) Add(loop Loop) {
	s.loops = append(s.loops, loop)
}

func (s *Supervisor) Loops() []Loop {
	out := make([]Loop, len(s.loops))
	copy(out, s.loops)
	return out
}

// Run blocks until ctx is cancelled. A failing or panicking tick is logged
// and the loop keeps its schedule; an in-flight tick finishes on a context
// that ignores the cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	for _, loop := range s.loops {
		if err := validate(loop); err != nil {
			return err
		}
	}
	if len(s.loops) == 0 {
		return errors.New("no loops configured")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, loop := range s.loops {
		loop := loop
		group.Go(func() error {
			s.runLoop(groupCtx, loop)
			return nil
		})
	}
	return group.Wait()
}

func (s *Supervisor) runLoop(ctx context.Context, loop Loop) {
	loopCtx := logging.WithAttrs(ctx, slog.String("loop", loop.Name))
	logging.Info(loopCtx, "loop started", slog.Duration("interval", loop.Interval))

	ticker := time.NewTicker(loop.Interval)
	defer ticker.Stop()

	for {
		_ = s.RunTick(loopCtx, loop)

		select {
		case <-ctx.Done():
			logging.Info(loopCtx, "loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunTick runs one tick of loop with a fresh cycle id.
func (s *Supervisor) RunTick(ctx context.Context, loop Loop) error {
	tickCtx := logging.WithCycle(context.WithoutCancel(ctx), uuid.NewString())
	start := time.Now()
	err := safeTick(tickCtx, loop.Tick)
	elapsed := time.Since(start)

	s.telemetry.LoopTick(loop.Name, err, elapsed)
	if err != nil {
		logging.Error(tickCtx, "loop tick failed",
			slog.Duration("elapsed", elapsed),
			slog.Any("err", errs.Loggable(err)),
		)
	}
	return err
}

func safeTick(ctx context.Context, tick func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.WithStack(fmt.Errorf("tick panicked: %v\n%s", r, debug.Stack()))
		}
	}()
	return tick(ctx)
}

func validate(loop Loop) error {
	if strings.TrimSpace(loop.Name) == "" {
		return errors.New("loop name is required")
	}
	if loop.Interval <= 0 {
		return fmt.Errorf("loop %s: interval must be positive", loop.Name)
	}
	if loop.Tick == nil {
		return fmt.Errorf("loop %s: tick is required", loop.Name)
	}
	return nil
}
