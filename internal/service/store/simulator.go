package store

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/robfig/cron.v2"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
)

// simulator drifts temperature and garbage level like real sensors would.
type simulator struct {
	svc *service
	// random returns a value in [0,1).
	random func() float64
}

func newSimulator(svc *service) *simulator {
	return &simulator{
		svc:    svc,
		random: rand.Float64,
	}
}

// tick applies one drift step to both readings.
func (sim *simulator) tick(ctx context.Context) {
	temp := sim.svc.number(office.KeyTemperature, office.DefaultTemperatureC)
	temp = roundTenth(temp + (sim.random()-0.5)*2)

	if err := sim.svc.Set(ctx, office.KeyTemperature, structpb.NewNumberValue(temp)); err != nil {
		logger.Errorf(ctx, "Simulated temperature not stored: %v", err)
	}

	level := sim.svc.number(office.KeyGarbageLevel, office.DefaultGarbageLevelPct)
	level = roundTenth(office.ClampPercent(level + (sim.random()-0.3)*5))

	if err := sim.svc.Set(ctx, office.KeyGarbageLevel, structpb.NewNumberValue(level)); err != nil {
		logger.Errorf(ctx, "Simulated garbage level not stored: %v", err)
	}

	logger.DebugKV(ctx, "Sensors simulated", "temperature", temp, "garbage_level", level)
}

// start schedules tick on spec and stops when ctx is done.
func (sim *simulator) start(ctx context.Context, spec string) error {
	c := cron.New()

	if _, err := c.AddFunc(spec, func() { sim.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule simulator: %w", err)
	}

	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	logger.InfoKV(ctx, "Sensor simulator started", "schedule", spec)

	return nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
