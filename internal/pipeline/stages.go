package pipeline

import (
	"context"

	"github.com/GoodnightSam/JGL-Assistant/internal/assets"
	"github.com/GoodnightSam/JGL-Assistant/internal/script"
	"github.com/GoodnightSam/JGL-Assistant/internal/stage"
	"github.com/GoodnightSam/JGL-Assistant/internal/storyboard"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

// Pinger is implemented by LLM clients that can verify connectivity.
type Pinger interface {
	HealthCheck(ctx context.Context, model string) error
}

// scriptStage runs narration + phonetic generation.
type scriptStage struct {
	gen   *script.Generator
	ping  Pinger
	model string
}

func (s *scriptStage) Name() string { return "script" }

func (s *scriptStage) Prepare(context.Context, *workspace.Handle) error { return nil }

func (s *scriptStage) Execute(ctx context.Context, h *workspace.Handle) error {
	_, err := s.gen.Generate(ctx, h)
	return err
}

func (s *scriptStage) HealthCheck(ctx context.Context) stage.Health {
	if s.ping == nil {
		return stage.Healthy(s.Name())
	}
	if err := s.ping.HealthCheck(ctx, s.model); err != nil {
		return stage.Unhealthy(s.Name(), err.Error())
	}
	return stage.Healthy(s.Name())
}

// storyboardStage runs shot decomposition and the music brief.
type storyboardStage struct {
	planner *storyboard.Planner
	ping    Pinger
	model   string
}

func (s *storyboardStage) Name() string { return "storyboard" }

func (s *storyboardStage) Prepare(context.Context, *workspace.Handle) error { return nil }

func (s *storyboardStage) Execute(ctx context.Context, h *workspace.Handle) error {
	_, err := s.planner.Plan(ctx, h)
	return err
}

func (s *storyboardStage) HealthCheck(ctx context.Context) stage.Health {
	if s.ping == nil {
		return stage.Healthy(s.Name())
	}
	if err := s.ping.HealthCheck(ctx, s.model); err != nil {
		return stage.Unhealthy(s.Name(), err.Error())
	}
	return stage.Healthy(s.Name())
}

// assetsStage fills candidate pools for every shot.
type assetsStage struct {
	fetcher *assets.Fetcher
	summary *assets.Summary
}

func (s *assetsStage) Name() string { return "assets" }

func (s *assetsStage) Prepare(_ context.Context, h *workspace.Handle) error {
	return assets.CheckFreeSpace(h.ImagesDir())
}

func (s *assetsStage) Execute(ctx context.Context, h *workspace.Handle) error {
	summary, err := s.fetcher.Fetch(ctx, h)
	s.summary = summary
	return err
}

func (s *assetsStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.Name())
}
