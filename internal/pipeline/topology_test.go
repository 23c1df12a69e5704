package pipeline

import (
	"errors"
	"testing"

	"github.com/shaiso/MarketMind/internal/routeback"
)

func validPipeline() *Pipeline {
	return &Pipeline{
		Name: "test",
		Stages: []StageDef{
			{Name: "research", EstimatedCost: 1},
			{Name: "content", EstimatedCost: 1},
			{Name: "review", EstimatedCost: 1},
		},
		DecisionStage: "review",
		RouteTargets: map[routeback.Dimension]string{
			routeback.DimensionAudienceFit: "research",
		},
		MaxRouteBacks: 2,
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validPipeline().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Pipeline)
		wantErr error
	}{
		{
			name:    "empty name",
			mutate:  func(p *Pipeline) { p.Name = "" },
			wantErr: ErrEmptyPipelineName,
		},
		{
			name:    "no stages",
			mutate:  func(p *Pipeline) { p.Stages = nil },
			wantErr: ErrNoStages,
		},
		{
			name: "duplicate stage",
			mutate: func(p *Pipeline) {
				p.Stages = append(p.Stages, StageDef{Name: "research"})
			},
			wantErr: ErrDuplicateStage,
		},
		{
			name:    "unknown decision stage",
			mutate:  func(p *Pipeline) { p.DecisionStage = "ghost" },
			wantErr: ErrUnknownDecisionStage,
		},
		{
			name: "unknown route target",
			mutate: func(p *Pipeline) {
				p.RouteTargets[routeback.DimensionClarity] = "ghost"
			},
			wantErr: ErrUnknownRouteTarget,
		},
		{
			name: "route target not earlier than decision",
			mutate: func(p *Pipeline) {
				p.RouteTargets[routeback.DimensionClarity] = "review"
			},
			wantErr: ErrRouteTargetNotEarlier,
		},
		{
			name: "targets without decision stage",
			mutate: func(p *Pipeline) {
				p.DecisionStage = ""
			},
			wantErr: ErrTargetsWithoutDecision,
		},
		{
			name:    "negative route-back limit",
			mutate:  func(p *Pipeline) { p.MaxRouteBacks = -1 },
			wantErr: ErrNegativeRouteBackLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPipeline()
			tt.mutate(p)

			if err := p.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(validPipeline()); err != nil {
		t.Fatalf("register: %v", err)
	}

	p, err := r.Get("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "test" {
		t.Errorf("unexpected pipeline: %s", p.Name)
	}

	if _, err := r.Get("ghost"); !errors.Is(err, ErrPipelineNotFound) {
		t.Errorf("expected ErrPipelineNotFound, got %v", err)
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := NewRegistry()
	p := validPipeline()
	p.Name = ""

	if err := r.Register(p); err == nil {
		t.Error("expected validation error")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	p, err := r.Get("campaign-intelligence")
	if err != nil {
		t.Fatalf("campaign-intelligence must be registered: %v", err)
	}

	if p.DecisionStage != "review" {
		t.Errorf("expected decision stage review, got %s", p.DecisionStage)
	}

	// Каждая route-цель строго раньше decision-стадии
	decisionIdx, _ := p.StageIndex(p.DecisionStage)
	for dim, target := range p.RouteTargets {
		idx, ok := p.StageIndex(target)
		if !ok {
			t.Errorf("route target %s for %s not found", target, dim)
			continue
		}
		if idx >= decisionIdx {
			t.Errorf("route target %s must precede decision stage", target)
		}
	}

	if _, err := r.Get("competitor-scan"); err != nil {
		t.Errorf("competitor-scan must be registered: %v", err)
	}
}
