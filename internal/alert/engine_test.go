package alert

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockMetricsGetter struct {
	values map[string]float64
}

func (m *mockMetricsGetter) GetMetricValue(ctx context.Context, workspaceID uuid.UUID, metricName, aggregation string, start, end time.Time) (float64, error) {
	val, ok := m.values[metricName]
	if !ok {
		return 0, nil
	}
	return val, nil
}

func TestEngine_Evaluate(t *testing.T) {
	tests := []struct {
		name          string
		alert         *Alert
		metricValues  map[string]float64
		wantTriggered bool
	}{
		{
			name: "single condition met",
			alert: &Alert{
				WorkspaceID: uuid.New(),
				Conditions: []Condition{
					{MetricName: "memory_exhaustions", Aggregation: "sum", Operator: "gt", Threshold: 5},
				},
				ConditionLogic: "AND",
				WindowSeconds:  300,
			},
			metricValues:  map[string]float64{"memory_exhaustions": 8},
			wantTriggered: true,
		},
		{
			name: "single condition not met",
			alert: &Alert{
				WorkspaceID: uuid.New(),
				Conditions: []Condition{
					{MetricName: "memory_exhaustions", Aggregation: "sum", Operator: "gt", Threshold: 5},
				},
				ConditionLogic: "AND",
				WindowSeconds:  300,
			},
			metricValues:  map[string]float64{"memory_exhaustions": 2},
			wantTriggered: false,
		},
		{
			name: "multiple conditions AND all met",
			alert: &Alert{
				WorkspaceID: uuid.New(),
				Conditions: []Condition{
					{MetricName: "memory_exhaustions", Aggregation: "sum", Operator: "gt", Threshold: 5},
					{MetricName: "avg_wall_ms", Aggregation: "avg", Operator: "gt", Threshold: 1000},
				},
				ConditionLogic: "AND",
				WindowSeconds:  300,
			},
			metricValues:  map[string]float64{"memory_exhaustions": 8, "avg_wall_ms": 1500},
			wantTriggered: true,
		},
		{
			name: "multiple conditions AND one not met",
			alert: &Alert{
				WorkspaceID: uuid.New(),
				Conditions: []Condition{
					{MetricName: "memory_exhaustions", Aggregation: "sum", Operator: "gt", Threshold: 5},
					{MetricName: "avg_wall_ms", Aggregation: "avg", Operator: "gt", Threshold: 1000},
				},
				ConditionLogic: "AND",
				WindowSeconds:  300,
			},
			metricValues:  map[string]float64{"memory_exhaustions": 8, "avg_wall_ms": 500},
			wantTriggered: false,
		},
		{
			name: "multiple conditions OR one met",
			alert: &Alert{
				WorkspaceID: uuid.New(),
				Conditions: []Condition{
					{MetricName: "memory_exhaustions", Aggregation: "sum", Operator: "gt", Threshold: 5},
					{MetricName: "avg_wall_ms", Aggregation: "avg", Operator: "gt", Threshold: 1000},
				},
				ConditionLogic: "OR",
				WindowSeconds:  300,
			},
			metricValues:  map[string]float64{"memory_exhaustions": 8, "avg_wall_ms": 500},
			wantTriggered: true,
		},
		{
			name: "multiple conditions OR none met",
			alert: &Alert{
				WorkspaceID: uuid.New(),
				Conditions: []Condition{
					{MetricName: "memory_exhaustions", Aggregation: "sum", Operator: "gt", Threshold: 5},
					{MetricName: "avg_wall_ms", Aggregation: "avg", Operator: "gt", Threshold: 1000},
				},
				ConditionLogic: "OR",
				WindowSeconds:  300,
			},
			metricValues:  map[string]float64{"memory_exhaustions": 2, "avg_wall_ms": 500},
			wantTriggered: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&mockMetricsGetter{values: tt.metricValues})

			triggered, metadata, err := engine.Evaluate(context.Background(), tt.alert)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if triggered != tt.wantTriggered {
				t.Errorf("Evaluate() triggered = %v, want %v", triggered, tt.wantTriggered)
			}
			if metadata == nil {
				t.Error("Evaluate() metadata should not be nil")
			}
		})
	}
}

func TestEvaluateCondition_ThroughEngine(t *testing.T) {
	tests := []struct {
		name          string
		operator      string
		value         float64
		threshold     float64
		wantTriggered bool
	}{
		{"greater than true", "gt", 100, 80, true},
		{"greater than false", "gt", 80, 100, false},
		{"greater than equal true equal", "gte", 100, 100, true},
		{"greater than equal true greater", "gte", 100, 80, true},
		{"greater than equal false", "gte", 80, 100, false},
		{"less than true", "lt", 80, 100, true},
		{"less than false", "lt", 100, 80, false},
		{"less than equal true equal", "lte", 100, 100, true},
		{"less than equal true less", "lte", 80, 100, true},
		{"less than equal false", "lte", 100, 80, false},
		{"equal true", "eq", 100, 100, true},
		{"equal false", "eq", 100, 80, false},
		{"not equal true", "ne", 100, 80, true},
		{"unknown operator", "unknown", 100, 80, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&mockMetricsGetter{values: map[string]float64{"stale_batches": tt.value}})

			alert := &Alert{
				WorkspaceID: uuid.New(),
				Conditions: []Condition{
					{MetricName: "stale_batches", Aggregation: "count", Operator: tt.operator, Threshold: tt.threshold},
				},
				ConditionLogic: "AND",
				WindowSeconds:  300,
			}

			triggered, _, err := engine.Evaluate(context.Background(), alert)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if triggered != tt.wantTriggered {
				t.Errorf("Evaluate() triggered = %v, want %v", triggered, tt.wantTriggered)
			}
		})
	}
}

func TestEngine_ShouldTrigger(t *testing.T) {
	engine := NewEngine(&mockMetricsGetter{})
	now := time.Now()

	t.Run("never triggered fires immediately", func(t *testing.T) {
		a := &Alert{CooldownSeconds: 60}
		if !engine.ShouldTrigger(a, now) {
			t.Error("ShouldTrigger() = false, want true for an alert with no history")
		}
	})

	t.Run("within cooldown stays silent", func(t *testing.T) {
		last := now.Add(-30 * time.Second)
		a := &Alert{CooldownSeconds: 60, LastTriggeredAt: &last}
		if engine.ShouldTrigger(a, now) {
			t.Error("ShouldTrigger() = true, want false inside the cooldown window")
		}
	})

	t.Run("past cooldown fires again", func(t *testing.T) {
		last := now.Add(-90 * time.Second)
		a := &Alert{CooldownSeconds: 60, LastTriggeredAt: &last}
		if !engine.ShouldTrigger(a, now) {
			t.Error("ShouldTrigger() = false, want true once the cooldown has elapsed")
		}
	})
}
