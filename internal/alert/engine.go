package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MetricsGetter resolves one windowed metric value. The engine itself stays
// free of SQL; MetricSource (metrics.go) is the concrete implementation
// against taskforge's own tables.
type MetricsGetter interface {
	GetMetricValue(ctx context.Context, workspaceID uuid.UUID, metricName, aggregation string, windowStart, windowEnd time.Time) (float64, error)
}

type Engine struct {
	metrics MetricsGetter
}

func NewEngine(metrics MetricsGetter) *Engine {
	return &Engine{metrics: metrics}
}

// Evaluate resolves every condition's metric over the alert's window and
// combines them with its AND/OR logic.
func (e *Engine) Evaluate(ctx context.Context, a *Alert) (bool, map[string]interface{}, error) {
	now := time.Now()
	windowStart := now.Add(-time.Duration(a.WindowSeconds) * time.Second)

	results := make(map[string]interface{})
	conditionsMet := make([]bool, len(a.Conditions))

	for i, cond := range a.Conditions {
		value, err := e.metrics.GetMetricValue(ctx, a.WorkspaceID, cond.MetricName, cond.Aggregation, windowStart, now)
		if err != nil {
			return false, nil, fmt.Errorf("get metric %s: %w", cond.MetricName, err)
		}

		met := e.evaluateCondition(cond.Operator, value, cond.Threshold)
		conditionsMet[i] = met

		results[cond.MetricName] = map[string]interface{}{
			"value":       value,
			"threshold":   cond.Threshold,
			"operator":    cond.Operator,
			"met":         met,
			"aggregation": cond.Aggregation,
		}
	}

	var triggered bool
	if a.ConditionLogic == "OR" {
		for _, met := range conditionsMet {
			if met {
				triggered = true
				break
			}
		}
	} else {
		triggered = true
		for _, met := range conditionsMet {
			if !met {
				triggered = false
				break
			}
		}
	}

	results["triggered"] = triggered
	results["window_start"] = windowStart
	results["window_end"] = now

	return triggered, results, nil
}

func (e *Engine) evaluateCondition(operator string, value, threshold float64) bool {
	switch operator {
	case "gt":
		return value > threshold
	case "gte":
		return value >= threshold
	case "lt":
		return value < threshold
	case "lte":
		return value <= threshold
	case "eq":
		return value == threshold
	case "ne":
		return value != threshold
	default:
		return false
	}
}

// ShouldTrigger reports whether a's cooldown has elapsed since it last
// fired.
func (e *Engine) ShouldTrigger(a *Alert, now time.Time) bool {
	if a.LastTriggeredAt == nil {
		return true
	}

	cooldown := time.Duration(a.CooldownSeconds) * time.Second
	return now.After(a.LastTriggeredAt.Add(cooldown))
}
