package llm

import (
	"sync"
	"time"
)

type modelPrice struct {
	InputPer1M  float64
	OutputPer1M float64
}

// USD per million tokens.
var modelPricing = map[string]modelPrice{
	"gpt-4o-mini":            {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4o":                 {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4-turbo":            {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":          {InputPer1M: 0.50, OutputPer1M: 1.50},
	"text-embedding-3-small": {InputPer1M: 0.02},
	"text-embedding-3-large": {InputPer1M: 0.13},
	"text-embedding-ada-002": {InputPer1M: 0.10},
}

func CalculateCost(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}

	inputCost := float64(promptTokens) / 1_000_000 * pricing.InputPer1M
	outputCost := float64(completionTokens) / 1_000_000 * pricing.OutputPer1M

	return inputCost + outputCost
}

// CostTracker tracks LLM API costs
type CostTracker struct {
	mu           sync.RWMutex
	totalCost    float64
	totalTokens  int64
	requestCount int64
	dailyCost    map[string]float64
	modelUsage   map[string]int64
}

func NewCostTracker() *CostTracker {
	return &CostTracker{
		dailyCost:  make(map[string]float64),
		modelUsage: make(map[string]int64),
	}
}

func (t *CostTracker) Track(model string, inputTokens, outputTokens int) float64 {
	cost := CalculateCost(model, inputTokens, outputTokens)

	t.mu.Lock()
	t.totalCost += cost
	t.totalTokens += int64(inputTokens + outputTokens)
	t.requestCount++

	today := time.Now().Format("2006-01-02")
	t.dailyCost[today] += cost
	t.modelUsage[model] += int64(inputTokens + outputTokens)
	t.mu.Unlock()

	return cost
}

func (t *CostTracker) GetStats() CostStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	usage := make(map[string]int64, len(t.modelUsage))
	for k, v := range t.modelUsage {
		usage[k] = v
	}

	return CostStats{
		TotalCost:    t.totalCost,
		TotalTokens:  t.totalTokens,
		RequestCount: t.requestCount,
		TodayCost:    t.dailyCost[time.Now().Format("2006-01-02")],
		ModelUsage:   usage,
		AvgCostPerRequest: func() float64 {
			if t.requestCount == 0 {
				return 0
			}
			return t.totalCost / float64(t.requestCount)
		}(),
	}
}

type CostStats struct {
	TotalCost         float64          `json:"total_cost"`
	TotalTokens       int64            `json:"total_tokens"`
	RequestCount      int64            `json:"request_count"`
	TodayCost         float64          `json:"today_cost"`
	ModelUsage        map[string]int64 `json:"model_usage"`
	AvgCostPerRequest float64          `json:"avg_cost_per_request"`
}
