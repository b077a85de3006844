package llm

// modelPrice is USD per one million tokens.
type modelPrice struct {
	Input  float64
	Output float64
}

// pricing covers the models the pipeline is configured to use. Unknown
// models estimate to zero; callers flag that in the cost record detail.
var pricing = map[string]modelPrice{
	"o3":      {Input: 2.00, Output: 8.00},
	"o3-mini": {Input: 1.00, Output: 4.00},
	"o4-mini": {Input: 1.10, Output: 4.40},
}

// KnownModel reports whether the pricing table covers the model.
func KnownModel(model string) bool {
	_, ok := pricing[model]
	return ok
}

// EstimateCost returns the estimated USD cost for a call. Reasoning tokens
// bill as output tokens and are already included in the output count
// reported by the service.
func EstimateCost(model string, usage Usage) float64 {
	price, ok := pricing[model]
	if !ok {
		return 0
	}
	const million = 1_000_000
	return float64(usage.InputTokens)/million*price.Input +
		float64(usage.OutputTokens)/million*price.Output
}
