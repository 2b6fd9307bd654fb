package llm

import "strings"

// Token pricing per 1M tokens (USD).
var pricing = map[string]modelPrice{
	// OpenAI
	"gpt-4o":        {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
	"gpt-4.1":       {Input: 2.00, Output: 8.00},
	"gpt-4.1-mini":  {Input: 0.40, Output: 1.60},
	"gpt-4.1-nano":  {Input: 0.10, Output: 0.40},
	"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},

	// Gemini
	"gemini-2.0-flash":      {Input: 0.10, Output: 0.40},
	"gemini-2.0-flash-lite": {Input: 0.075, Output: 0.30},
	"gemini-2.5-flash":      {Input: 0.30, Output: 2.50},
	"gemini-1.5-flash":      {Input: 0.075, Output: 0.30},

	// Claude
	"claude-3-5-haiku-20241022": {Input: 0.80, Output: 4.00},
	"claude-3-5-sonnet":         {Input: 3.00, Output: 15.00},
	"claude-sonnet-4":           {Input: 3.00, Output: 15.00},

	// MiniMax
	"MiniMax-M2.5": {Input: 1.10, Output: 4.40},
	"MiniMax-M2":   {Input: 0.50, Output: 2.00},
}

type modelPrice struct {
	Input  float64 // per 1M input tokens
	Output float64 // per 1M output tokens
}

// EstimateCost returns the estimated cost in USD for the given model and token counts.
// Dated model snapshots ("gpt-4o-mini-2024-07-18") are priced as the longest
// known model name they start with.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	p, ok := pricing[model]
	if !ok {
		best := ""
		for name := range pricing {
			if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
				best = name
			}
		}
		if best == "" {
			return 0
		}
		p = pricing[best]
	}
	return (float64(tokensIn) * p.Input / 1_000_000) + (float64(tokensOut) * p.Output / 1_000_000)
}
