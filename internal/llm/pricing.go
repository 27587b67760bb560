package llm

// modelRate holds per-million-token USD prices for one model.
type modelRate struct {
	inputPerMTok  float64
	outputPerMTok float64
}

// rates reflect Gemini API list prices. Unknown models fall back to the
// standard-tier rate so cost is overestimated rather than silently zero.
var rates = map[string]modelRate{
	"gemini-2.5-flash-lite": {inputPerMTok: 0.10, outputPerMTok: 0.40},
	"gemini-2.5-flash":      {inputPerMTok: 0.30, outputPerMTok: 2.50},
	"gemini-2.5-pro":        {inputPerMTok: 1.25, outputPerMTok: 10.00},
}

var fallbackRate = modelRate{inputPerMTok: 0.30, outputPerMTok: 2.50}

// Cost converts a usage record into dollars for the given model.
func Cost(model string, usage Usage) float64 {
	rate, ok := rates[model]
	if !ok {
		rate = fallbackRate
	}
	return float64(usage.TokensIn)/1e6*rate.inputPerMTok +
		float64(usage.TokensOut)/1e6*rate.outputPerMTok
}
