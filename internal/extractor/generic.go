package extractor

// Generic returns the fallback strategy. It reports nothing for any content.
func Generic() Strategy {
	return StrategyFunc{ID: "generic", Fn: func(string) Partial { return Partial{} }}
}
