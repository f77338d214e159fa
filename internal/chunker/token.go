package chunker

// EstimateTokens gives a rough token count using the ~4 chars/token
// heuristic. This is intentionally simple — exact tokenization is not
// required for chunk sizing.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
