package dispatcher

// chunk splits tokens into consecutive slices of at most size elements,
// preserving order. The returned slices share tokens' backing array.
func chunk(tokens []string, size int) [][]string {
	if size <= 0 || len(tokens) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		batches = append(batches, tokens[start:end:end])
	}
	return batches
}
