package rag

import "strings"

// splitSeparators, tried in order: paragraph, line, word, then a hard cut.
var splitSeparators = []string{"\n\n", "\n", " ", ""}

// SplitText splits text into chunks of at most size runes, preferring
// paragraph and line boundaries, with roughly overlap runes carried from
// the tail of each chunk into the next.
func SplitText(text string, size, overlap int) []string {
	if overlap >= size {
		overlap = size / 2
	}
	return splitRecursive(text, size, overlap, splitSeparators)
}

func splitRecursive(text string, size, overlap int, separators []string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len([]rune(trimmed)) <= size {
		return []string{trimmed}
	}

	sep := separators[0]
	rest := separators[1:]

	if sep == "" {
		return splitFixed(trimmed, size, overlap)
	}
	if !strings.Contains(trimmed, sep) {
		return splitRecursive(trimmed, size, overlap, rest)
	}

	var chunks []string
	var current []rune

	flush := func() {
		if s := strings.TrimSpace(string(current)); s != "" {
			chunks = append(chunks, s)
		}
		// Seed the next chunk with the tail of this one.
		if overlap > 0 && len(current) > overlap {
			current = append([]rune(nil), current[len(current)-overlap:]...)
		} else {
			current = current[:0]
		}
	}

	for _, part := range strings.Split(trimmed, sep) {
		runes := []rune(part)

		if len(runes) > size {
			// Oversized part: emit what we have, then recurse with the
			// finer separators.
			flush()
			current = current[:0]
			chunks = append(chunks, splitRecursive(part, size, overlap, rest)...)
			continue
		}

		if len(current)+len(runes)+len(sep) > size && len(current) > 0 {
			flush()
		}
		if len(current) > 0 {
			current = append(current, []rune(sep)...)
		}
		current = append(current, runes...)
	}

	if s := strings.TrimSpace(string(current)); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// splitFixed cuts text into fixed windows stepping size-overlap runes.
func splitFixed(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if step < 1 {
		step = size
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
