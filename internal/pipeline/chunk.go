package pipeline

// DefaultChunkSize is the longest run of text sent to speech synthesis.
const DefaultChunkSize = 100

// Chunk splits text into runs of at most size runes. A run ends after the
// last sentence terminator inside the window, or at the window edge when
// there is none. Joining the runs gives back text unchanged.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		if len(runes) <= size {
			out = append(out, string(runes))
			break
		}

		cut := size
		for i := size - 1; i >= 0; i-- {
			if isTerminator(runes[i]) {
				cut = i + 1
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
