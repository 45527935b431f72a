package classify

// ratio computes a normalized similarity between two strings: twice the
// number of matching bytes (over all non-overlapping longest matching
// blocks) divided by the combined length. This mirrors the classic
// sequence-matcher ratio so thresholds tuned against historical runs keep
// their meaning.
func ratio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := matchingBytes(a, b, 0, len(a), 0, len(b))
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// matchingBytes sums the sizes of all matching blocks: it finds the
// longest match in the window, then recurses on the pieces to its left and
// right.
func matchingBytes(a, b string, alo, ahi, blo, bhi int) int {
	i, j, size := longestMatch(a, b, alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingBytes(a, b, alo, i, blo, j)
	total += matchingBytes(a, b, i+size, ahi, j+size, bhi)
	return total
}

// longestMatch finds the longest block where a[i:i+size] == b[j:j+size]
// within the given windows, preferring the earliest position on ties.
func longestMatch(a, b string, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for j := blo; j < bhi; j++ {
			if a[i] != b[j] {
				continue
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
