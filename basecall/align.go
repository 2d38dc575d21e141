package basecall

// alignment is the result of aligning the trailing-overlap call of one chunk
// (a) against the leading-overlap call of the next (b).
type alignment struct {
	// edits is the Levenshtein distance between a and b.
	edits int
	// identity is the fraction of aligned columns that match exactly.
	// Aligning two empty strings yields identity 1.
	identity float64
	// cutA and cutB are cut positions at the alignment midpoint: keeping
	// a[:cutA] followed by b[cutB:] represents every overlap base exactly
	// once.
	cutA, cutB int
	// ok is false when the distance exceeded the band, in which case only
	// edits' lower bound is meaningful.
	ok bool
}

const bigDist = 1 << 30

// alignOverlap computes a banded global alignment of a against b, bounded by
// maxEdits.  The band renders the DP cost proportional to
// max(len)*(2*maxEdits+1) instead of len(a)*len(b).
func alignOverlap(a, b string, maxEdits int) alignment {
	m, n := len(a), len(b)
	if m == 0 && n == 0 {
		return alignment{identity: 1, ok: true}
	}
	diff := m - n
	if diff < 0 {
		diff = -diff
	}
	if diff > maxEdits {
		return alignment{edits: diff}
	}
	band := maxEdits

	// Row-major (m+1) x (n+1) distance matrix; cells outside the band keep
	// bigDist.
	w := n + 1
	data := make([]int, (m+1)*w)
	for i := range data {
		data[i] = bigDist
	}
	for j := 0; j <= n && j <= band; j++ {
		data[j] = j
	}
	for i := 1; i <= m; i++ {
		jLo, jHi := i-band, i+band
		if jLo < 0 {
			jLo = 0
		}
		if jHi > n {
			jHi = n
		}
		for j := jLo; j <= jHi; j++ {
			if j == 0 {
				data[i*w] = i
				continue
			}
			best := data[(i-1)*w+j-1]
			if a[i-1] != b[j-1] {
				best++
			}
			if up := data[(i-1)*w+j] + 1; up < best {
				best = up
			}
			if left := data[i*w+j-1] + 1; left < best {
				best = left
			}
			data[i*w+j] = best
		}
	}
	edits := data[m*w+n]
	if edits > maxEdits {
		return alignment{edits: edits}
	}

	// Traceback from (m, n), recording the aligned column at each cell so
	// the midpoint cut can be located on the forward pass.
	type cell struct{ i, j int }
	path := make([]cell, 0, m+n)
	i, j := m, n
	for i > 0 || j > 0 {
		path = append(path, cell{i, j})
		switch {
		case i > 0 && j > 0 && data[(i-1)*w+j-1] != bigDist &&
			data[i*w+j] == data[(i-1)*w+j-1]+sub(a[i-1], b[j-1]):
			i, j = i-1, j-1
		case i > 0 && data[(i-1)*w+j] != bigDist && data[i*w+j] == data[(i-1)*w+j]+1:
			i--
		default:
			j--
		}
	}

	// path is reversed: path[columns-1] is the first aligned column.  Walk it
	// forward to count matching columns.
	columns := len(path)
	matches := 0
	prev := cell{0, 0}
	for k := columns - 1; k >= 0; k-- {
		cur := path[k]
		if cur.i == prev.i+1 && cur.j == prev.j+1 && a[cur.i-1] == b[cur.j-1] {
			matches++
		}
		prev = cur
	}
	// Cut at the midpoint column, splitting the overlap's contribution
	// between the two chunks.
	mid := cell{0, 0}
	if h := columns / 2; h > 0 {
		mid = path[columns-h]
	}

	r := alignment{
		edits:    edits,
		identity: float64(matches) / float64(columns),
		cutA:     mid.i,
		cutB:     mid.j,
		ok:       true,
	}
	return r
}

func sub(x, y byte) int {
	if x == y {
		return 0
	}
	return 1
}
