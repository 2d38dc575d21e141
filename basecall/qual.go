package basecall

import "math"

// QualityScorer maps decoder confidence (and, at joins, stitching agreement)
// to clamped Phred-style quality values.  The transform is a fixed monotone
// function of its inputs, so identical assemblies always score identically.
type QualityScorer struct {
	minQ, maxQ byte
}

// NewQualityScorer creates a scorer clamping to [opts.QualMin, opts.QualMax].
func NewQualityScorer(opts Opts) *QualityScorer {
	lo, hi := opts.QualMin, opts.QualMax
	if lo < 0 {
		lo = 0
	}
	if hi > 93 {
		hi = 93
	}
	if hi < lo {
		hi = lo
	}
	return &QualityScorer{minQ: byte(lo), maxQ: byte(hi)}
}

// Score derives one quality value per assembled base.  A base's confidence
// is treated as a log posterior approximation: q = -10*log10(1 - e^conf).
// Bases flanking a join are additionally scaled by the join's alignment
// identity, so a hard-cut join drags its neighborhood down to the floor.
func (q *QualityScorer) Score(asm Assembly) []byte {
	quals := make([]byte, len(asm.Seq))
	for i, conf := range asm.Conf {
		quals[i] = q.clamp(phred(float64(conf)))
	}
	for _, j := range asm.Joins {
		for _, pos := range [2]int{j.Pos - 1, j.Pos} {
			if pos < 0 || pos >= len(quals) {
				continue
			}
			quals[pos] = q.clamp(float64(quals[pos]) * j.Identity)
		}
	}
	return quals
}

func (q *QualityScorer) clamp(v float64) byte {
	if v < float64(q.minQ) {
		return q.minQ
	}
	if v > float64(q.maxQ) {
		return q.maxQ
	}
	return byte(v)
}

// phred converts a log-probability to a Phred-style score.
func phred(logp float64) float64 {
	perr := 1 - math.Exp(logp)
	if perr < 1e-10 {
		perr = 1e-10
	}
	return -10 * math.Log10(perr)
}
