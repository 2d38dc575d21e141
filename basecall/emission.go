package basecall

import (
	"context"
	"math"
)

// NumSymbols is the size of the decoding alphabet: the CTC blank plus the
// four bases, in that order.
const NumSymbols = 5

const blankSym = 0

var symBase = [NumSymbols]byte{'-', 'A', 'C', 'G', 'T'}

// EmissionMatrix is one chunk's inference output: an ordered sequence of
// per-timestep probability distributions over the decoding alphabet.  Row t
// occupies Probs[t*NumSymbols : (t+1)*NumSymbols] in blank, A, C, G, T order.
type EmissionMatrix struct {
	Steps int
	Probs []float32
}

// Row returns the distribution at timestep t.
func (m *EmissionMatrix) Row(t int) []float32 {
	return m.Probs[t*NumSymbols : (t+1)*NumSymbols]
}

// check validates the matrix shape and per-row probability mass.
func (m *EmissionMatrix) check(tol float64) error {
	if m.Steps <= 0 || len(m.Probs) != m.Steps*NumSymbols {
		return ErrMalformedEmissions
	}
	for t := 0; t < m.Steps; t++ {
		var sum float64
		for _, p := range m.Row(t) {
			sum += float64(p)
		}
		if math.Abs(sum-1.0) > tol {
			return ErrMalformedEmissions
		}
	}
	return nil
}

// Inferer is the external inference collaborator.  Infer submits one batch
// of equal-length chunk signals and returns one emission matrix per chunk,
// in batch order.  It is the only pipeline stage allowed to block on an
// external resource.
type Inferer interface {
	Infer(ctx context.Context, batch [][]float32) ([]EmissionMatrix, error)
}
