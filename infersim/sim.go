// Package infersim provides a deterministic signal simulator and a matching
// inference backend.  A base is encoded as a short gap followed by a level
// plateau unique to the base; the backend classifies each sample back into a
// distribution peaked on the encoded symbol.  Together they let the decoding
// and stitching stages be exercised against known truth sequences without an
// accelerator.
package infersim

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/suhas-arun/bonito/basecall"
)

// DefaultSamplesPerBase is the signal samples emitted per base.
const DefaultSamplesPerBase = 8

// Base plateau levels, in pA-like arbitrary units.  The gap level sits below
// every base level so a plateau boundary is unambiguous.
const (
	gapLevel = 0.0
	levelA   = 20.0
	levelC   = 40.0
	levelG   = 60.0
	levelT   = 80.0
)

var baseLevels = map[byte]float32{'A': levelA, 'C': levelC, 'G': levelG, 'T': levelT}

// EncodeSignal renders seq as a square-wave signal: per base, a gap of
// samplesPerBase/4 samples followed by a plateau at the base's level.  The
// gap separates repeated bases so CTC collapse can recover them.
func EncodeSignal(seq string, samplesPerBase int) []float32 {
	gap := samplesPerBase / 4
	if gap < 1 {
		gap = 1
	}
	sig := make([]float32, 0, len(seq)*samplesPerBase)
	for i := 0; i < len(seq); i++ {
		level := baseLevels[seq[i]]
		for j := 0; j < gap; j++ {
			sig = append(sig, gapLevel)
		}
		for j := gap; j < samplesPerBase; j++ {
			sig = append(sig, level)
		}
	}
	return sig
}

// classify maps a sample to the nearest alphabet symbol: blank below half
// the lowest base level, otherwise the closest plateau.
func classify(v float32) int {
	if v < levelA/2 {
		return 0
	}
	best, bestDist := 1, abs32(v-levelA)
	for i, level := range [3]float32{levelC, levelG, levelT} {
		if d := abs32(v - level); d < bestDist {
			best, bestDist = i+2, d
		}
	}
	return best
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Backend is a basecall.Inferer that recovers emissions from simulated
// signal, one timestep per sample.  Safe for concurrent use.
type Backend struct {
	// PeakProb is the probability mass placed on the classified symbol; the
	// remainder is spread evenly over the other symbols.
	PeakProb float64

	failNext int32
}

// NewBackend returns a backend with a 0.9 peak probability.
func NewBackend() *Backend {
	return &Backend{PeakProb: 0.9}
}

// FailNext makes the next n Infer calls return basecall.ErrInference.  With
// n=2 a batch fails both its initial submission and its retry.
func (b *Backend) FailNext(n int) {
	atomic.StoreInt32(&b.failNext, int32(n))
}

// Infer implements basecall.Inferer.
func (b *Backend) Infer(_ context.Context, batch [][]float32) ([]basecall.EmissionMatrix, error) {
	for {
		n := atomic.LoadInt32(&b.failNext)
		if n <= 0 {
			break
		}
		if atomic.CompareAndSwapInt32(&b.failNext, n, n-1) {
			return nil, basecall.ErrInference
		}
	}
	rest := float32((1 - b.PeakProb) / (basecall.NumSymbols - 1))
	peak := float32(b.PeakProb)
	out := make([]basecall.EmissionMatrix, len(batch))
	for i, sig := range batch {
		m := basecall.EmissionMatrix{
			Steps: len(sig),
			Probs: make([]float32, len(sig)*basecall.NumSymbols),
		}
		for t, v := range sig {
			row := m.Probs[t*basecall.NumSymbols : (t+1)*basecall.NumSymbols]
			for j := range row {
				row[j] = rest
			}
			row[classify(v)] = peak
		}
		out[i] = m
	}
	return out, nil
}

const bases = "ACGT"

// RandomSeq draws a uniform base sequence of length n.
func RandomSeq(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = bases[r.Intn(4)]
	}
	return string(b)
}

// GenerateRead builds a read with a fresh id whose signal encodes a random
// truth sequence of numBases bases.
func GenerateRead(r *rand.Rand, numBases, samplesPerBase int) (*basecall.Read, string) {
	truth := RandomSeq(r, numBases)
	read := &basecall.Read{
		ID:      uuid.New().String(),
		Channel: r.Intn(512),
		Start:   r.Int63n(1 << 40),
		Signal:  EncodeSignal(truth, samplesPerBase),
	}
	return read, truth
}
