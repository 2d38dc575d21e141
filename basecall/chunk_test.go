package basecall

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func testSignal(n int) []float32 {
	sig := make([]float32, n)
	for i := range sig {
		sig[i] = float32(i)
	}
	return sig
}

func TestChunkConfigErrors(t *testing.T) {
	r := &Read{ID: "r", Signal: testSignal(100)}
	for _, opts := range []Opts{
		{ChunkLen: 0, ChunkOverlap: 0},
		{ChunkLen: -5, ChunkOverlap: 0},
		{ChunkLen: 10, ChunkOverlap: 10},
		{ChunkLen: 10, ChunkOverlap: 11},
		{ChunkLen: 10, ChunkOverlap: -1},
	} {
		_, err := ChunkRead(r, opts)
		expect.EQ(t, err, ErrInvalidChunkConfig)
	}
	_, err := ChunkRead(&Read{ID: "empty"}, Opts{ChunkLen: 10, ChunkOverlap: 2})
	expect.EQ(t, err, ErrEmptySignal)
}

func TestChunkExample(t *testing.T) {
	// L=4000, V=400: a 10000-sample read yields 3 chunks with starts
	// [0, 3600, 7200], the last reflect-padded.
	sig := testSignal(10000)
	chunks, err := ChunkRead(&Read{ID: "r", Signal: sig}, Opts{ChunkLen: 4000, ChunkOverlap: 400})
	expect.NoError(t, err)
	expect.EQ(t, len(chunks), 3)
	for i, want := range []int{0, 3600, 7200} {
		expect.EQ(t, chunks[i].Start, want)
		expect.EQ(t, chunks[i].Index, i)
		expect.EQ(t, chunks[i].NumChunks, 3)
		expect.EQ(t, len(chunks[i].Signal), 4000)
	}
	expect.EQ(t, chunks[0].LeadingOverlap, 0)
	expect.EQ(t, chunks[1].LeadingOverlap, 400)
	expect.EQ(t, chunks[1].TrailingOverlap, 400)
	expect.EQ(t, chunks[2].TrailingOverlap, 0)
	expect.EQ(t, chunks[0].Pad, 0)
	expect.EQ(t, chunks[2].Pad, 1200)
	// The padded tail mirrors the signal around its last sample.
	expect.EQ(t, chunks[2].Signal[2799], sig[9999])
	expect.EQ(t, chunks[2].Signal[2800], sig[9998])
	expect.EQ(t, chunks[2].Signal[2801], sig[9997])
}

func TestChunkCoverage(t *testing.T) {
	// Keeping only the non-overlapping center of each chunk reproduces the
	// original signal exactly, for any valid (L, V).
	for _, tc := range []struct{ l, v, n int }{
		{10, 0, 100},
		{10, 4, 100},
		{10, 5, 103},
		{10, 9, 37},
		{64, 16, 64},
		{64, 16, 50},
		{7, 3, 1},
		{4000, 400, 10000},
	} {
		sig := testSignal(tc.n)
		chunks, err := ChunkRead(&Read{ID: "r", Signal: sig}, Opts{ChunkLen: tc.l, ChunkOverlap: tc.v})
		expect.NoError(t, err)
		var rebuilt []float32
		for i, c := range chunks {
			lo := 0
			if i > 0 {
				lo = c.LeadingOverlap / 2
			}
			hi := tc.l - c.Pad
			if i < len(chunks)-1 {
				hi = tc.l - c.TrailingOverlap + c.TrailingOverlap/2
			}
			rebuilt = append(rebuilt, c.Signal[lo:hi]...)
		}
		expect.EQ(t, rebuilt, sig, "l=%d v=%d n=%d", tc.l, tc.v, tc.n)

		// Chunk start invariant.
		for i, c := range chunks {
			expect.EQ(t, c.Start, i*(tc.l-tc.v))
			expect.EQ(t, len(c.Signal), tc.l)
		}
	}
}

func TestReflectPad(t *testing.T) {
	expect.EQ(t, ReflectPad([]float32{1, 2, 3}, 7), []float32{1, 2, 3, 2, 1, 2, 3})
	expect.EQ(t, ReflectPad([]float32{5}, 4), []float32{5, 5, 5, 5})
	expect.EQ(t, ReflectPad([]float32{1, 2}, 5), []float32{1, 2, 1, 2, 1})
	expect.EQ(t, ReflectPad([]float32{1, 2, 3}, 3), []float32{1, 2, 3})
}
