package basecall

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

var stitchTestOpts = Opts{
	ChunkLen:        20,
	ChunkOverlap:    8,
	MinJoinIdentity: 0.8,
	HardCutIdentity: 0.5,
}

// tcall builds a chunk call with one emission step per sample and uniform
// confidence.
func tcall(index, numChunks int, seq string, steps []int32, lead, trail int) ChunkCall {
	return tcallConf(index, numChunks, seq, steps, lead, trail, -0.1)
}

func tcallConf(index, numChunks int, seq string, steps []int32, lead, trail int, conf float32) ChunkCall {
	c := ChunkCall{
		ReadID:          "r",
		Index:           index,
		NumChunks:       numChunks,
		Seq:             seq,
		Steps:           steps,
		NumSteps:        20,
		SamplesPerStep:  1,
		LeadingOverlap:  lead,
		TrailingOverlap: trail,
	}
	c.Conf = make([]float32, len(seq))
	for i := range c.Conf {
		c.Conf[i] = conf
	}
	return c
}

func TestStitchExactOverlap(t *testing.T) {
	s := NewStitcher(stitchTestOpts)
	calls := []ChunkCall{
		tcall(0, 2, "GGGGACGT", []int32{2, 5, 8, 11, 12, 14, 16, 18}, 0, 8),
		tcall(1, 2, "ACGTTTTT", []int32{1, 3, 5, 7, 9, 12, 15, 18}, 8, 0),
	}
	asm := s.Stitch(calls)
	// The shared "ACGT" appears exactly once, cut at the match midpoint.
	expect.EQ(t, string(asm.Seq), "GGGGACGTTTTT")
	expect.EQ(t, len(asm.Conf), len(asm.Seq))
	expect.EQ(t, len(asm.Joins), 1)
	expect.EQ(t, asm.Joins[0].Identity, 1.0)
	expect.False(t, asm.Joins[0].LowConfidence)
	expect.False(t, asm.Incomplete)
}

func TestStitchOutOfOrderInput(t *testing.T) {
	s := NewStitcher(stitchTestOpts)
	calls := []ChunkCall{
		tcall(1, 2, "ACGTTTTT", []int32{1, 3, 5, 7, 9, 12, 15, 18}, 8, 0),
		tcall(0, 2, "GGGGACGT", []int32{2, 5, 8, 11, 12, 14, 16, 18}, 0, 8),
	}
	asm := s.Stitch(calls)
	expect.EQ(t, string(asm.Seq), "GGGGACGTTTTT")
}

func TestStitchHardCutFallback(t *testing.T) {
	s := NewStitcher(stitchTestOpts)
	// Overlap calls disagree beyond repair: deterministic hard cut at the
	// nominal overlap midpoint, flagged low confidence.
	calls := []ChunkCall{
		tcall(0, 2, "GGGGACGT", []int32{2, 5, 8, 11, 12, 14, 16, 18}, 0, 8),
		tcall(1, 2, "TTTTCCCC", []int32{1, 3, 5, 7, 9, 12, 15, 18}, 8, 0),
	}
	asm := s.Stitch(calls)
	// Left keeps overlap bases before step 16, right keeps from step 4 on.
	expect.EQ(t, string(asm.Seq), "GGGGAC"+"TTCCCC")
	expect.EQ(t, len(asm.Joins), 1)
	expect.True(t, asm.Joins[0].LowConfidence)
	expect.False(t, asm.Incomplete)
}

func TestStitchAmbiguousPrefersConfidentSide(t *testing.T) {
	s := NewStitcher(stitchTestOpts)
	left := "GGGGACGT"
	rightSteps := []int32{1, 3, 5, 7, 9, 12, 15, 18}
	leftSteps := []int32{2, 5, 8, 11, 12, 14, 16, 18}

	// Identity 0.75 lands between HardCutIdentity and MinJoinIdentity; the
	// left side decoded the overlap with higher confidence, so its version
	// of the overlap wins.
	calls := []ChunkCall{
		tcallConf(0, 2, left, leftSteps, 0, 8, -0.05),
		tcallConf(1, 2, "ACTTCCCC", rightSteps, 8, 0, -0.5),
	}
	asm := s.Stitch(calls)
	expect.EQ(t, string(asm.Seq), "GGGGACGT"+"CCCC")

	// Same calls with confidence reversed: the right side wins the overlap.
	calls = []ChunkCall{
		tcallConf(0, 2, left, leftSteps, 0, 8, -0.5),
		tcallConf(1, 2, "ACTTCCCC", rightSteps, 8, 0, -0.05),
	}
	asm = s.Stitch(calls)
	expect.EQ(t, string(asm.Seq), "GGGG"+"ACTTCCCC")
}

func TestStitchFailedChunkGap(t *testing.T) {
	s := NewStitcher(stitchTestOpts)
	calls := []ChunkCall{
		tcall(0, 3, "GGGGACGT", []int32{2, 5, 8, 11, 12, 14, 16, 18}, 0, 8),
		{ReadID: "r", Index: 1, NumChunks: 3, Failed: true},
		tcall(2, 3, "ACGTTTTT", []int32{1, 3, 5, 7, 9, 12, 15, 18}, 8, 0),
	}
	asm := s.Stitch(calls)
	// The surviving segments are disjoint in the signal; they concatenate
	// without alignment and the read is marked incomplete.
	expect.EQ(t, string(asm.Seq), "GGGGACGT"+"ACGTTTTT")
	expect.True(t, asm.Incomplete)
	expect.EQ(t, len(asm.Joins), 1)
	expect.EQ(t, asm.Joins[0].Identity, 0.0)
}

func TestStitchSingleChunk(t *testing.T) {
	s := NewStitcher(stitchTestOpts)
	asm := s.Stitch([]ChunkCall{tcall(0, 1, "ACGT", []int32{1, 5, 9, 13}, 0, 0)})
	expect.EQ(t, string(asm.Seq), "ACGT")
	expect.EQ(t, len(asm.Joins), 0)
}

func TestStitchNoOverlap(t *testing.T) {
	opts := stitchTestOpts
	opts.ChunkOverlap = 0
	s := NewStitcher(opts)
	calls := []ChunkCall{
		tcall(0, 2, "ACGT", []int32{2, 6, 10, 14}, 0, 0),
		tcall(1, 2, "TTGG", []int32{2, 6, 10, 14}, 0, 0),
	}
	asm := s.Stitch(calls)
	expect.EQ(t, string(asm.Seq), "ACGTTTGG")
	expect.EQ(t, len(asm.Joins), 1)
	expect.EQ(t, asm.Joins[0].Identity, 1.0)
	expect.False(t, asm.Joins[0].LowConfidence)
}

func TestStitchDuplicateIndexPanics(t *testing.T) {
	s := NewStitcher(stitchTestOpts)
	defer func() {
		if recover() == nil {
			t.Error("duplicate chunk index did not panic")
		}
	}()
	s.Stitch([]ChunkCall{
		tcall(0, 2, "ACGT", []int32{2, 5, 8, 11}, 0, 8),
		tcall(0, 2, "ACGT", []int32{2, 5, 8, 11}, 0, 8),
	})
}
