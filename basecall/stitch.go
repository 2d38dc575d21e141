package basecall

import (
	"sort"

	"github.com/grailbio/base/log"
)

// Join records how one chunk boundary was resolved.
type Join struct {
	// Pos is the index in the assembled sequence of the first base
	// contributed by the right-hand chunk.
	Pos int
	// Identity is the overlap alignment identity (0 for a gap left by a
	// failed chunk).
	Identity float64
	// LowConfidence marks a join that fell back to a hard cut.
	LowConfidence bool
}

// Assembly is a stitched read before quality scoring: the full base
// sequence, per-base decoder confidence, and the joins that produced it.
type Assembly struct {
	Seq        []byte
	Conf       []float32
	Joins      []Join
	Incomplete bool
}

// Stitcher reassembles the ordered chunk calls of one read into a single
// contiguous call, resolving overlap regions by alignment.  It can be used
// for many reads in sequence.  Thread compatible.
type Stitcher struct {
	minJoinIdentity float64
	hardCutIdentity float64
	maxJoinEdits    int
}

// NewStitcher creates a new stitcher from the join options.
func NewStitcher(opts Opts) *Stitcher {
	return &Stitcher{
		minJoinIdentity: opts.MinJoinIdentity,
		hardCutIdentity: opts.HardCutIdentity,
		maxJoinEdits:    opts.MaxJoinEdits,
	}
}

// Stitch merges the calls of one read.  calls may arrive in any order and
// must contain every chunk index exactly once; a duplicate or missing index
// is a caller bug and panics.  Failed entries yield gaps and an incomplete
// assembly rather than an error.  Stitching proceeds strictly left to right,
// so a given input always produces the same assembly.
func (s *Stitcher) Stitch(calls []ChunkCall) Assembly {
	sort.Slice(calls, func(i, j int) bool { return calls[i].Index < calls[j].Index })
	for i := range calls {
		if calls[i].Index != i {
			log.Panicf("read %s: chunk indices are not a permutation of [0,%d): found index %d at rank %d",
				calls[i].ReadID, len(calls), calls[i].Index, i)
		}
	}

	var (
		asm  Assembly
		prev *ChunkCall
		// asm.Seq[prevStart] corresponds to prev.Seq[prevSkip]; the first
		// prevSkip bases of prev fell on the left side of the last cut.
		prevStart, prevSkip int
	)
	for i := range calls {
		c := &calls[i]
		if c.Failed {
			asm.Incomplete = true
			continue
		}
		switch {
		case prev == nil:
			prevStart, prevSkip = 0, 0
			asm.Seq = append(asm.Seq, c.Seq...)
			asm.Conf = append(asm.Conf, c.Conf...)
		case c.Index != prev.Index+1:
			// One or more chunks between prev and c failed, so the two call
			// regions are disjoint in the signal: concatenate.
			asm.Joins = append(asm.Joins, Join{Pos: len(asm.Seq)})
			prevStart, prevSkip = len(asm.Seq), 0
			asm.Seq = append(asm.Seq, c.Seq...)
			asm.Conf = append(asm.Conf, c.Conf...)
		default:
			prevStart, prevSkip = s.join(&asm, prev, prevStart, prevSkip, c)
		}
		prev = c
	}
	return asm
}

// overlapSteps converts the overlap length from signal samples to emission
// timesteps of the given call.
func overlapSteps(c *ChunkCall, samples int) int {
	return samples / c.SamplesPerStep
}

// join resolves the boundary between prev (already appended to asm) and cur,
// and appends cur's bases.  Returns the (start, skip) bookkeeping for cur.
// No base of the overlap region is ever duplicated or dropped: each aligned
// column contributes exactly once, from one side of the cut.
func (s *Stitcher) join(asm *Assembly, prev *ChunkCall, prevStart, prevSkip int, cur *ChunkCall) (int, int) {
	// Trailing-overlap call of prev: bases committed in the last V samples.
	tailStep := int32(prev.NumSteps - overlapSteps(prev, prev.TrailingOverlap))
	pa := len(prev.Seq)
	for pa > 0 && prev.Steps[pa-1] >= tailStep {
		pa--
	}
	if pa < prevSkip {
		// The leading cut already consumed part of the trailing overlap
		// region (only possible when 2V approaches L).
		pa = prevSkip
	}
	la := prev.Seq[pa:]
	laStart := prevStart + (pa - prevSkip) // position of la[0] in asm.Seq

	// Leading-overlap call of cur: bases committed in the first V samples.
	headStep := int32(overlapSteps(cur, cur.LeadingOverlap))
	qb := 0
	for qb < len(cur.Seq) && cur.Steps[qb] < headStep {
		qb++
	}
	rb := cur.Seq[:qb]

	maxEdits := s.maxJoinEdits
	if maxEdits == 0 {
		maxEdits = (len(la) + len(rb)) / 4
		if maxEdits < 1 {
			maxEdits = 1
		}
	}

	al := alignOverlap(la, rb, maxEdits)
	var keepA, skipB int
	join := Join{Identity: al.identity}
	switch {
	case al.ok && al.identity >= s.minJoinIdentity:
		keepA, skipB = al.cutA, al.cutB
	case al.ok && al.identity >= s.hardCutIdentity:
		// Ambiguous match: keep the whole overlap from whichever side
		// decoded it with higher confidence.
		if meanConf(asm.Conf[laStart:]) >= meanConf(cur.Conf[:qb]) {
			keepA, skipB = len(la), len(rb)
		} else {
			keepA, skipB = 0, 0
		}
	default:
		// No acceptable alignment: deterministic hard cut at the nominal
		// overlap midpoint.
		join.LowConfidence = true
		halfA := int32(prev.NumSteps - overlapSteps(prev, prev.TrailingOverlap)/2)
		keepA = len(la)
		for keepA > 0 && prev.Steps[pa+keepA-1] >= halfA {
			keepA--
		}
		halfB := int32(overlapSteps(cur, cur.LeadingOverlap) / 2)
		skipB = 0
		for skipB < qb && cur.Steps[skipB] < halfB {
			skipB++
		}
	}

	cut := laStart + keepA
	asm.Seq = asm.Seq[:cut]
	asm.Conf = asm.Conf[:cut]
	join.Pos = cut
	asm.Joins = append(asm.Joins, join)
	asm.Seq = append(asm.Seq, cur.Seq[skipB:]...)
	asm.Conf = append(asm.Conf, cur.Conf[skipB:]...)
	return cut, skipB
}

func meanConf(conf []float32) float64 {
	if len(conf) == 0 {
		return 0
	}
	var sum float64
	for _, c := range conf {
		sum += float64(c)
	}
	return sum / float64(len(conf))
}
