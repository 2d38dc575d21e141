package basecall

import (
	"math"
	"sort"
)

// ChunkCall is the decoded call for one chunk: the base sequence plus, per
// base, the confidence and the emission timestep it was committed at.  The
// timesteps are what lets the stitcher locate overlap regions in call space.
type ChunkCall struct {
	ReadID    string
	Index     int
	NumChunks int
	// Seq is the called base sequence (ACGT only, no blanks).
	Seq string
	// Conf[i] is the beam's path log-probability normalized by sequence
	// length at the time Seq[i] was committed.  Always <= 0.
	Conf []float32
	// Steps[i] is the emission timestep Seq[i] was committed at.
	Steps []int32
	// NumSteps is the timestep count of the emission matrix after trimming
	// the reflect-padded region.
	NumSteps int
	// SamplesPerStep is the inference downsampling factor for this chunk.
	SamplesPerStep int
	// LeadingOverlap and TrailingOverlap are copied from the chunk, in
	// signal samples.
	LeadingOverlap  int
	TrailingOverlap int
	// Failed marks a chunk whose inference or decoding failed.  Seq is empty
	// and the owning read is emitted incomplete.
	Failed bool
}

// beam is one candidate partial sequence during decoding.
type beam struct {
	seq string
	// last is the most recent path symbol (possibly blank); a base extends
	// the sequence only if it differs from it.
	last  uint8
	logp  float64
	conf  []float32
	steps []int32
}

const noSym = uint8(255)

// Decoder turns emission matrices into chunk calls with CTC-style beam
// search.  It keeps per-call scratch state and is thread compatible: create
// one per worker.
type Decoder struct {
	beamWidth int
	rowSumTol float64

	beams, next []beam
}

// NewDecoder creates a decoder.  beamWidth and rowSumTol should be copied
// from the counterparts in Opts.
func NewDecoder(beamWidth int, rowSumTol float64) *Decoder {
	if beamWidth < 1 {
		beamWidth = 1
	}
	return &Decoder{beamWidth: beamWidth, rowSumTol: rowSumTol}
}

// Decode maps one chunk's emission matrix to a ChunkCall.  It fails only on
// a malformed matrix; a low-confidence chunk still yields the best available
// beam.  Identical inputs always yield identical calls.
func (d *Decoder) Decode(c Chunk, em *EmissionMatrix) (ChunkCall, error) {
	call := ChunkCall{
		ReadID:          c.ReadID,
		Index:           c.Index,
		NumChunks:       c.NumChunks,
		LeadingOverlap:  c.LeadingOverlap,
		TrailingOverlap: c.TrailingOverlap,
	}
	if err := em.check(d.rowSumTol); err != nil {
		return call, err
	}

	d.beams = append(d.beams[:0], beam{last: noSym})
	for t := 0; t < em.Steps; t++ {
		row := em.Row(t)
		d.next = d.next[:0]
		for _, b := range d.beams {
			for s := uint8(0); s < NumSymbols; s++ {
				lp := b.logp + logProb(row[s])
				nb := beam{seq: b.seq, last: s, logp: lp, conf: b.conf, steps: b.steps}
				if s != blankSym && s != b.last {
					nb.seq = b.seq + string(symBase[s])
					nb.conf = appendCopy32(b.conf, float32(lp/float64(len(nb.seq))))
					nb.steps = appendCopyI32(b.steps, int32(t))
				}
				d.next = mergeBeam(d.next, nb)
			}
		}
		sortBeams(d.next)
		if len(d.next) > d.beamWidth {
			d.next = d.next[:d.beamWidth]
		}
		d.beams, d.next = d.next, d.beams
	}
	sortBeams(d.beams)
	best := d.beams[0]

	// Bases committed inside the reflect-padded tail are artifacts of
	// padding, not signal; trim them before stitching.
	steps := em.Steps
	spStep := len(c.Signal) / em.Steps
	if spStep < 1 {
		spStep = 1
	}
	if c.Pad > 0 {
		valid := len(c.Signal) - c.Pad
		steps = (valid + spStep - 1) / spStep
		n := len(best.seq)
		for n > 0 && best.steps[n-1] >= int32(steps) {
			n--
		}
		best.seq = best.seq[:n]
		best.conf = best.conf[:n]
		best.steps = best.steps[:n]
	}
	call.Seq = best.seq
	call.Conf = best.conf
	call.Steps = best.steps
	call.NumSteps = steps
	call.SamplesPerStep = spStep
	return call, nil
}

// mergeBeam adds nb to beams, folding it into an existing entry with the
// same (seq, last) state.  The surviving entry keeps the higher path
// probability; equal scores keep the incumbent, so insertion order (and
// hence the result) is deterministic.
func mergeBeam(beams []beam, nb beam) []beam {
	for i := range beams {
		if beams[i].last == nb.last && beams[i].seq == nb.seq {
			if nb.logp > beams[i].logp {
				beams[i] = nb
			}
			return beams
		}
	}
	return append(beams, nb)
}

// sortBeams orders candidates by descending score; ties prefer the shorter
// sequence, then lexicographic order, then the path symbol, so pruning is
// deterministic across runs and threads.
func sortBeams(beams []beam) {
	sort.Slice(beams, func(i, j int) bool {
		bi, bj := &beams[i], &beams[j]
		if bi.logp != bj.logp {
			return bi.logp > bj.logp
		}
		if len(bi.seq) != len(bj.seq) {
			return len(bi.seq) < len(bj.seq)
		}
		if bi.seq != bj.seq {
			return bi.seq < bj.seq
		}
		return bi.last < bj.last
	})
}

// minProb floors emission probabilities so a zero entry stays a finite (if
// hopeless) score instead of poisoning every path through it.
const minProb = 1e-30

func logProb(p float32) float64 {
	if p < minProb {
		return math.Log(minProb)
	}
	return math.Log(float64(p))
}

func appendCopy32(s []float32, v float32) []float32 {
	out := make([]float32, len(s)+1)
	copy(out, s)
	out[len(s)] = v
	return out
}

func appendCopyI32(s []int32, v int32) []int32 {
	out := make([]int32, len(s)+1)
	copy(out, s)
	out[len(s)] = v
	return out
}
