package pipeline

import (
	"time"

	"github.com/suhas-arun/bonito/basecall"
)

// Batch is one inference submission: chunks whose signals share a padded
// width.
type Batch struct {
	Chunks []basecall.Chunk
	// Width is the common signal width, in samples, after padding.
	Width int
}

// Signals assembles the padded signal slices handed to the inference
// backend, in chunk order.
func (b *Batch) Signals() [][]float32 {
	out := make([][]float32, len(b.Chunks))
	for i, c := range b.Chunks {
		sig := c.Signal
		if len(sig) < b.Width {
			sig = basecall.ReflectPad(sig, b.Width)
		}
		out[i] = sig
	}
	return out
}

type bucket struct {
	// minLen and maxLen bound the member signal lengths.  A chunk may only
	// join while maxLen-minLen stays within the slack, so padding to the
	// batch width never exceeds the slack.
	minLen, maxLen int
	chunks         []basecall.Chunk
	oldest         time.Time
}

// batcher groups incoming chunks into batches of a target size.  Chunks are
// bucketed by signal length so a batch never pads any chunk by more than
// slack samples.  A bucket is flushed when it reaches the target size, when
// its oldest chunk has waited maxWait, or at end of input.  The bounded out
// channel is the pipeline's backpressure point: a full downstream suspends
// batching, which in turn suspends the chunk producers.
type batcher struct {
	target  int
	slack   int
	maxWait time.Duration
	in      <-chan basecall.Chunk
	out     chan<- Batch
}

// run consumes the in channel until it closes, then flushes every residual
// bucket and closes out.  Returns the batching counters.
func (b *batcher) run() basecall.Stats {
	var (
		stats   basecall.Stats
		buckets []*bucket
	)
	defer close(b.out)
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	flush := func(i int) {
		bk := buckets[i]
		buckets = append(buckets[:i], buckets[i+1:]...)
		stats.Batches++
		if len(bk.chunks) < b.target {
			stats.PartialBatches++
		}
		b.out <- Batch{Chunks: bk.chunks, Width: bk.maxLen}
	}

	for {
		// Flush any bucket whose oldest chunk has waited long enough, and
		// arm the timeout for the next-expiring one.
		var timeout <-chan time.Time
		for len(buckets) > 0 {
			next := 0
			for i, bk := range buckets[1:] {
				if bk.oldest.Before(buckets[next].oldest) {
					next = i + 1
				}
			}
			d := b.maxWait - time.Since(buckets[next].oldest)
			if d > 0 {
				timer.Reset(d)
				timeout = timer.C
				break
			}
			flush(next)
		}

		select {
		case c, ok := <-b.in:
			if timeout != nil && !timer.Stop() {
				<-timer.C
			}
			if !ok {
				for len(buckets) > 0 {
					flush(0)
				}
				return stats
			}
			n := len(c.Signal)
			bi := -1
			for i, bk := range buckets {
				lo, hi := bk.minLen, bk.maxLen
				if n < lo {
					lo = n
				}
				if n > hi {
					hi = n
				}
				if hi-lo <= b.slack {
					bi = i
					break
				}
			}
			if bi < 0 {
				buckets = append(buckets, &bucket{minLen: n, maxLen: n, oldest: time.Now()})
				bi = len(buckets) - 1
			}
			bk := buckets[bi]
			if n < bk.minLen {
				bk.minLen = n
			}
			if n > bk.maxLen {
				bk.maxLen = n
			}
			bk.chunks = append(bk.chunks, c)
			if len(bk.chunks) >= b.target {
				flush(bi)
			}
		case <-timeout:
		}
	}
}
