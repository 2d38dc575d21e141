package basecall

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/testutil/expect"
)

func TestAlignExactMatch(t *testing.T) {
	al := alignOverlap("ACGTACGT", "ACGTACGT", 2)
	expect.True(t, al.ok)
	expect.EQ(t, al.edits, 0)
	expect.EQ(t, al.identity, 1.0)
	expect.EQ(t, al.cutA, 4)
	expect.EQ(t, al.cutB, 4)
}

func TestAlignSubstitution(t *testing.T) {
	al := alignOverlap("ACGTACGT", "ACGAACGT", 2)
	expect.True(t, al.ok)
	expect.EQ(t, al.edits, 1)
	expect.EQ(t, al.identity, 7.0/8.0)
}

func TestAlignIndel(t *testing.T) {
	al := alignOverlap("ACGTACGT", "ACGACGT", 2)
	expect.True(t, al.ok)
	expect.EQ(t, al.edits, 1)
	// cutA bases of a plus the rest of b reconstructs a consistent overlap.
	joined := "ACGTACGT"[:al.cutA] + "ACGACGT"[al.cutB:]
	expect.True(t, len(joined) >= 7 && len(joined) <= 8)
}

func TestAlignBandExceeded(t *testing.T) {
	al := alignOverlap("AAAAAAAA", "CCCCCCCC", 3)
	expect.False(t, al.ok)

	// Length difference alone can exceed the band.
	al = alignOverlap("ACGTACGTACGT", "ACG", 3)
	expect.False(t, al.ok)
}

func TestAlignEmpty(t *testing.T) {
	al := alignOverlap("", "", 2)
	expect.True(t, al.ok)
	expect.EQ(t, al.identity, 1.0)
	expect.EQ(t, al.cutA, 0)
	expect.EQ(t, al.cutB, 0)

	al = alignOverlap("AC", "", 2)
	expect.True(t, al.ok)
	expect.EQ(t, al.edits, 2)
}

// TestAlignAgainstReference checks the banded distance against the matchr
// Levenshtein implementation on randomly mutated sequences.
func TestAlignAgainstReference(t *testing.T) {
	const bases = "ACGT"
	r := rand.New(rand.NewSource(1234))
	randSeq := func(n int) string {
		b := strings.Builder{}
		for i := 0; i < n; i++ {
			b.WriteByte(bases[r.Intn(4)])
		}
		return b.String()
	}
	mutate := func(s string, n int) string {
		b := []byte(s)
		for i := 0; i < n; i++ {
			switch pos := r.Intn(len(b)); r.Intn(3) {
			case 0:
				b[pos] = bases[r.Intn(4)]
			case 1:
				b = append(b[:pos], b[pos+1:]...)
			default:
				b = append(b[:pos], append([]byte{bases[r.Intn(4)]}, b[pos:]...)...)
			}
		}
		return string(b)
	}
	for iter := 0; iter < 200; iter++ {
		a := randSeq(10 + r.Intn(40))
		b := mutate(a, r.Intn(4))
		want := matchr.Levenshtein(a, b)
		al := alignOverlap(a, b, 12)
		if want <= 12 {
			expect.True(t, al.ok, "a=%s b=%s", a, b)
			expect.EQ(t, al.edits, want, "a=%s b=%s", a, b)
		}
	}
}
