// github.com/scoreforge/partbook - orchestral score part-book pipeline
// Copyright (C) 2026  partbook authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package detect

// Confidence sub-score weights (spec.md §4.2 Phase D). Tuning knobs, not
// contracts (spec.md §9 Open Questions).
const (
	weightBarlineFraction = 0.50
	weightGapConsistency  = 0.25
	weightStaveQuality    = 0.25
)

// confidence blends the three Phase D sub-scores into a single [0,1]
// value.
func confidence(systems []system) float64 {
	if len(systems) == 0 {
		return 0
	}

	barline := barlineFraction(systems)
	gap := gapConsistency(systems)
	stave := staveQuality(systems)

	c := weightBarlineFraction*barline + weightGapConsistency*gap + weightStaveQuality*stave
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

func barlineFraction(systems []system) float64 {
	confirmed := 0
	for _, s := range systems {
		if s.confirmed {
			confirmed++
		}
	}
	return float64(confirmed) / float64(len(systems))
}

// gapConsistency is 1 minus the coefficient of variation of inter-system
// gaps, clipped to [0,1]. A page with 0 or 1 systems has no gaps to
// measure and is treated as perfectly consistent.
func gapConsistency(systems []system) float64 {
	if len(systems) < 2 {
		return 1
	}
	gaps := make([]int, 0, len(systems)-1)
	for i := 1; i < len(systems); i++ {
		gaps = append(gaps, systems[i].bandTop-systems[i-1].bandBottom)
	}
	mean, stddev := meanStddevInts(gaps)
	if mean <= 0 {
		return 0
	}
	cv := stddev / mean
	score := 1 - cv
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func meanStddevInts(xs []int) (mean, stddev float64) {
	fs := make([]int, len(xs))
	copy(fs, xs)
	return meanStddev(fs)
}

// staveQuality is 1 minus the orphan penalty: the fraction of staves
// that are orphans (fewer than 5 peaks, or the sole stave in their
// system).
func staveQuality(systems []system) float64 {
	total := 0
	orphans := 0
	for _, sys := range systems {
		total += len(sys.staves)
		for _, st := range sys.staves {
			if st.peakCount < 5 || len(sys.staves) == 1 {
				orphans++
			}
		}
	}
	if total == 0 {
		return 0
	}
	penalty := float64(orphans) / float64(total)
	return 1 - penalty
}
