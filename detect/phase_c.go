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

import "sort"

// openingRunFrac is the fraction of a system's height the vertical
// opening rescan must find a continuous inky run across, to confirm a
// barline (spec.md §4.2 Phase C).
const openingRunFrac = 0.80

// jitterStrip is the half-width, in pixels, of the column neighbourhood
// rescanned around the candidate barline X.
const jitterStrip = 3

// assembleSystems groups stave candidates into systems (Phase C). It
// first tries the balance check (every band has the same, ≥2, stave
// count); otherwise it falls back to cluster_by_gap on stave centres.
func assembleSystems(staves []staveCandidate, bandCount int) [][]staveCandidate {
	if len(staves) == 0 {
		return nil
	}
	if bandCount > 0 {
		if groups, ok := balanceCheck(staves, bandCount); ok {
			return groups
		}
	}
	return clusterByGap(staves)
}

// balanceCheck groups staves by band index when every band holds the
// same, ≥2, stave count.
func balanceCheck(staves []staveCandidate, bandCount int) ([][]staveCandidate, bool) {
	counts := make(map[int]int)
	for _, s := range staves {
		counts[s.bandIndex]++
	}
	if len(counts) == 0 {
		return nil, false
	}
	var want int
	first := true
	for _, n := range counts {
		if first {
			want = n
			first = false
			continue
		}
		if n != want {
			return nil, false
		}
	}
	if want < 2 || len(counts) != bandCount {
		return nil, false
	}

	groups := make([][]staveCandidate, bandCount)
	for _, s := range staves {
		groups[s.bandIndex] = append(groups[s.bandIndex], s)
	}
	for _, g := range groups {
		if len(g) == 0 {
			return nil, false
		}
	}
	return groups, true
}

// clusterByGap splits staves (sorted by centre Y) wherever the gap to
// the next stave centre exceeds 2× the median gap.
func clusterByGap(staves []staveCandidate) [][]staveCandidate {
	sorted := append([]staveCandidate(nil), staves...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].centre() < sorted[j].centre() })

	if len(sorted) == 1 {
		return [][]staveCandidate{sorted}
	}

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].centre()-sorted[i-1].centre())
	}
	median := medianFloat(gaps)

	var groups [][]staveCandidate
	cur := []staveCandidate{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].centre() - sorted[i-1].centre()
		if median > 0 && gap > 2*median {
			groups = append(groups, cur)
			cur = nil
		}
		cur = append(cur, sorted[i])
	}
	groups = append(groups, cur)
	return groups
}

func medianFloat(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// confirmBarline locates the leftmost dense vertical column cluster
// within [top,bottom) and confirms it if a jittered vertical-opening
// rescan finds a continuous inky run spanning ≥ openingRunFrac of the
// system's height.
func confirmBarline(b bitmap, top, bottom int) (x int, confirmed bool) {
	height := bottom - top
	if height <= 0 {
		return 0, false
	}

	colDark := make([]int, b.w)
	for y := top; y < bottom; y++ {
		row := b.dark[y*b.w : y*b.w+b.w]
		for x, d := range row {
			if d {
				colDark[x]++
			}
		}
	}

	threshold := int(float64(height) * 0.5)
	leftmost := -1
	for x, n := range colDark {
		if n >= threshold {
			leftmost = x
			break
		}
	}
	if leftmost < 0 {
		return 0, false
	}

	lo := leftmost - jitterStrip
	hi := leftmost + jitterStrip
	if lo < 0 {
		lo = 0
	}
	if hi >= b.w {
		hi = b.w - 1
	}

	bestRun := 0
	for x := lo; x <= hi; x++ {
		run := longestVerticalRun(b, x, top, bottom)
		if run > bestRun {
			bestRun = run
		}
	}
	required := int(float64(height) * openingRunFrac)
	return leftmost, bestRun >= required
}

// longestVerticalRun returns the longest contiguous run of dark pixels
// in column x across [top,bottom), tolerating single-pixel gaps to
// simulate a morphological vertical opening on a jittery scanned line.
func longestVerticalRun(b bitmap, x, top, bottom int) int {
	best, cur, gap := 0, 0, 0
	for y := top; y < bottom; y++ {
		if b.dark[y*b.w+x] {
			cur++
			gap = 0
			if cur > best {
				best = cur
			}
			continue
		}
		gap++
		if gap > 1 {
			cur = 0
		}
	}
	return best
}
