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

// marginFrac is the width of the left-margin strip scanned for the
// barline vertical signal, as a fraction of page width (spec.md §4.2
// Phase A: "a narrow left-margin vertical strip").
const marginFrac = 0.12

// lowSignalFrac is the fraction of the signal's maximum below which a
// row counts as a "low-signal" row.
const lowSignalFrac = 0.05

// barlineSignal sums dark pixels within the left-margin strip for every
// row, producing the Phase A "barline vertical signal".
func barlineSignal(b bitmap) []int {
	marginW := int(float64(b.w) * marginFrac)
	if marginW < 1 {
		marginW = 1
	}
	signal := make([]int, b.h)
	for y := 0; y < b.h; y++ {
		row := b.dark[y*b.w : y*b.w+marginW]
		n := 0
		for _, d := range row {
			if d {
				n++
			}
		}
		signal[y] = n
	}
	return signal
}

// lowSignalRun is a contiguous row range whose barline signal is at or
// below the low-signal threshold.
type lowSignalRun struct {
	top, bottom int // [top, bottom)
}

func findLowSignalRuns(signal []int, threshold int) []lowSignalRun {
	var runs []lowSignalRun
	inRun := false
	start := 0
	for y, v := range signal {
		low := v <= threshold
		if low && !inRun {
			inRun = true
			start = y
		} else if !low && inRun {
			inRun = false
			runs = append(runs, lowSignalRun{top: start, bottom: y})
		}
	}
	if inRun {
		runs = append(runs, lowSignalRun{top: start, bottom: len(signal)})
	}
	return runs
}

// mergeCloseRuns merges runs whose gap is smaller than minGap, bridging
// tapered barline ends (spec.md §4.2 Phase A).
func mergeCloseRuns(runs []lowSignalRun, minGap int) []lowSignalRun {
	if len(runs) == 0 {
		return runs
	}
	merged := []lowSignalRun{runs[0]}
	for _, r := range runs[1:] {
		last := &merged[len(merged)-1]
		if r.top-last.bottom < minGap {
			last.bottom = r.bottom
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

// segmentBands runs Phase A end to end: compute the barline signal,
// derive low-signal runs (dropping any that contain a staff-line peak,
// since those are intra-system gaps), merge close runs, and split the
// page into bands at the run midpoints. Falls back to one full-page band
// when no usable split is found.
func segmentBands(b bitmap, coarseStaveSpan float64, peakRows map[int]bool) []band {
	full := []band{{top: 0, bottom: b.h}}
	if b.h == 0 {
		return full
	}

	signal := barlineSignal(b)
	max := 0
	for _, v := range signal {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return full
	}
	threshold := int(float64(max) * lowSignalFrac)

	runs := findLowSignalRuns(signal, threshold)
	runs = dropPeakContainingRuns(runs, peakRows)

	minGap := int(coarseStaveSpan * 1.5)
	if minGap < 1 {
		minGap = 1
	}
	runs = mergeCloseRuns(runs, minGap)

	minBandHeight := int(coarseStaveSpan * 2)
	bands := splitAtRuns(b.h, runs)
	bands = dropShortBands(bands, minBandHeight)
	if len(bands) == 0 {
		return full
	}
	return bands
}

// dropPeakContainingRuns removes low-signal runs that contain a detected
// staff-line peak row — those are intra-system gaps (between staves of
// the same system), not between-system gaps.
func dropPeakContainingRuns(runs []lowSignalRun, peakRows map[int]bool) []lowSignalRun {
	if len(peakRows) == 0 {
		return runs
	}
	var out []lowSignalRun
	for _, r := range runs {
		contains := false
		for y := r.top; y < r.bottom; y++ {
			if peakRows[y] {
				contains = true
				break
			}
		}
		if !contains {
			out = append(out, r)
		}
	}
	return out
}

// splitAtRuns turns a set of between-system low-signal runs into bands
// covering the rest of the page, splitting at each run's midpoint.
func splitAtRuns(height int, runs []lowSignalRun) []band {
	if len(runs) == 0 {
		return nil
	}
	var bands []band
	cursor := 0
	for _, r := range runs {
		mid := (r.top + r.bottom) / 2
		if mid > cursor {
			bands = append(bands, band{top: cursor, bottom: mid})
		}
		cursor = mid
	}
	if cursor < height {
		bands = append(bands, band{top: cursor, bottom: height})
	}
	return bands
}

func dropShortBands(bands []band, minHeight int) []band {
	var out []band
	for _, b := range bands {
		if b.height() >= minHeight {
			out = append(out, b)
		}
	}
	return out
}
