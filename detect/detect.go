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

import "image"

// defaultLineGap is used when a page's coarse projection finds no peaks
// at all to estimate an inter-line distance from — an empty or
// near-empty page, which is caught separately anyway.
const defaultLineGap = 10.0

// Detect runs the full four-phase StaffDetector algorithm (spec.md
// §4.2) against a single rasterised page, returning dividers scaled
// into the requested display-pixel width. It never returns an error:
// on any failure mode it returns an empty result with confidence 0, per
// spec.md's "never raise" contract.
func Detect(img *image.Gray, displayWidth int) Result {
	b := binarize(img)
	if b.isNearEmpty() {
		return Result{}
	}

	lineGap := estimateLineGap(b)
	coarseStaveSpan := lineGap * 4

	peakRows := peakRowSet(b, lineGap)
	bands := segmentBands(b, coarseStaveSpan, peakRows)

	var staves []staveCandidate
	for i, bd := range bands {
		staves = append(staves, detectStavesInBand(b, bd, i, lineGap)...)
	}
	if len(staves) == 0 {
		return Result{}
	}

	groups := assembleSystems(staves, len(bands))
	systems := buildSystems(groups, b)
	if len(systems) == 0 {
		return Result{}
	}

	dividers, flags := placeDividers(systems, bandGapFunc(systems))
	conf := confidence(systems)

	scale := 1.0
	if b.w > 0 && displayWidth > 0 {
		scale = float64(displayWidth) / float64(b.w)
	}
	scaledDividers := make([]float64, len(dividers))
	for i, y := range dividers {
		scaledDividers[i] = roundTo(y * scale)
	}

	stripNames := make([]string, 0)
	if len(scaledDividers) > 1 {
		stripNames = make([]string, len(scaledDividers)-1)
	}

	return Result{
		Dividers:    scaledDividers,
		SystemFlags: flags,
		StripNames:  stripNames,
		Confidence:  conf,
	}
}

// bandGapFunc returns, for each system index, the vertical gap between
// that system's stave extent and the previous system's (or the page top
// for the first system) — used by placeDividers to size the divider
// margin.
func bandGapFunc(systems []system) func(int) float64 {
	return func(si int) float64 {
		if si == 0 {
			// The page-top margin has no preceding system to bound it, so
			// a first system sitting low on the page would otherwise grow
			// this gap without limit. Clamp it to the system's own band
			// height, a scale tied to the detected geometry rather than
			// the system's absolute position on the page.
			gap := float64(systems[0].bandTop)
			if maxGap := float64(systems[0].bandBottom - systems[0].bandTop); gap > maxGap {
				gap = maxGap
			}
			return gap
		}
		gap := float64(systems[si].bandTop - systems[si-1].bandBottom)
		if gap < 0 {
			gap = 0
		}
		return gap
	}
}

// estimateLineGap runs a coarse, whole-page peak pass (minimum
// separation of 1 row) and returns the median gap between consecutive
// peaks, used as the Phase A "preliminary coarse projection" estimate
// of inter-line distance.
func estimateLineGap(b bitmap) float64 {
	full := band{top: 0, bottom: b.h}
	proj := horizontalProjection(b, full)
	peaks := findPeaks(proj, 1)
	if len(peaks) < 2 {
		return defaultLineGap
	}
	gaps := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		gaps = append(gaps, float64(peaks[i]-peaks[i-1]))
	}
	gap := medianFloat(gaps)
	if gap <= 0 {
		return defaultLineGap
	}
	return gap
}

// roundTo rounds a float64 to the nearest integer value, still returned
// as a float64 — spec.md §9: round once, at the last moment.
func roundTo(v float64) float64 {
	if v < 0 {
		return float64(int(v - 0.5))
	}
	return float64(int(v + 0.5))
}
