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

import "math"

// peakStddevK is the "k" in "mean + k·stddev" (spec.md §4.2 Phase B).
const peakStddevK = 1.0

// gapTolerance is how far a cluster's successive peak-gaps may diverge
// from each other and still count as "approximately equidistant".
const gapTolerance = 0.30

// horizontalProjection sums dark pixels across a band's full width, row
// by row, within the backend page bitmap.
func horizontalProjection(b bitmap, bd band) []int {
	h := bd.height()
	proj := make([]int, h)
	for y := 0; y < h; y++ {
		row := b.dark[(bd.top+y)*b.w : (bd.top+y)*b.w+b.w]
		n := 0
		for _, d := range row {
			if d {
				n++
			}
		}
		proj[y] = n
	}
	return proj
}

// findPeaks locates local maxima above mean+k·stddev, at least minSep
// rows apart, returning row offsets relative to the projection's start.
func findPeaks(proj []int, minSep int) []int {
	if len(proj) == 0 {
		return nil
	}
	mean, stddev := meanStddev(proj)
	threshold := mean + peakStddevK*stddev

	var candidates []int
	for y, v := range proj {
		if float64(v) <= threshold {
			continue
		}
		isMax := true
		for d := -minSep; d <= minSep; d++ {
			j := y + d
			if j < 0 || j >= len(proj) || j == y {
				continue
			}
			if proj[j] > v {
				isMax = false
				break
			}
		}
		if isMax {
			candidates = append(candidates, y)
		}
	}
	return dedupeClosePeaks(candidates, minSep)
}

// dedupeClosePeaks collapses runs of candidate peaks at most minSep apart
// into their midpoint, avoiding duplicate detections on a flat-topped
// maximum.
func dedupeClosePeaks(candidates []int, minSep int) []int {
	if len(candidates) == 0 {
		return nil
	}
	var out []int
	runStart := candidates[0]
	runEnd := candidates[0]
	for _, c := range candidates[1:] {
		if c-runEnd <= minSep {
			runEnd = c
			continue
		}
		out = append(out, (runStart+runEnd)/2)
		runStart, runEnd = c, c
	}
	out = append(out, (runStart+runEnd)/2)
	return out
}

func meanStddev(xs []int) (mean, stddev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range xs {
		sum += float64(v)
	}
	mean = sum / float64(len(xs))
	var variance float64
	for _, v := range xs {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}

// clusterStaves groups peaks into staves of 5 approximately-equidistant
// lines, applying the squint rescue pass (spec.md §4.2 Phase B) when a
// strict pass yields only an "almost-stave". Returns stave candidates
// with Y-coordinates relative to the band (caller offsets by band.top).
func clusterStaves(peaks []int, tol float64) []staveCandidate {
	var out []staveCandidate
	i := 0
	for i < len(peaks) {
		cluster, consumed := greedyCluster(peaks[i:], tol)
		if len(cluster) >= 5 {
			out = append(out, staveCandidate{
				topY:      float64(cluster[0]),
				bottomY:   float64(cluster[len(cluster)-1]),
				peakCount: len(cluster),
			})
			i += consumed
			continue
		}
		if len(cluster) == 4 || (len(cluster) == 5 && consumed < len(peaks[i:])) {
			// squint rescue: relax tolerance once and retry from the same
			// start point.
			rescued, rescuedConsumed := greedyCluster(peaks[i:], tol*2)
			if len(rescued) >= 5 {
				out = append(out, staveCandidate{
					topY:      float64(rescued[0]),
					bottomY:   float64(rescued[len(rescued)-1]),
					peakCount: len(rescued),
				})
				i += rescuedConsumed
				continue
			}
		}
		i++
	}
	return out
}

// greedyCluster grows a cluster from peaks[0], accepting successive
// peaks while the new gap stays within tol of the running average gap,
// capped at 5 peaks (one stave). Returns the cluster and how many input
// peaks were consumed (at least 1).
func greedyCluster(peaks []int, tol float64) (cluster []int, consumed int) {
	if len(peaks) == 0 {
		return nil, 0
	}
	cluster = []int{peaks[0]}
	var avgGap float64
	n := 1
	for n < len(peaks) && len(cluster) < 5 {
		gap := float64(peaks[n] - cluster[len(cluster)-1])
		if len(cluster) == 1 {
			cluster = append(cluster, peaks[n])
			avgGap = gap
			n++
			continue
		}
		if math.Abs(gap-avgGap) <= tol*avgGap {
			cluster = append(cluster, peaks[n])
			avgGap = (avgGap*float64(len(cluster)-2) + gap) / float64(len(cluster)-1)
			n++
			continue
		}
		break
	}
	return cluster, n
}

// detectStavesInBand runs the full Phase B pipeline for one band,
// returning stave candidates in page-native Y coordinates.
func detectStavesInBand(b bitmap, bd band, bandIndex int, expectedLineGap float64) []staveCandidate {
	proj := horizontalProjection(b, bd)
	minSep := int(expectedLineGap / 2)
	if minSep < 1 {
		minSep = 1
	}
	peaks := findPeaks(proj, minSep)
	staves := clusterStaves(peaks, gapTolerance)
	for i := range staves {
		staves[i].topY += float64(bd.top)
		staves[i].bottomY += float64(bd.top)
		staves[i].bandIndex = bandIndex
	}
	return staves
}

// peakRowSet runs a coarse, whole-page Phase B pass used only to tell
// Phase A which rows are staff-line peaks, so low-signal runs that
// straddle a peak (intra-system gaps) are not mistaken for system gaps.
func peakRowSet(b bitmap, expectedLineGap float64) map[int]bool {
	full := band{top: 0, bottom: b.h}
	proj := horizontalProjection(b, full)
	minSep := int(expectedLineGap / 2)
	if minSep < 1 {
		minSep = 1
	}
	peaks := findPeaks(proj, minSep)
	set := make(map[int]bool, len(peaks))
	for _, p := range peaks {
		set[p] = true
	}
	return set
}
