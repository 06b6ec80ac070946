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

// bitmap is a binarised page: dark[y*w+x] is true for ink.
type bitmap struct {
	dark   []bool
	w, h   int
	darkN  int // total dark pixel count, used for the near-empty check
}

// binarize thresholds img with Otsu's method. Per spec.md §4.2, a fixed
// 128 threshold would do equally well for the downstream algorithm; Otsu
// is used because it additionally yields a natural "is this page blank"
// signal (an all-background histogram produces a degenerate threshold).
func binarize(img *image.Gray) bitmap {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	var hist [256]int
	for _, v := range img.Pix {
		hist[v]++
	}

	threshold, ok := otsuThreshold(hist[:], w*h)
	dark := make([]bool, w*h)
	n := 0
	if ok {
		for y := 0; y < h; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+w]
			for x, v := range row {
				if int(v) <= threshold {
					dark[y*w+x] = true
					n++
				}
			}
		}
	}
	return bitmap{dark: dark, w: w, h: h, darkN: n}
}

// otsuThreshold computes Otsu's optimal threshold. ok is false when the
// histogram is degenerate (every pixel the same value), signalling a
// blank or solid-fill page.
func otsuThreshold(hist []int, total int) (int, bool) {
	if total == 0 {
		return 0, false
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i * c)
	}

	var sumB, wB float64
	var best float64
	threshold := -1
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = t
		}
	}
	if threshold < 0 || best == 0 {
		return 0, false
	}
	return threshold, true
}

// isNearEmpty reports whether too little ink was found to attempt
// detection — spec.md §4.2's "binarisation yields a near-empty image"
// failure mode.
func (b bitmap) isNearEmpty() bool {
	return b.darkN < (b.w*b.h)/2000 // < 0.05%
}
