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

// Package detect implements the StaffDetector component (spec.md §4.2):
// locating staves and systems on a single rasterised page with a
// projection-profile algorithm, and emitting a confidence score rather
// than failing outright on adversarial input.
package detect

// Result is the StaffDetector's output for one page, already scaled into
// the caller's requested display-pixel space.
type Result struct {
	Dividers    []float64 // ascending Y-coordinates
	SystemFlags []bool    // len(SystemFlags) == len(Dividers)
	StripNames  []string  // len == len(Dividers)-1, always empty strings
	Confidence  float64   // [0,1]
}

// band is one candidate system-band: a contiguous row range of the page,
// in backend-native pixel coordinates.
type band struct {
	top, bottom int // [top, bottom)
}

func (b band) height() int { return b.bottom - b.top }

// staveCandidate is one detected 5-line stave, in backend-native page-Y
// coordinates (already offset by the band it was found in).
type staveCandidate struct {
	topY, bottomY float64
	peakCount     int
	bandIndex     int
}

func (s staveCandidate) centre() float64 { return (s.topY + s.bottomY) / 2 }

// system is an assembled group of staves sharing a system boundary, plus
// the outcome of barline confirmation.
type system struct {
	staves     []staveCandidate
	confirmed  bool
	barlineX   int
	bandTop    int // row range used to search for the barline
	bandBottom int
}
