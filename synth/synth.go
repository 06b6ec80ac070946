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

// Package synth builds synthetic score-page rasters for the detector's
// tests, matching spec.md §8's end-to-end
// scenarios (equal staves, multi-system pages, blank pages). Every
// stroke it draws is an axis-aligned straight line, so it paints
// directly into the destination image.Gray rather than driving a
// general vector rasterizer for curves, joins, caps and dashing it
// never needs.
package synth

import "image"

// Stave describes one 5-line stave by the Y of its top line.
type Stave struct {
	TopY float64
}

// System is a group of staves sharing one barline.
type System struct {
	Staves   []Stave
	BarlineX float64 // 0 disables the barline for this system
}

// Params controls the geometry of drawn staff lines and barlines.
type Params struct {
	LineSpacing  float64 // vertical distance between adjacent lines of one stave
	LineWidth    float64 // stroke width of a staff line
	BarlineWidth float64
	MarginFrac   float64 // fraction of width left blank on each side of staff lines
}

// DefaultParams matches spec.md §8 scenario 1/2's construction.
func DefaultParams() Params {
	return Params{LineSpacing: 40, LineWidth: 3, BarlineWidth: 4, MarginFrac: 0.05}
}

// Render draws systems of staves plus barlines onto a width×height
// grayscale canvas (white=255, black=0), the exact format rasterimage
// produces from a decoded PDF page.
func Render(width, height int, systems []System, p Params) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	x0 := float64(width) * p.MarginFrac
	x1 := float64(width) * (1 - p.MarginFrac)

	for _, sys := range systems {
		for _, stave := range sys.Staves {
			for line := 0; line < 5; line++ {
				y := stave.TopY + float64(line)*p.LineSpacing
				strokeHorizontal(img, x0, x1, y, p.LineWidth)
			}
		}
		if sys.BarlineX > 0 && len(sys.Staves) > 0 {
			top := sys.Staves[0].TopY
			bottom := sys.Staves[len(sys.Staves)-1].TopY + 4*p.LineSpacing
			strokeVertical(img, sys.BarlineX, top, bottom, p.BarlineWidth)
		}
	}
	return img
}

// strokeHorizontal darkens the rows spanning [y-width/2, y+width/2)
// across columns [x0,x1) of img, clipping to its bounds.
func strokeHorizontal(img *image.Gray, x0, x1, y, width float64) {
	xStart, xEnd := clampCols(img, x0, x1)
	if xStart >= xEnd {
		return
	}
	yStart, yEnd := spanRows(img, y, width)
	for row := yStart; row < yEnd; row++ {
		paintRow(img, row, xStart, xEnd)
	}
}

// strokeVertical darkens the columns spanning [x-width/2, x+width/2)
// across rows [y0,y1) of img, clipping to its bounds.
func strokeVertical(img *image.Gray, x, y0, y1, width float64) {
	yStart, yEnd := clampRows(img, y0, y1)
	if yStart >= yEnd {
		return
	}
	xStart, xEnd := spanCols(img, x, width)
	for row := yStart; row < yEnd; row++ {
		paintRow(img, row, xStart, xEnd)
	}
}

func spanRows(img *image.Gray, centre, width float64) (int, int) {
	return clampRows(img, centre-width/2, centre+width/2)
}

func spanCols(img *image.Gray, centre, width float64) (int, int) {
	return clampCols(img, centre-width/2, centre+width/2)
}

func clampRows(img *image.Gray, y0, y1 float64) (int, int) {
	start := int(y0 + 0.5)
	end := int(y1 + 0.5)
	if start < 0 {
		start = 0
	}
	if end > img.Rect.Dy() {
		end = img.Rect.Dy()
	}
	return start, end
}

func clampCols(img *image.Gray, x0, x1 float64) (int, int) {
	start := int(x0 + 0.5)
	end := int(x1 + 0.5)
	if start < 0 {
		start = 0
	}
	if end > img.Rect.Dx() {
		end = img.Rect.Dx()
	}
	return start, end
}

func paintRow(img *image.Gray, row, xStart, xEnd int) {
	if row < 0 || row >= img.Rect.Dy() {
		return
	}
	base := row * img.Stride
	for x := xStart; x < xEnd; x++ {
		img.Pix[base+x] = 0
	}
}
