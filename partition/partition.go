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

// Package partition implements the PartitionPlanner component (spec.md
// §4.3): turning per-page, user-confirmed divider data into a
// deterministic, ordered list of Parts.
package partition

import (
	"sort"
	"strings"
)

// Rectangle is a display-pixel bounding box on one page, matching the
// wire schema of spec.md §6.
type Rectangle struct {
	Page          int
	X, Y, W, H int
}

func (r Rectangle) empty() bool { return r.W <= 0 || r.H <= 0 }

// PageDividers is one page's user-confirmed DividerSet (spec.md §3).
type PageDividers struct {
	Dividers    []float64
	SystemFlags []bool
	StripNames  []string
}

// StaffRegion is an immutable pointer into a page, in backend-pixel
// coordinates.
type StaffRegion struct {
	Page            int
	TopY, BottomY   float64
	ScaledHeight    float64
	MarkingsOverhead float64
}

func (s StaffRegion) height() float64 { return s.BottomY - s.TopY }
func (s StaffRegion) centre() float64 { return (s.TopY + s.BottomY) / 2 }

// Part is an ordered list of StaffRegions sharing an instrument name.
type Part struct {
	Name               string
	Regions            []StaffRegion
	ReferenceHeight    float64 // median source stave height
	DefaultSpacingPx   float64
	Header             *StaffRegion // cropped from the user's header rectangle, if any
}

// Input is everything PartitionPlanner needs for one partition() call
// (spec.md §6).
type Input struct {
	// PageWidthPx is each page's backend pixel width, keyed by page
	// index, needed to convert the display-pixel coordinates below into
	// backend-pixel space.
	PageWidthPx map[int]int
	DisplayWidth int
	Pages        map[int]PageDividers
	Header       *Rectangle
	Markings     []Rectangle
}

// liveStrip is one strip surviving the dead-gap filter, tagged with its
// page and first-encountered order.
type liveStrip struct {
	page      int
	order     int // position within the page, for deterministic ordering
	name      string
	region    StaffRegion
}

// Plan runs the full PartitionPlanner algorithm and returns Parts in
// first-encountered order (spec.md §4.3 "Determinism").
func Plan(in Input) []Part {
	pageOrder := sortedPageIndices(in.Pages)

	var strips []liveStrip
	for _, page := range pageOrder {
		dividers := in.Pages[page]
		scale := backendScale(in.PageWidthPx[page], in.DisplayWidth)
		strips = append(strips, stripToRegions(page, dividers, scale)...)
	}

	groups, order := groupByName(strips)

	scale0 := backendScale(firstPageWidth(in), in.DisplayWidth)
	var header *StaffRegion
	if in.Header != nil && !in.Header.empty() {
		h := rectToRegion(*in.Header, scale0)
		header = &h
	}

	parts := make([]Part, 0, len(order))
	for _, name := range order {
		regions := groups[name]
		p := Part{
			Name:    name,
			Regions: regionsOf(regions),
			Header:  header,
		}
		p.ReferenceHeight = medianHeight(p.Regions)
		p.DefaultSpacingPx = 1.2 * p.ReferenceHeight
		attachMarkings(&p, in.Markings, in.PageWidthPx, in.DisplayWidth)
		parts = append(parts, p)
	}
	return parts
}

func sortedPageIndices(pages map[int]PageDividers) []int {
	idx := make([]int, 0, len(pages))
	for p := range pages {
		idx = append(idx, p)
	}
	sort.Ints(idx)
	return idx
}

func firstPageWidth(in Input) int {
	pages := sortedPageIndices(in.Pages)
	if len(pages) == 0 {
		return in.DisplayWidth
	}
	return in.PageWidthPx[pages[0]]
}

// backendScale returns the display→backend scale factor (spec.md §4.3
// "Coordinate normalisation"): page.width_px / display_width.
func backendScale(pageWidthPx, displayWidth int) float64 {
	if displayWidth <= 0 {
		return 1
	}
	return float64(pageWidthPx) / float64(displayWidth)
}

// stripToRegions walks one page's divider pairs, skipping dead strips
// (spec.md §4.3 "Strip-to-region mapping"): a pair is dead when the
// upper divider's successor (divider j+1) is flagged a system boundary.
func stripToRegions(page int, d PageDividers, scale float64) []liveStrip {
	var out []liveStrip
	for j := 0; j+1 < len(d.Dividers); j++ {
		if j+1 < len(d.SystemFlags) && d.SystemFlags[j+1] {
			continue
		}
		name := ""
		if j < len(d.StripNames) {
			name = strings.TrimSpace(d.StripNames[j])
		}
		if name == "" {
			continue
		}
		region := StaffRegion{
			Page:   page,
			TopY:   d.Dividers[j] * scale,
			BottomY: d.Dividers[j+1] * scale,
		}
		region.ScaledHeight = region.height()
		out = append(out, liveStrip{page: page, order: j, name: name, region: region})
	}
	return out
}

// groupByName groups live strips by name, preserving first-encountered
// page/strip order within each group and returning group names in
// first-encountered order overall.
func groupByName(strips []liveStrip) (map[string][]liveStrip, []string) {
	groups := make(map[string][]liveStrip)
	var order []string
	for _, s := range strips {
		if _, ok := groups[s.name]; !ok {
			order = append(order, s.name)
		}
		groups[s.name] = append(groups[s.name], s)
	}
	return groups, order
}

func regionsOf(strips []liveStrip) []StaffRegion {
	out := make([]StaffRegion, len(strips))
	for i, s := range strips {
		out[i] = s.region
	}
	return out
}

func medianHeight(regions []StaffRegion) float64 {
	if len(regions) == 0 {
		return 0
	}
	heights := make([]float64, len(regions))
	for i, r := range regions {
		heights[i] = r.height()
	}
	sort.Float64s(heights)
	mid := len(heights) / 2
	if len(heights)%2 == 1 {
		return heights[mid]
	}
	return (heights[mid-1] + heights[mid]) / 2
}

func rectToRegion(r Rectangle, scale float64) StaffRegion {
	return StaffRegion{
		Page:    r.Page,
		TopY:    float64(r.Y) * scale,
		BottomY: float64(r.Y+r.H) * scale,
	}
}
