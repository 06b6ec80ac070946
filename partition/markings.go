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

package partition

import "math"

// attachMarkings assigns each marking rectangle placed on one of p's
// pages to the StaffRegion whose Y-range most overlaps it (ties broken
// by centre distance), per spec.md §4.3. A marking outside every
// stave's vertical range on its page becomes a page-level decoration on
// that page's first stave, preserving the stated policy unchanged
// (spec.md §9 Open Questions).
func attachMarkings(p *Part, markings []Rectangle, pageWidthPx map[int]int, displayWidth int) {
	if len(p.Regions) == 0 {
		return
	}
	byPage := make(map[int][]int) // page -> indices into p.Regions, in region order
	for i, r := range p.Regions {
		byPage[r.Page] = append(byPage[r.Page], i)
	}

	for _, m := range markings {
		if m.empty() {
			continue
		}
		indices, ok := byPage[m.Page]
		if !ok {
			continue
		}
		scale := backendScale(pageWidthPx[m.Page], displayWidth)
		top := float64(m.Y) * scale
		bottom := float64(m.Y+m.H) * scale
		centre := (top + bottom) / 2

		best := -1
		bestOverlap := 0.0
		bestDist := math.Inf(1)
		for _, idx := range indices {
			r := p.Regions[idx]
			overlap := math.Min(bottom, r.BottomY) - math.Max(top, r.TopY)
			if overlap < 0 {
				overlap = 0
			}
			dist := math.Abs(centre - r.centre())
			if overlap > bestOverlap || (overlap == bestOverlap && dist < bestDist) {
				best = idx
				bestOverlap = overlap
				bestDist = dist
			}
		}
		if best < 0 || bestOverlap <= 0 {
			// Out of range: attach as a page-level decoration on the
			// first stave encountered on that page.
			best = indices[0]
			overhang := math.Max(p.Regions[best].TopY-top, bottom-p.Regions[best].BottomY)
			if overhang < 0 {
				overhang = 0
			}
			if overhang > p.Regions[best].MarkingsOverhead {
				p.Regions[best].MarkingsOverhead = overhang
			}
			continue
		}

		overhang := math.Max(0, math.Max(p.Regions[best].TopY-top, bottom-p.Regions[best].BottomY))
		if overhang > p.Regions[best].MarkingsOverhead {
			p.Regions[best].MarkingsOverhead = overhang
		}
	}
}
