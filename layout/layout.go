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

// Package layout implements the LayoutRenderer component (spec.md
// §4.4): the two-pass A4 pagination algorithm and PDF emission for one
// Part.
package layout

import (
	"github.com/pkg/errors"

	"github.com/scoreforge/partbook/apierr"
	"github.com/scoreforge/partbook/partition"
	"github.com/scoreforge/partbook/pdfdoc"
)

// AvailableHeightPx is A4 height minus top/bottom margins at 300 DPI.
// TitleAreaPx is the fixed reserved strip at the top of page 1 when the
// Part has a header.
const (
	AvailableHeightPx = 3300
	TitleAreaPx       = 300
)

// Params are the per-Part layout parameters a user supplies or that
// default from PartitionPlanner's output (spec.md §3 "Layout
// parameters").
type Params struct {
	SpacingPx       float64
	Offsets         []float64 // additive perturbation per stave index
	PageBreaksAfter []int     // deduplicated on ingest, spec.md §9

	// DebugGuides draws a hairline at every stave boundary, an optional
	// proofing overlay gated behind this flag so normal output is unmarked.
	DebugGuides bool
}

// placedStave is one placed stave: its source region plus the computed
// rendering geometry.
type placedStave struct {
	region partition.StaffRegion
	page   int
	y      float64
	totalH float64
}

// pageAssignment is one page's stave list as built by Pass 1, before
// Pass 2 assigns final page indices.
type pageAssignment struct {
	staves []placedStave
}

// Plan runs Pass 1 (assignment) and Pass 2 (positioning) and returns the
// placed staves in Part order.
func Plan(p partition.Part, params Params) ([]placedStave, error) {
	if len(p.Regions) == 0 {
		return nil, apierr.ErrEmptyPart
	}

	breaks := dedupeInts(params.PageBreaksAfter)
	offsets := params.Offsets

	titleArea := 0.0
	if p.Header != nil {
		titleArea = TitleAreaPx
	}

	var pages []pageAssignment
	cur := pageAssignment{}
	y := titleArea

	for i, region := range p.Regions {
		totalH := region.ScaledHeight + region.MarkingsOverhead
		if totalH > AvailableHeightPx {
			return nil, errors.Wrapf(apierr.ErrLayoutOverflow, "stave %d height %v exceeds available height %v", i, totalH, AvailableHeightPx)
		}

		gap := 0.0
		if len(cur.staves) > 0 {
			gap = params.SpacingPx
			if i < len(offsets) {
				gap += offsets[i]
			}
		}

		if len(cur.staves) > 0 && y+gap+totalH > AvailableHeightPx {
			pages = append(pages, cur)
			cur = pageAssignment{}
			y = 0
			gap = 0
		}

		cur.staves = append(cur.staves, placedStave{region: region, y: y + gap, totalH: totalH})
		y += gap + totalH

		if breaks[i] {
			pages = append(pages, cur)
			cur = pageAssignment{}
			y = 0
		}
	}
	if len(cur.staves) > 0 {
		pages = append(pages, cur)
	}

	forced := make([]bool, len(pages))
	for idx := range breaks {
		pageIdx := pageIndexForStave(pages, idx)
		if pageIdx >= 0 {
			forced[pageIdx] = true
		}
	}

	var out []placedStave
	for pageIdx, pg := range pages {
		placed := pg.staves
		if forced[pageIdx] {
			placed = justify(placed, AvailableHeightPx)
		}
		for i := range placed {
			placed[i].page = pageIdx
		}
		out = append(out, placed...)
	}
	return out, nil
}

// justify redistributes the remaining space on a forced-break page
// evenly into the inter-stave gaps, so a short final page does not look
// ragged (spec.md §4.4 Pass 2).
func justify(staves []placedStave, available float64) []placedStave {
	if len(staves) < 2 {
		return staves
	}
	usedH := 0.0
	for _, s := range staves {
		usedH += s.totalH
	}
	remaining := available - usedH
	if remaining <= 0 {
		return staves
	}
	extraGap := remaining / float64(len(staves)-1)

	out := make([]placedStave, len(staves))
	y := 0.0
	for i, s := range staves {
		if i > 0 {
			y += extraGap
		}
		out[i] = s
		out[i].y = y
		y += s.totalH
	}
	return out
}

// PageCount runs Plan and returns the number of output pages it would
// produce, without requiring the caller to name the unexported placed-
// stave type.
func PageCount(p partition.Part, params Params) (int, error) {
	placed, err := Plan(p, params)
	if err != nil {
		return 0, err
	}
	return pageCount(placed), nil
}

// dedupeInts turns page_breaks_after into a set, keyed by stave index.
func dedupeInts(xs []int) map[int]bool {
	set := make(map[int]bool, len(xs))
	for _, x := range xs {
		set[x] = true
	}
	return set
}

func pageIndexForStave(pages []pageAssignment, staveIdx int) int {
	count := 0
	for pageIdx, pg := range pages {
		if staveIdx < count+len(pg.staves) {
			return pageIdx
		}
		count += len(pg.staves)
	}
	return -1
}

// pageCount returns the number of output pages a Plan result spans.
func pageCount(staves []placedStave) int {
	max := -1
	for _, s := range staves {
		if s.page > max {
			max = s.page
		}
	}
	return max + 1
}

// Render emits a PDF for p, laid out with params, reading stave pixels
// via pageRaster (page index, in backend coordinates → 8-bit grayscale
// pixels, width, height).
func Render(w pdfWriter, p partition.Part, params Params, pageRaster func(page int, topY, bottomY float64) ([]byte, int, int, error)) error {
	placed, err := Plan(p, params)
	if err != nil {
		return err
	}

	pages := pageCount(placed)
	outPages := make([]*pdfdoc.Page, pages)
	for i := 0; i < pages; i++ {
		pg, err := w.NewPage()
		if err != nil {
			return errors.Wrap(err, "layout: new page")
		}
		outPages[i] = pg
	}

	refWidthPt := pdfdoc.A4WidthPt - 2*marginPt
	for _, s := range placed {
		pix, srcW, srcH, err := pageRaster(s.region.Page, s.region.TopY, s.region.BottomY)
		if err != nil {
			return errors.Wrapf(err, "layout: crop stave on page %d", s.region.Page)
		}
		x := marginPt
		yPt := pdfdoc.A4HeightPt - marginPt - pxToPt(s.y) - pxToPt(s.totalH)
		hPt := pxToPt(s.totalH)
		if err := outPages[s.page].DrawGray(pix, srcW, srcH, x, yPt, refWidthPt, hPt); err != nil {
			return errors.Wrap(err, "layout: draw stave")
		}
		if params.DebugGuides {
			if err := outPages[s.page].Hairline(x, yPt, x+refWidthPt, yPt, 0.5); err != nil {
				return errors.Wrap(err, "layout: draw debug guide")
			}
		}
	}

	for _, pg := range outPages {
		if err := pg.Close(); err != nil {
			return errors.Wrap(err, "layout: close page")
		}
	}
	return nil
}

// marginPt is the top/bottom/left/right A4 margin, matching
// AvailableHeightPx at 300 DPI: (A4HeightPt/72*300 - 2*marginPx)==AvailableHeightPx.
const marginPt = (pdfdoc.A4HeightPt - AvailableHeightPx/300.0*pdfdoc.PointsPerInch) / 2

func pxToPt(px float64) float64 {
	return px / 300.0 * pdfdoc.PointsPerInch
}

// pdfWriter is the subset of *pdfdoc.Writer Render needs, kept as an
// interface so tests can exercise Plan without a real PDF backend.
type pdfWriter interface {
	NewPage() (*pdfdoc.Page, error)
}
