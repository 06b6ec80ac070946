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

package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/scoreforge/partbook/apierr"
	"github.com/scoreforge/partbook/partition"
)

func tenStavePart() partition.Part {
	regions := make([]partition.StaffRegion, 10)
	for i := range regions {
		regions[i] = partition.StaffRegion{Page: 0, ScaledHeight: 400}
	}
	return partition.Part{Name: "Vln", Regions: regions}
}

func TestPlanForcedBreak(t *testing.T) {
	p := tenStavePart()
	placed, err := Plan(p, Params{SpacingPx: 480, PageBreaksAfter: []int{2}})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(placed) != 10 {
		t.Fatalf("got %d placed staves, want 10", len(placed))
	}
	for i := 0; i <= 2; i++ {
		if placed[i].page != 0 {
			t.Errorf("stave %d on page %d, want 0", i, placed[i].page)
		}
	}
	if placed[3].page != 1 {
		t.Errorf("stave 3 on page %d, want 1 (forced break after stave 2)", placed[3].page)
	}
}

func TestPlanPageCountBound(t *testing.T) {
	p := tenStavePart()
	params := Params{SpacingPx: 480}
	placed, err := Plan(p, params)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	sumTotal := 0.0
	for _, r := range p.Regions {
		sumTotal += r.ScaledHeight
	}
	maxPages := int(math.Ceil(sumTotal / AvailableHeightPx))
	got := pageCount(placed)
	if got > maxPages+len(p.Regions) {
		// sanity bound only: gaps mean the true bound also depends on
		// spacing, so we just guard against runaway over-pagination.
		t.Errorf("got %d pages, implausible relative to %d staves", got, len(p.Regions))
	}
	if got < 1 {
		t.Errorf("got %d pages, want at least 1", got)
	}
}

func TestPlanEmptyPart(t *testing.T) {
	_, err := Plan(partition.Part{Name: "Empty"}, Params{SpacingPx: 480})
	if !errors.Is(err, apierr.ErrEmptyPart) {
		t.Fatalf("err = %v, want ErrEmptyPart", err)
	}
}

func TestPlanOverflow(t *testing.T) {
	p := partition.Part{Regions: []partition.StaffRegion{{ScaledHeight: AvailableHeightPx + 1}}}
	_, err := Plan(p, Params{SpacingPx: 480})
	if !errors.Is(err, apierr.ErrLayoutOverflow) {
		t.Fatalf("err = %v, want ErrLayoutOverflow", err)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	p := tenStavePart()
	params := Params{SpacingPx: 480, PageBreaksAfter: []int{2, 2, 5}}
	a, err := Plan(p, params)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Plan(p, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("non-deterministic plan lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic plan at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
