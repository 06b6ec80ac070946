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

import (
	"image"
	"math"
	"reflect"
	"testing"

	"github.com/scoreforge/partbook/synth"
)

func singleSystemPage() *image.Gray {
	p := synth.DefaultParams()
	systems := []synth.System{
		{
			Staves: []synth.Stave{
				{TopY: 400},
				{TopY: 860},
				{TopY: 1320},
				{TopY: 1780},
			},
			BarlineX: 180,
		},
	}
	return synth.Render(2480, 3508, systems, p)
}

func twoSystemPage() *image.Gray {
	p := synth.DefaultParams()
	systems := []synth.System{
		{
			Staves: []synth.Stave{
				{TopY: 400},
				{TopY: 860},
				{TopY: 1320},
			},
			BarlineX: 180,
		},
		{
			Staves: []synth.Stave{
				{TopY: 2380},
				{TopY: 2840},
				{TopY: 3300},
			},
			BarlineX: 220,
		},
	}
	return synth.Render(2480, 4200, systems, p)
}

func assertDividerInvariants(t *testing.T, r Result) {
	t.Helper()
	if len(r.SystemFlags) != len(r.Dividers) {
		t.Fatalf("len(SystemFlags)=%d != len(Dividers)=%d", len(r.SystemFlags), len(r.Dividers))
	}
	wantStrips := 0
	if len(r.Dividers) > 0 {
		wantStrips = len(r.Dividers) - 1
	}
	if len(r.StripNames) != wantStrips {
		t.Fatalf("len(StripNames)=%d, want %d", len(r.StripNames), wantStrips)
	}
	for i := 1; i < len(r.Dividers); i++ {
		if r.Dividers[i] <= r.Dividers[i-1] {
			t.Fatalf("dividers not strictly increasing at %d: %v", i, r.Dividers)
		}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		t.Fatalf("confidence %v out of [0,1]", r.Confidence)
	}
}

func TestDetectSingleSystemPage(t *testing.T) {
	img := singleSystemPage()
	r := Detect(img, img.Bounds().Dx())
	assertDividerInvariants(t, r)

	if len(r.Dividers) == 0 {
		t.Fatal("expected non-empty dividers for a clear single-system page")
	}
	for i, f := range r.SystemFlags {
		if f {
			t.Errorf("flag[%d]=true, want all false on a single-system page", i)
		}
	}
	if r.Confidence < 0.5 {
		t.Errorf("confidence %v too low for a clean synthetic page", r.Confidence)
	}
}

func TestDetectTwoSystemPage(t *testing.T) {
	img := twoSystemPage()
	r := Detect(img, img.Bounds().Dx())
	assertDividerInvariants(t, r)

	trueCount := 0
	for _, f := range r.SystemFlags {
		if f {
			trueCount++
		}
	}
	if trueCount == 0 {
		t.Error("expected at least one system-boundary flag on a two-system page")
	}
	if len(r.SystemFlags) > 0 && !r.SystemFlags[0] {
		t.Error("first divider of a multi-system page should be flagged a system boundary")
	}
}

func TestDetectBlankPage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2480, 3508))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	r := Detect(img, 2480)
	if len(r.Dividers) != 0 || len(r.SystemFlags) != 0 {
		t.Fatalf("expected empty result for a blank page, got %+v", r)
	}
	if r.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", r.Confidence)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	img := twoSystemPage()
	a := Detect(img, 1000)
	b := Detect(img, 1000)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("detect is not deterministic: %+v vs %+v", a, b)
	}
}

func TestRoundTripScaling(t *testing.T) {
	const displayWidth = 1240
	const backendWidth = 2480
	toDisplay := float64(displayWidth) / float64(backendWidth)
	toBackend := float64(backendWidth) / float64(displayWidth)

	for _, y := range []float64{0, 37, 512.5, 3000} {
		display := y * toDisplay
		back := display * toBackend
		if math.Abs(back-y) > 1 {
			t.Errorf("round-trip scaling of %v differs by more than 1px: got %v", y, back)
		}
	}
}
