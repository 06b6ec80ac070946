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

package rasterimage

import (
	"image"
	"testing"
)

func TestLooksLikePDF(t *testing.T) {
	if !looksLikePDF([]byte("%PDF-1.7\n...")) {
		t.Error("expected a %PDF- header to be recognised")
	}
	if looksLikePDF([]byte("not a pdf at all")) {
		t.Error("expected non-PDF bytes to be rejected")
	}
}

func TestPtToPx(t *testing.T) {
	// A4 width in points (595.28) at 300 DPI should land close to 2480px.
	got := ptToPx(595.28)
	if got < 2478 || got > 2482 {
		t.Errorf("ptToPx(595.28) = %d, want ~2480", got)
	}
	if ptToPx(0) < 1 {
		t.Error("ptToPx should never return less than 1")
	}
}

func TestCacheRoundTripLossy(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = byte(i % 256)
	}

	p := &Pages{cache: make(map[int][]byte), meta: []PageMeta{{WidthPx: 16, HeightPx: 16}}}
	p.store(0, img)

	got, err := p.decodeCached(p.cache[0], 0)
	if err != nil {
		t.Fatalf("decodeCached: %v", err)
	}
	if got.Rect.Dx() != 16 || got.Rect.Dy() != 16 {
		t.Fatalf("decoded image has wrong dimensions: %v", got.Rect)
	}
}

func TestCacheRoundTripLossless(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for i := range img.Pix {
		img.Pix[i] = byte(10 + i)
	}

	p := &Pages{cache: make(map[int][]byte), meta: []PageMeta{{WidthPx: 8, HeightPx: 4}}, lossless: true}
	p.store(0, img)

	got, err := p.decodeCached(p.cache[0], 0)
	if err != nil {
		t.Fatalf("decodeCached: %v", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			want := img.GrayAt(x, y).Y
			have := got.GrayAt(x, y).Y
			if want != have {
				t.Fatalf("pixel (%d,%d) = %d, want %d (lossless round-trip must be exact)", x, y, have, want)
			}
		}
	}
}

func TestUsedBytesTracksStore(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	p := &Pages{cache: make(map[int][]byte), meta: []PageMeta{{WidthPx: 32, HeightPx: 32}}}
	if p.UsedBytes() != 0 {
		t.Fatal("fresh Pages should report 0 used bytes")
	}
	p.store(0, img)
	if p.UsedBytes() <= 0 {
		t.Fatal("expected UsedBytes to grow after store")
	}
	p.DropCache()
	if p.UsedBytes() != 0 {
		t.Fatal("expected UsedBytes to reset to 0 after DropCache")
	}
}
