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

// Package rasterimage implements the Rasterizer component (spec.md §4.1):
// converting an input PDF's pages into fixed-DPI grayscale rasters,
// cached lazily per page.
package rasterimage

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/dlecorfec/progjpeg"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/scoreforge/partbook/apierr"
	"github.com/scoreforge/partbook/pdfdoc"
)

// DPI is the canonical rasterisation resolution (spec.md §3).
const DPI = 300

// PageMeta is a page's pixel dimensions at the canonical DPI.
type PageMeta struct {
	WidthPx, HeightPx int
}

// Score is the immutable metadata produced by Rasterize: a PDF's page
// count and per-page pixel dimensions. The pixel data itself lives in a
// Pages store, fetched lazily.
type Score struct {
	ID    string
	Pages []PageMeta
}

// cacheQuality is the progjpeg quality used for the compressed page
// cache. Chosen high enough that detection (which tolerates scan noise
// by design, spec.md §4.2) is unaffected in practice.
const cacheQuality = 92

// Pages is the lazy, budget-bounded store of rasterised page pixels for
// one Score. It owns the underlying PDF reader for the Score's lifetime.
type Pages struct {
	mu       sync.Mutex
	reader   *pdfdoc.Reader
	meta     []PageMeta
	cache    map[int][]byte // progjpeg-compressed bytes, nil until first access
	lossless bool
	log      *zap.Logger

	// usedBytes tracks the compressed footprint of this Score's cache;
	// read by session.Store to enforce the process-wide byte budget
	// (spec.md §5).
	usedBytes int64
}

// Rasterizer converts PDF byte streams into Scores plus their lazy page
// stores. One Rasterizer is shared across requests; it holds no
// per-request mutable state itself (spec.md §5: "single-threaded per
// request", shared state lives in the session store, not here).
type Rasterizer struct {
	// MaxPageBytes bounds the raw pixel footprint (WidthPx*HeightPx) of
	// any single page before it is rejected with apierr.ErrPageTooLarge.
	MaxPageBytes int64
	// Lossless disables the progjpeg cache compression in favour of
	// storing raw decoded bytes — see SPEC_FULL.md §4.1's cache
	// trade-off note.
	Lossless bool
	Log      *zap.Logger
}

// New returns a Rasterizer with the given page-size budget.
func New(maxPageBytes int64, log *zap.Logger) *Rasterizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rasterizer{MaxPageBytes: maxPageBytes, Log: log}
}

// looksLikePDF reports whether data begins with a PDF header, allowing a
// small amount of leading garbage as some scanners prepend junk bytes.
func looksLikePDF(data []byte) bool {
	limit := 1024
	if limit > len(data) {
		limit = len(data)
	}
	return bytes.Contains(data[:limit], []byte("%PDF-"))
}

// byteReaderAt adapts a byte slice to io.ReaderAt.
type byteReaderAt struct{ b []byte }

func (r byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.b)) {
		return 0, errors.New("rasterimage: read past end of buffer")
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, errors.New("rasterimage: short read")
	}
	return n, nil
}

// Rasterize parses pdfBytes and returns its page metadata plus a lazy
// Pages store. No page pixels are decoded yet.
func (r *Rasterizer) Rasterize(id string, pdfBytes []byte) (*Score, *Pages, error) {
	if !looksLikePDF(pdfBytes) {
		return nil, nil, errors.Wrap(apierr.ErrInvalidInput, "rasterimage: not a PDF")
	}

	reader, err := pdfdoc.OpenReader(byteReaderAt{pdfBytes}, int64(len(pdfBytes)))
	if err != nil {
		return nil, nil, errors.Wrap(apierr.ErrInvalidInput, err.Error())
	}

	n := reader.PageCount()
	meta := make([]PageMeta, n)
	for i := 0; i < n; i++ {
		wPt, hPt, err := reader.PageSizePt(i)
		if err != nil {
			reader.Close()
			return nil, nil, errors.Wrapf(apierr.ErrInvalidInput, "rasterimage: page %d: %v", i, err)
		}
		wPx := ptToPx(wPt)
		hPx := ptToPx(hPt)
		if r.MaxPageBytes > 0 && int64(wPx)*int64(hPx) > r.MaxPageBytes {
			reader.Close()
			return nil, nil, errors.Wrapf(apierr.ErrPageTooLarge, "rasterimage: page %d is %dx%d px", i, wPx, hPx)
		}
		meta[i] = PageMeta{WidthPx: wPx, HeightPx: hPx}
	}

	score := &Score{ID: id, Pages: meta}
	pages := &Pages{
		reader:   reader,
		meta:     meta,
		cache:    make(map[int][]byte),
		lossless: r.Lossless,
		log:      r.Log,
	}
	return score, pages, nil
}

func ptToPx(pt float64) int {
	px := int(pt/pdfdoc.PointsPerInch*DPI + 0.5)
	if px < 1 {
		px = 1
	}
	return px
}

// Close releases the underlying PDF reader.
func (p *Pages) Close() error {
	if p.reader == nil {
		return nil
	}
	return p.reader.Close()
}

// UsedBytes returns the compressed cache footprint accumulated so far.
func (p *Pages) UsedBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usedBytes
}

// DropCache releases all cached page bytes for this Score, keeping page
// metadata. session.Store does not call it: its eviction drops the whole
// Score.
func (p *Pages) DropCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[int][]byte)
	p.usedBytes = 0
}

// gray loads page index's pixels as an *image.Gray at the canonical DPI,
// decoding and caching it on first access.
func (p *Pages) gray(index int) (*image.Gray, error) {
	if index < 0 || index >= len(p.meta) {
		return nil, errors.Errorf("rasterimage: page index %d out of range", index)
	}

	p.mu.Lock()
	compressed, ok := p.cache[index]
	p.mu.Unlock()
	if ok {
		return p.decodeCached(compressed, index)
	}

	pix, srcW, srcH, err := p.reader.PageImage(index)
	if errors.Is(err, pdfdoc.ErrNoPageImage) {
		// A vector-drawn page: out of scope (spec.md Non-goals), return
		// a blank canvas rather than erroring (never raise, §4.2).
		p.log.Warn("page has no embedded raster image; emitting blank page",
			zap.Int("page", index))
		meta := p.meta[index]
		blank := image.NewGray(image.Rect(0, 0, meta.WidthPx, meta.HeightPx))
		for i := range blank.Pix {
			blank.Pix[i] = 255
		}
		p.store(index, blank)
		return blank, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "rasterimage: decode page %d", index)
	}

	src := &image.Gray{Pix: pix, Stride: srcW, Rect: image.Rect(0, 0, srcW, srcH)}
	meta := p.meta[index]
	if srcW == meta.WidthPx && srcH == meta.HeightPx {
		p.store(index, src)
		return src, nil
	}

	dst := image.NewGray(image.Rect(0, 0, meta.WidthPx, meta.HeightPx))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	p.store(index, dst)
	return dst, nil
}

func (p *Pages) store(index int, img *image.Gray) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lossless {
		raw := make([]byte, len(img.Pix))
		copy(raw, img.Pix)
		p.cache[index] = rawMarker(raw, img.Rect.Dx())
		p.usedBytes += int64(len(raw))
		return
	}

	var buf bytes.Buffer
	err := progjpeg.Encode(&buf, img, &progjpeg.Options{
		Quality:     cacheQuality,
		Progressive: true,
		ScanScript:  progjpeg.DefaultGrayscaleScanScript(),
	})
	if err != nil {
		// Fall back to raw storage rather than losing the page.
		p.log.Warn("progjpeg cache encode failed, storing raw", zap.Int("page", index), zap.Error(err))
		raw := make([]byte, len(img.Pix))
		copy(raw, img.Pix)
		p.cache[index] = rawMarker(raw, img.Rect.Dx())
		p.usedBytes += int64(len(raw))
		return
	}
	p.cache[index] = buf.Bytes()
	p.usedBytes += int64(buf.Len())
}

// rawMagic is a JPEG-impossible prefix (JPEG data starts 0xFF 0xD8) that
// rawMarker puts on raw (uncompressed) cache entries when Lossless is set
// or compression failed, so decodeCached can tell the two storage forms
// apart without a second map.
const rawMagic = "\x00RAW\x00"

func rawMarker(pix []byte, stride int) []byte {
	out := make([]byte, 0, len(rawMagic)+4+len(pix))
	out = append(out, rawMagic...)
	out = append(out, byte(stride), byte(stride>>8), byte(stride>>16), byte(stride>>24))
	out = append(out, pix...)
	return out
}

func (p *Pages) decodeCached(blob []byte, index int) (*image.Gray, error) {
	meta := p.meta[index]
	if len(blob) > len(rawMagic) && string(blob[:len(rawMagic)]) == rawMagic {
		stride := int(blob[len(rawMagic)]) | int(blob[len(rawMagic)+1])<<8 |
			int(blob[len(rawMagic)+2])<<16 | int(blob[len(rawMagic)+3])<<24
		pix := blob[len(rawMagic)+4:]
		return &image.Gray{Pix: pix, Stride: stride, Rect: image.Rect(0, 0, meta.WidthPx, meta.HeightPx)}, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, errors.Wrapf(err, "rasterimage: decode cached page %d", index)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	// Defensive: progjpeg's grayscale scan script should always produce
	// an *image.Gray; convert rather than fail if a decoder ever hands
	// back something else.
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, img.At(x, y))
		}
	}
	return g, nil
}

// RasterPNG returns a page's raster as 8-bit grayscale PNG bytes — the
// exact wire format spec.md §6's get_page_raster contract requires,
// regardless of the internal cache codec.
func (p *Pages) RasterPNG(index int) ([]byte, error) {
	g, err := p.gray(index)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, g); err != nil {
		return nil, errors.Wrap(err, "rasterimage: encode PNG")
	}
	return buf.Bytes(), nil
}

// Gray exposes the decoded page for in-process consumers (the detector
// and the layout renderer). It is not part of the external wire contract.
func (p *Pages) Gray(index int) (*image.Gray, error) {
	return p.gray(index)
}
