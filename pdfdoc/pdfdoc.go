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

// Package pdfdoc is the thin adapter between partbook's domain logic and
// seehuhn.de/go/pdf. It covers exactly the two things the pipeline needs:
// reading an input score's page sizes and embedded page images, and
// writing a multi-page output document whose content is raster crops.
//
// It deliberately does not expose general PDF object-model access — the
// rest of the codebase never imports seehuhn.de/go/pdf directly.
package pdfdoc

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"

	"github.com/pkg/errors"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/document"
	"seehuhn.de/go/pdf/graphics/color"
	"seehuhn.de/go/pdf/pagetree"
)

// PointsPerInch is the PDF user-space unit: 72 user-space units per inch,
// the same convention the teacher's testcases/genpdf used ("1 point = 1
// pixel at 72 DPI").
const PointsPerInch = 72.0

// A4WidthPt and A4HeightPt are the A4 page dimensions in points.
const (
	A4WidthPt  = 595.28
	A4HeightPt = 841.89
)

// ErrNoPageImage is returned by Reader.PageImage when a page's
// Resources/XObject dictionary holds no image XObject. A PDF with
// vector-drawn content is out of scope (see spec.md Non-goals on
// handwritten/drawn scores).
var ErrNoPageImage = errors.New("pdfdoc: page has no page-filling image XObject")

// Reader reads page geometry and embedded page-raster images from an
// input score PDF.
type Reader struct {
	r      *pdf.Reader
	pages  int
	closer io.Closer
}

// OpenReader opens a PDF for reading. The caller must call Close.
func OpenReader(ra io.ReaderAt, size int64) (*Reader, error) {
	r, err := pdf.Open(ra, nil)
	if err != nil {
		return nil, errors.Wrap(err, "pdfdoc: open")
	}
	n, err := pagetree.NumPages(r)
	if err != nil {
		return nil, errors.Wrap(err, "pdfdoc: walk page tree")
	}
	closer, _ := ra.(io.Closer)
	return &Reader{r: r, pages: n, closer: closer}, nil
}

// Close releases resources held by the reader.
func (d *Reader) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// PageCount returns the number of pages in the document.
func (d *Reader) PageCount() int {
	return d.pages
}

// PageSizePt returns a page's MediaBox size in points.
func (d *Reader) PageSizePt(index int) (widthPt, heightPt float64, err error) {
	if index < 0 || index >= d.pages {
		return 0, 0, errors.Errorf("pdfdoc: page index %d out of range [0,%d)", index, d.pages)
	}
	dict, err := pagetree.GetPage(d.r, index)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "pdfdoc: get page %d", index)
	}
	box, err := pdf.GetRectangle(d.r, dict["MediaBox"])
	if err != nil || box == nil {
		return 0, 0, errors.Wrapf(err, "pdfdoc: page %d has no MediaBox", index)
	}
	return box.URx - box.LLx, box.URy - box.LLy, nil
}

// PageImage extracts the decoded grayscale pixels of the first image
// XObject found in a page's resources; whether it fills the page, or
// whether the page holds other images, is not checked. It returns 8-bit
// pixels in row-major order (white=255, black=0), plus the image's
// native pixel dimensions.
func (d *Reader) PageImage(index int) (pix []byte, w, h int, err error) {
	dict, err := pagetree.GetPage(d.r, index)
	if err != nil {
		return nil, 0, 0, errors.Wrapf(err, "pdfdoc: get page %d", index)
	}
	xobj, err := firstImageXObject(d.r, dict)
	if err != nil {
		return nil, 0, 0, err
	}
	return decodeXObjectGray(d.r, xobj)
}

// xobjectStream is the subset of an Image XObject's dictionary and raw
// stream data needed to decode it.
type xobjectStream struct {
	Filter string
	Width  int
	Height int
	Data   []byte
}

func firstImageXObject(r *pdf.Reader, page pdf.Dict) (*xobjectStream, error) {
	resources, _ := pdf.GetDict(r, page["Resources"])
	xobjects, _ := pdf.GetDict(r, resources["XObject"])
	for _, ref := range xobjects {
		streamDict, stream, err := pdf.GetStream(r, ref)
		if err != nil {
			continue
		}
		if name, _ := pdf.GetName(r, streamDict["Subtype"]); name != "Image" {
			continue
		}
		data, err := io.ReadAll(stream)
		if err != nil {
			return nil, errors.Wrap(err, "pdfdoc: read image stream")
		}
		w, _ := pdf.GetInteger(r, streamDict["Width"])
		h, _ := pdf.GetInteger(r, streamDict["Height"])
		filter, _ := pdf.GetName(r, streamDict["Filter"])
		return &xobjectStream{Filter: string(filter), Width: int(w), Height: int(h), Data: data}, nil
	}
	return nil, ErrNoPageImage
}

func decodeXObjectGray(r *pdf.Reader, x *xobjectStream) ([]byte, int, int, error) {
	switch x.Filter {
	case "DCTDecode":
		img, err := jpeg.Decode(bytes.NewReader(x.Data))
		if err != nil {
			return nil, 0, 0, errors.Wrap(err, "pdfdoc: decode DCT image")
		}
		return toGrayBytes(img), x.Width, x.Height, nil
	case "FlateDecode", "":
		// Raw samples, assumed 8 bits/component DeviceGray after Flate
		// decompression (pdf.GetStream already reverses standard
		// filters including FlateDecode).
		if len(x.Data) < x.Width*x.Height {
			return nil, 0, 0, errors.New("pdfdoc: raw image stream shorter than Width*Height")
		}
		return x.Data[:x.Width*x.Height], x.Width, x.Height, nil
	default:
		return nil, 0, 0, errors.Errorf("pdfdoc: unsupported image filter %q", x.Filter)
	}
}

func toGrayBytes(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, b.Dx()*b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// Rec. 601 luma, matching how scanners typically flatten
			// a nominally-grayscale JPEG's YCbCr storage.
			lum := (299*r + 587*g + 114*bl) / 1000
			out[i] = byte(lum >> 8)
			i++
		}
	}
	return out
}

// Writer produces a multi-page PDF by appending raster-crop pages.
type Writer struct {
	mp *document.MultiPageWriter
}

// CreateWriter starts a new output document, written to w.
func CreateWriter(w io.Writer) (*Writer, error) {
	mp, err := document.WriteMultiPage(w, &pdf.Rectangle{URx: A4WidthPt, URy: A4HeightPt}, pdf.V1_7, nil)
	if err != nil {
		return nil, errors.Wrap(err, "pdfdoc: create writer")
	}
	return &Writer{mp: mp}, nil
}

// Close finalises the document (page tree, catalog, cross-reference
// table).
func (w *Writer) Close() error {
	return errors.Wrap(w.mp.Close(), "pdfdoc: close writer")
}

// Page accumulates the content of one A4 output page.
type Page struct {
	p *document.Page
}

// NewPage starts a new A4 portrait page.
func (w *Writer) NewPage() (*Page, error) {
	p := w.mp.NextPage()
	return &Page{p: p}, nil
}

// Close finalises the page's content stream.
func (pg *Page) Close() error {
	return errors.Wrap(pg.p.Close(), "pdfdoc: close page")
}

// DrawGray blits an 8-bit grayscale raster crop onto the page, scaled to
// fill the destination rectangle (in points, PDF bottom-left origin).
func (pg *Page) DrawGray(pix []byte, srcW, srcH int, x, y, w, h float64) error {
	img := &image.Gray{Pix: pix, Stride: srcW, Rect: image.Rect(0, 0, srcW, srcH)}
	return errors.Wrap(pg.p.DrawImage(img, matrix.Matrix{w, 0, 0, h, x, y}), "pdfdoc: draw image")
}

// Hairline draws a single-pixel-equivalent vector line, used only for the
// optional DebugGuides divider overlay (never for staff-bearing content,
// which is always a raster crop per spec.md §4.4).
func (pg *Page) Hairline(x0, y0, x1, y1, widthPt float64) error {
	pg.p.SetStrokeColor(color.DeviceGray(0.6))
	pg.p.SetLineWidth(widthPt)
	pg.p.MoveTo(x0, y0)
	pg.p.LineTo(x1, y1)
	return errors.Wrap(pg.p.Stroke(), "pdfdoc: draw hairline")
}
