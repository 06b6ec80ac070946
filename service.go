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

// Package partbook wires the Rasterizer, StaffDetector, PartitionPlanner
// and LayoutRenderer components into the six operations spec.md §6
// exposes to external callers (the HTTP surface and browser editor are
// out of scope; Service is what they would call into).
package partbook

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/scoreforge/partbook/apierr"
	"github.com/scoreforge/partbook/detect"
	"github.com/scoreforge/partbook/layout"
	"github.com/scoreforge/partbook/partition"
	"github.com/scoreforge/partbook/pdfdoc"
	"github.com/scoreforge/partbook/rasterimage"
	"github.com/scoreforge/partbook/session"
)

// PageInfo mirrors the wire shape of one page's metadata (spec.md §6
// rasterize response).
type PageInfo struct {
	WidthPx, HeightPx int
}

// ScoreInfo is the rasterize() response.
type ScoreInfo struct {
	ScoreID   string
	PageCount int
	Pages     []PageInfo
}

// DetectResult mirrors the wire shape of detect()'s response.
type DetectResult struct {
	Dividers    []float64
	SystemFlags []bool
	StripNames  []string
	Confidence  float64
}

// Rectangle is the wire schema of spec.md §6.
type Rectangle = partition.Rectangle

// PageDividers is one page's user-confirmed DividerSet, as submitted to
// partition().
type PageDividers = partition.PageDividers

// PartitionRequest is partition()'s input (spec.md §6).
type PartitionRequest struct {
	DisplayWidth int
	Header       *Rectangle
	Markings     []Rectangle
	Pages        map[int]PageDividers
}

// PartStaveInfo describes one staff within a partition() response part.
type PartStaveInfo struct {
	SourcePage       int
	ScaledHeight     float64
	MarkingsOverhead float64
}

// PartitionResponsePart is one Part in partition()'s response.
type PartitionResponsePart struct {
	Name             string
	StavesCount      int
	DefaultSpacingPx float64
	TitleAreaPx      float64
	AvailableHeight  float64
	Staves           []PartStaveInfo
	HasHeader        bool
}

// GenerateParams is one part's generate() input (spec.md §6).
type GenerateParams struct {
	SpacingPx       float64
	Offsets         []float64
	PageBreaksAfter []int
	DebugGuides     bool
}

// GeneratePartResult reports a generated part's page count.
type GeneratePartResult struct {
	Name      string
	PageCount int
}

// scoreState is what Service retains for one ingested Score between
// requests besides its rasterised pages (which live in the session
// Store): its planned parts once partition() has been called, and its
// rendered PDFs once generate() has.
type scoreState struct {
	mu    sync.Mutex
	parts map[string]partition.Part
	pdfs  map[string][]byte
}

// Service implements the six external operations of spec.md §6 over a
// shared Rasterizer and a process-wide Store. One Service instance is
// shared across requests; per spec.md §5 each request still touches
// only its own Score.
type Service struct {
	rasterizer *rasterimage.Rasterizer
	store      *session.Store
	log        *zap.Logger

	stateMu sync.Mutex
	state   map[string]*scoreState
}

// NewService wires a Service with the given page-size and cache-byte
// budgets.
func NewService(maxPageBytes, maxCacheBytes int64, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		rasterizer: rasterimage.New(maxPageBytes, log),
		store:      session.New(maxCacheBytes, log),
		log:        log,
		state:      make(map[string]*scoreState),
	}
}

// Rasterize ingests a PDF and returns its Score metadata.
func (s *Service) Rasterize(scoreID string, pdfBytes []byte) (ScoreInfo, error) {
	score, pages, err := s.rasterizer.Rasterize(scoreID, pdfBytes)
	if err != nil {
		return ScoreInfo{}, err
	}
	s.store.Put(scoreID, score, pages)

	s.stateMu.Lock()
	s.state[scoreID] = &scoreState{parts: make(map[string]partition.Part), pdfs: make(map[string][]byte)}
	s.stateMu.Unlock()

	info := ScoreInfo{ScoreID: score.ID, PageCount: len(score.Pages)}
	for _, p := range score.Pages {
		info.Pages = append(info.Pages, PageInfo{WidthPx: p.WidthPx, HeightPx: p.HeightPx})
	}
	return info, nil
}

// GetPageRaster returns one page's raster as PNG bytes.
func (s *Service) GetPageRaster(scoreID string, pageIndex int) ([]byte, error) {
	_, pages, err := s.store.Get(scoreID)
	if err != nil {
		return nil, err
	}
	return pages.RasterPNG(pageIndex)
}

// Detect runs the StaffDetector on one page (spec.md §6). The detector
// itself never fails and yields a structured (possibly empty) result; an
// error is returned only when the score is unknown or the page cannot be
// loaded.
func (s *Service) Detect(scoreID string, pageIndex, displayWidth int) (DetectResult, error) {
	_, pages, err := s.store.Get(scoreID)
	if err != nil {
		return DetectResult{}, err
	}
	img, err := pages.Gray(pageIndex)
	if err != nil {
		return DetectResult{}, err
	}
	r := detect.Detect(img, displayWidth)
	return DetectResult{
		Dividers:    r.Dividers,
		SystemFlags: r.SystemFlags,
		StripNames:  r.StripNames,
		Confidence:  r.Confidence,
	}, nil
}

// Partition runs the PartitionPlanner over a user-confirmed divider map
// and retains the resulting Parts for subsequent generate() calls.
func (s *Service) Partition(scoreID string, req PartitionRequest) ([]PartitionResponsePart, error) {
	score, _, err := s.store.Get(scoreID)
	if err != nil {
		return nil, err
	}

	pageWidths := make(map[int]int, len(score.Pages))
	for i, p := range score.Pages {
		pageWidths[i] = p.WidthPx
	}

	parts := partition.Plan(partition.Input{
		PageWidthPx:  pageWidths,
		DisplayWidth: req.DisplayWidth,
		Pages:        req.Pages,
		Header:       req.Header,
		Markings:     req.Markings,
	})

	st := s.scoreStateFor(scoreID)
	st.mu.Lock()
	st.parts = make(map[string]partition.Part, len(parts))
	for _, p := range parts {
		st.parts[p.Name] = p
	}
	st.mu.Unlock()

	resp := make([]PartitionResponsePart, 0, len(parts))
	for _, p := range parts {
		rp := PartitionResponsePart{
			Name:             p.Name,
			StavesCount:      len(p.Regions),
			DefaultSpacingPx: p.DefaultSpacingPx,
			AvailableHeight:  layout.AvailableHeightPx,
			HasHeader:        p.Header != nil,
		}
		if rp.HasHeader {
			rp.TitleAreaPx = layout.TitleAreaPx
		}
		for _, r := range p.Regions {
			rp.Staves = append(rp.Staves, PartStaveInfo{
				SourcePage:       r.Page,
				ScaledHeight:     r.ScaledHeight,
				MarkingsOverhead: r.MarkingsOverhead,
			})
		}
		resp = append(resp, rp)
	}
	return resp, nil
}

func (s *Service) scoreStateFor(scoreID string) *scoreState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st, ok := s.state[scoreID]
	if !ok {
		st = &scoreState{parts: make(map[string]partition.Part), pdfs: make(map[string][]byte)}
		s.state[scoreID] = st
	}
	return st
}

// Generate lays out and renders each named part's PDF, caching the
// bytes for GetPartPDF.
func (s *Service) Generate(scoreID string, params map[string]GenerateParams) ([]GeneratePartResult, error) {
	_, pages, err := s.store.Get(scoreID)
	if err != nil {
		return nil, err
	}
	st := s.scoreStateFor(scoreID)

	var results []GeneratePartResult
	for name, gp := range params {
		st.mu.Lock()
		part, ok := st.parts[name]
		st.mu.Unlock()
		if !ok {
			return nil, errors.Wrapf(apierr.ErrInvalidInput, "partbook: unknown part %q", name)
		}

		var buf bytes.Buffer
		w, err := pdfdoc.CreateWriter(&buf)
		if err != nil {
			return nil, errors.Wrap(err, "partbook: create writer")
		}

		layoutParams := layout.Params{
			SpacingPx:       gp.SpacingPx,
			Offsets:         gp.Offsets,
			PageBreaksAfter: gp.PageBreaksAfter,
			DebugGuides:     gp.DebugGuides,
		}
		if layoutParams.SpacingPx <= 0 {
			layoutParams.SpacingPx = part.DefaultSpacingPx
		}

		err = layout.Render(w, part, layoutParams, func(page int, topY, bottomY float64) ([]byte, int, int, error) {
			return cropPage(pages, page, topY, bottomY)
		})
		if err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "partbook: close writer")
		}

		pageCount, err := layout.PageCount(part, layoutParams)
		if err != nil {
			return nil, err
		}

		st.mu.Lock()
		st.pdfs[name] = buf.Bytes()
		st.mu.Unlock()

		results = append(results, GeneratePartResult{Name: name, PageCount: pageCount})
	}
	return results, nil
}

// GetPartPDF returns a previously generated part's PDF bytes.
func (s *Service) GetPartPDF(scoreID, partName string) ([]byte, error) {
	st := s.scoreStateFor(scoreID)
	st.mu.Lock()
	defer st.mu.Unlock()
	pdf, ok := st.pdfs[partName]
	if !ok {
		return nil, errors.Wrapf(apierr.ErrInvalidInput, "partbook: part %q has not been generated", partName)
	}
	return pdf, nil
}

// cropPage decodes page's gray raster and returns the [topY,bottomY)
// row slice as its own contiguous buffer.
func cropPage(pages *rasterimage.Pages, page int, topY, bottomY float64) ([]byte, int, int, error) {
	img, err := pages.Gray(page)
	if err != nil {
		return nil, 0, 0, err
	}
	top := int(topY)
	bottom := int(bottomY)
	if top < 0 {
		top = 0
	}
	if bottom > img.Rect.Dy() {
		bottom = img.Rect.Dy()
	}
	if bottom <= top {
		return nil, 0, 0, errors.Errorf("partbook: empty crop [%d,%d) on page %d", top, bottom, page)
	}
	w := img.Rect.Dx()
	out := make([]byte, (bottom-top)*w)
	copy(out, img.Pix[top*img.Stride:bottom*img.Stride])
	return out, w, bottom - top, nil
}
