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

// Package apierr classifies every error the core can return into the three
// categories of the error handling design: input faults (4xx, no retry),
// resource limits (5xx, caller may retry), and everything else (5xx,
// programmer bug, log full detail). Algorithmic uncertainty — low
// detection confidence, an orphaned marking — is never represented here;
// those are structured results with a warning flag, not errors.
package apierr

import "github.com/pkg/errors"

// Sentinel errors for the input-fault category. Wrap with errors.Wrap to
// attach request-specific detail; callers should still match with
// errors.Is against these sentinels.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnknownScoreID = errors.New("unknown score id")
	ErrEmptyPart      = errors.New("part has no live staff regions")
)

// Sentinel errors for the resource-limit category.
var (
	ErrPageTooLarge   = errors.New("page raster would exceed the configured memory budget")
	ErrCacheExhausted = errors.New("cache budget exhausted and eviction could not free enough space")
)

// ErrLayoutOverflow signals a pathological layout input: a single stave's
// rendered height exceeds the available page height. This is a component
// contract error (§4.4), classified alongside input faults because it is
// caused by the caller's layout parameters, not a resource limit.
var ErrLayoutOverflow = errors.New("stave height exceeds available page height")

// Status is the HTTP-style status class a caller (an external HTTP layer,
// not part of this package) should use to surface an error.
type Status int

const (
	// StatusBug marks an error with no categorisation: log full detail,
	// return a generic message, 5xx.
	StatusBug Status = iota
	StatusClientFault
	StatusResourceLimit
)

// Classify returns the status class for err. Input faults are checked
// before resource limits; both sets are disjoint sentinels, so the order
// does not change the result.
func Classify(err error) Status {
	if err == nil {
		return StatusBug
	}
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnknownScoreID),
		errors.Is(err, ErrEmptyPart),
		errors.Is(err, ErrLayoutOverflow):
		return StatusClientFault
	case errors.Is(err, ErrPageTooLarge),
		errors.Is(err, ErrCacheExhausted):
		return StatusResourceLimit
	default:
		return StatusBug
	}
}

// HTTPStatus maps a Status to the status code family spec.md §6/§7
// require external callers to use. It returns a representative code, not
// a precise one — the external HTTP layer may pick a more specific code
// within the same family.
func HTTPStatus(s Status) int {
	switch s {
	case StatusClientFault:
		return 400
	case StatusResourceLimit:
		return 503
	default:
		return 500
	}
}
