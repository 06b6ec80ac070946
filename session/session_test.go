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

package session

import (
	"errors"
	"testing"

	"github.com/scoreforge/partbook/apierr"
	"github.com/scoreforge/partbook/rasterimage"
)

// fixture builds a bare Score/Pages pair with no backing reader, only
// good enough to exercise the store's bookkeeping — tests never call a
// method that touches Pages' internal reader.
func fixture(id string) (*rasterimage.Score, *rasterimage.Pages) {
	return &rasterimage.Score{ID: id}, &rasterimage.Pages{}
}

func TestStoreGetUnknown(t *testing.T) {
	s := New(1<<20, nil)
	_, _, err := s.Get("missing")
	if !errors.Is(err, apierr.ErrUnknownScoreID) {
		t.Fatalf("err = %v, want ErrUnknownScoreID", err)
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	s := New(1<<20, nil)
	score1, pages1 := fixture("a")
	s.Put("a", score1, pages1)
	score2, pages2 := fixture("a")
	s.Put("a", score2, pages2)

	got, _, err := s.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if got != score2 {
		t.Fatalf("Get returned the stale Put, want the latest")
	}
}

func TestStoreEvictRemovesOnlyNamedScore(t *testing.T) {
	s := New(0, nil) // maxBytes<=0 disables eviction in evictLocked; use Evict directly instead
	scoreA, pagesA := fixture("a")
	scoreB, pagesB := fixture("b")
	s.Put("a", scoreA, pagesA)
	s.Put("b", scoreB, pagesB)

	s.Evict("a")
	if _, _, err := s.Get("a"); !errors.Is(err, apierr.ErrUnknownScoreID) {
		t.Fatalf("expected a to be evicted, got err=%v", err)
	}
	if _, _, err := s.Get("b"); err != nil {
		t.Fatalf("b should still be cached: %v", err)
	}
}

func TestCancelToken(t *testing.T) {
	tok := NewCancelToken()
	if tok.Cancelled() {
		t.Fatal("new token should not be cancelled")
	}
	tok.Cancel()
	if !tok.Cancelled() {
		t.Fatal("token should be cancelled after Cancel")
	}
	tok.Cancel() // must not panic
}
