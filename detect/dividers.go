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

// buildSystems turns grouped stave candidates into systems, running
// barline confirmation on each (Phase C).
func buildSystems(groups [][]staveCandidate, b bitmap) []system {
	systems := make([]system, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		top := int(g[0].topY)
		bottom := int(g[len(g)-1].bottomY)
		x, confirmed := confirmBarline(b, top, bottom)
		systems = append(systems, system{
			staves:     g,
			confirmed:  confirmed,
			barlineX:   x,
			bandTop:    top,
			bandBottom: bottom,
		})
	}
	return systems
}

// placeDividers emits divider Y-coordinates and the parallel
// system-boundary flag array, following spec.md §4.2 Phase C: per
// system, a boundary divider above the first stave, a midpoint divider
// between each pair of consecutive staves, and a closing divider after
// the last stave.
//
// A single-system page has nothing for a "boundary" to be relative to,
// so no divider is flagged on it (spec.md §8 scenario 1). Once a page
// has more than one system, every system's opening divider — including
// the first system's — marks a genuine boundary against the page's
// leading space or a preceding system (spec.md §8 scenario 2), and
// every closing divider stays unflagged: the dead strip it bounds is
// identified by the *next* divider's flag, per the Strip definition in
// spec.md §3.
func placeDividers(systems []system, prevBandGap func(systemIndex int) float64) ([]float64, []bool) {
	multiSystem := len(systems) > 1

	var dividers []float64
	var flags []bool
	for si, sys := range systems {
		margin := prevBandGap(si) / 2
		opening := sys.staves[0].topY - margin
		dividers = append(dividers, opening)
		flags = append(flags, multiSystem)

		for i := 1; i < len(sys.staves); i++ {
			mid := (sys.staves[i-1].bottomY + sys.staves[i].topY) / 2
			dividers = append(dividers, mid)
			flags = append(flags, false)
		}

		closing := sys.staves[len(sys.staves)-1].bottomY + margin
		dividers = append(dividers, closing)
		flags = append(flags, false)
	}
	return dividers, flags
}
