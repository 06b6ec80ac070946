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

// Command partbook drives the score part-book pipeline from the command
// line: rasterize a score, inspect a page's detected staves, and render
// a named part's PDF, without the HTTP/editor surface spec.md leaves to
// external collaborators.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	partbook "github.com/scoreforge/partbook"
)

const (
	defaultMaxPageBytes  = 200 << 20 // 200 MiB of raw pixels per page
	defaultMaxCacheBytes = 1 << 30   // 1 GiB of cached raster bytes process-wide
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "partbook",
		Short: "Turn a scanned orchestral score PDF into per-instrument part-books",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	newLogger := func() *zap.Logger {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg = zap.NewDevelopmentConfig()
		}
		log, err := cfg.Build()
		if err != nil {
			log = zap.NewNop()
		}
		return log
	}

	root.AddCommand(
		newRasterizeCmd(newLogger),
		newDetectCmd(newLogger),
		newGenerateCmd(newLogger),
	)
	return root
}

func newService(log *zap.Logger) *partbook.Service {
	return partbook.NewService(defaultMaxPageBytes, defaultMaxCacheBytes, log)
}

func newRasterizeCmd(newLogger func() *zap.Logger) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "rasterize <score.pdf>",
		Short: "Ingest a PDF and print its page metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			svc := newService(log)
			info, err := svc.Rasterize(scoreIDFromPath(args[0]), data)
			if err != nil {
				return err
			}
			fmt.Printf("score %s: %d pages\n", info.ScoreID, info.PageCount)
			for i, p := range info.Pages {
				fmt.Printf("  page %d: %dx%d px\n", i, p.WidthPx, p.HeightPx)
			}
			if out != "" && len(info.Pages) > 0 {
				png, err := svc.GetPageRaster(info.ScoreID, 0)
				if err != nil {
					return err
				}
				return os.WriteFile(out, png, 0o644)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "raster-out", "", "write page 0's raster PNG to this path")
	return cmd
}

func newDetectCmd(newLogger func() *zap.Logger) *cobra.Command {
	var page int
	var displayWidth int
	cmd := &cobra.Command{
		Use:   "detect <score.pdf>",
		Short: "Run staff detection on one page and print the divider set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			svc := newService(log)
			scoreID := scoreIDFromPath(args[0])
			if _, err := svc.Rasterize(scoreID, data); err != nil {
				return err
			}
			r, err := svc.Detect(scoreID, page, displayWidth)
			if err != nil {
				return err
			}
			fmt.Printf("confidence: %.2f\n", r.Confidence)
			fmt.Printf("dividers: %v\n", r.Dividers)
			fmt.Printf("system_flags: %v\n", r.SystemFlags)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page index")
	cmd.Flags().IntVar(&displayWidth, "display-width", 1240, "display-pixel width to scale results into")
	return cmd
}

func newGenerateCmd(newLogger func() *zap.Logger) *cobra.Command {
	var spacing float64
	cmd := &cobra.Command{
		Use:   "generate <score.pdf> <part-name> <out.pdf>",
		Short: "Partition a score using its detected dividers and render one part's PDF",
		Long: "generate runs detect() on every page to build the DividerSet map that the\n" +
			"HTTP/editor surface would normally collect from a user, then partitions and\n" +
			"renders the named part. It is a convenience path for exercising the pipeline\n" +
			"end to end from the command line, not a substitute for human-confirmed dividers.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			partName := args[1]
			outPath := args[2]

			svc := newService(log)
			scoreID := scoreIDFromPath(args[0])
			info, err := svc.Rasterize(scoreID, data)
			if err != nil {
				return err
			}

			const displayWidth = 1240
			pages := make(map[int]partbook.PageDividers, info.PageCount)
			for i := 0; i < info.PageCount; i++ {
				r, err := svc.Detect(scoreID, i, displayWidth)
				if err != nil {
					return err
				}
				stripNames := make([]string, len(r.StripNames))
				for j := range stripNames {
					stripNames[j] = partName
				}
				pages[i] = partbook.PageDividers{
					Dividers:    r.Dividers,
					SystemFlags: r.SystemFlags,
					StripNames:  stripNames,
				}
			}

			if _, err := svc.Partition(scoreID, partbook.PartitionRequest{
				DisplayWidth: displayWidth,
				Pages:        pages,
			}); err != nil {
				return err
			}

			genParams := map[string]partbook.GenerateParams{
				partName: {SpacingPx: spacing},
			}
			if _, err := svc.Generate(scoreID, genParams); err != nil {
				return err
			}

			pdf, err := svc.GetPartPDF(scoreID, partName)
			if err != nil {
				return err
			}
			return os.WriteFile(outPath, pdf, 0o644)
		},
	}
	cmd.Flags().Float64Var(&spacing, "spacing-px", 0, "inter-stave spacing in pixels (0 = use the part's default)")
	return cmd
}

func scoreIDFromPath(path string) string {
	return path
}
