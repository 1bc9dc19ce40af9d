package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/i474232898/precip-timelapse/internal/config"
	"github.com/i474232898/precip-timelapse/internal/timelapse"
)

func newFramesCmd(opts *rootOptions) *cobra.Command {
	var (
		start, end string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:     "frames",
		Short:   "Print the hourly frames a date range resolves to",
		Example: "  precip-timelapse frames --start 2023-06-01T00:00 --end 2023-06-01T02:00",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			from, err := timelapse.ParseTime(start, cfg.Location)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			to, err := timelapse.ParseTime(end, cfg.Location)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			resolver, err := timelapse.NewResolver(timelapse.ResolverConfig{
				TileEndpoint: cfg.TileEndpoint,
				Bucket:       cfg.RasterBucket,
			})
			if err != nil {
				return err
			}

			frames := resolver.Resolve(timelapse.TimeRange{Start: from, End: to})
			if asJSON {
				return writeFramesJSON(cmd.OutOrStdout(), frames)
			}
			return writeFramesTable(cmd.OutOrStdout(), frames)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "range start (RFC3339, YYYY-MM-DDTHH:MM, YYYY-MM-DD or unix seconds)")
	cmd.Flags().StringVar(&end, "end", "", "range end, inclusive")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit one JSON object per frame")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func writeFramesJSON(w io.Writer, frames []timelapse.Frame) error {
	enc := json.NewEncoder(w)
	for _, f := range frames {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

func writeFramesTable(w io.Writer, frames []timelapse.Frame) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tLAYER\tHOUR\tTILE")
	for _, f := range frames {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.Index, f.LayerID, f.Timestamp.Format("2006-01-02 15:00"), f.TileReference)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d frame(s)\n", len(frames))
	return err
}
