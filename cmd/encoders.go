package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/tracknode/internal/encoder"
)

// ErrNoFFmpeg is returned when ffmpeg is not on PATH.
var ErrNoFFmpeg = errors.New("ffmpeg not found in PATH")

func newEncodersCmd() *cobra.Command {
	var family string

	cmd := &cobra.Command{
		Use:   "encoders",
		Short: "List video encoders available to the streaming sink",
		Long:  `Queries ffmpeg for its video encoders. The streaming sink accepts an encoder name or a codec family.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !encoder.FFmpegInstalled() {
				return ErrNoFFmpeg
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			codecs, err := encoder.ListVideoCodecs(ctx)
			if err != nil {
				return fmt.Errorf("failed to list encoders: %w", err)
			}
			return printCodecs(cmd.OutOrStdout(), codecs, family)
		},
	}
	cmd.Flags().StringVarP(&family, "family", "f", "", "Only list encoders of this codec family (h264, hevc)")
	return cmd
}

func printCodecs(w io.Writer, codecs []encoder.Codec, family string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFAMILY\tHWACCEL\tDESCRIPTION")
	count := 0
	for _, c := range codecs {
		if family != "" && c.Family != family {
			continue
		}
		hw := "no"
		if c.HWAccel {
			hw = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Family, hw, c.Description)
		count++
	}
	if count == 0 {
		tw.Flush()
		_, err := fmt.Fprintln(w, "No matching encoders found.")
		return err
	}
	return tw.Flush()
}
