package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexiqai/tldr/internal/transcript"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "tracks <url>",
		Short: "List the caption tracks of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			initLogger(cfg, os.Stderr)

			svc := newPipeline(cfg, newUpstreams(cfg))
			video, selected, err := svc.Tracks(cmd.Context(), args[0], lang)
			if video == nil {
				return err
			}

			rows := make([][]string, 0, len(video.Tracks))
			for _, t := range video.Tracks {
				marker := ""
				if err == nil && t == selected {
					marker = "*"
				}
				rows = append(rows, []string{marker, t.Language, t.Kind.String(), t.Name})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", video.Title, video.ID)
			fmt.Fprintln(out, renderTable([]string{"", "Language", "Kind", "Name"}, rows))
			return err
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Preferred caption language (default TLDR_DEFAULT_LANGUAGE)")
	return cmd
}

func newTranscriptCommand(ctx *commandContext) *cobra.Command {
	var lang string
	var pause float64
	var keepAnnotations bool

	cmd := &cobra.Command{
		Use:   "transcript <url>",
		Short: "Print the merged transcript of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			initLogger(cfg, os.Stderr)

			merge := transcript.MergeConfig{
				ParagraphPause:    cfg.ParagraphPause,
				RemoveAnnotations: cfg.RemoveAnnotations,
			}
			if cmd.Flags().Changed("pause") {
				if pause < 0 {
					return errors.New("--pause must not be negative")
				}
				merge.ParagraphPause = pause
			}
			if keepAnnotations {
				merge.RemoveAnnotations = false
			}

			svc := newPipeline(cfg, newUpstreams(cfg)).WithMergeConfig(merge)
			t, err := svc.Transcript(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Preferred caption language (default TLDR_DEFAULT_LANGUAGE)")
	cmd.Flags().Float64Var(&pause, "pause", 0, "Silence in seconds that starts a new paragraph (default TLDR_PARAGRAPH_PAUSE)")
	cmd.Flags().BoolVar(&keepAnnotations, "keep-annotations", false, "Keep [bracketed] and (parenthesized) annotations")
	return cmd
}
