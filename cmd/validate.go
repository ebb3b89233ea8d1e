package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/airradio/internal/config"
)

// CreateValidateCmd creates the validate-platform command.
func CreateValidateCmd() *cobra.Command {
	var platformFile string

	cmd := &cobra.Command{
		Use:   "validate-platform",
		Short: "Check a platform file and list its streamers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := config.LoadPlatform(platformFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "target %s (serial %s), media path %s\n", p.TargetID, p.SerialNumber, p.MediaPath)
			for _, r := range p.Radios {
				fmt.Fprintf(out, "radio  %-24s %s volume=%d autoResume=%t\n", r.Name, r.URL, r.Volume, r.AutoResume)
			}
			for _, s := range p.Files {
				fmt.Fprintf(out, "file   %-24s %s volume=%d\n", s.Name, s.FileName, s.Volume)
			}
			for _, s := range p.Audios {
				fmt.Fprintf(out, "audio  %-24s %s volume=%d\n", s.Name, s.FileName, s.Volume)
			}
			if p.VolumeControl {
				fmt.Fprintln(out, "volume control enabled")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&platformFile, "platform", "p", "platform.toml", "Platform file to check")
	return cmd
}
