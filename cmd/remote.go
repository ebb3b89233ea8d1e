package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/airradio/internal/airplay"
	"github.com/smazurov/airradio/internal/logging"
)

type remoteFlags struct {
	target         string
	controlCommand string
	timeout        time.Duration
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.target, "target", "", "AirPlay device id")
	cmd.Flags().StringVar(&f.controlCommand, "control-command", airplay.DefaultControlCommand, "Control tool and leading arguments")
	cmd.Flags().DurationVar(&f.timeout, "timeout", airplay.DefaultCommandTimeout, "Timeout of one control command")
	_ = cmd.MarkFlagRequired("target")
}

func (f *remoteFlags) remote() (*airplay.Remote, error) {
	logging.Initialize(logging.Config{Level: "warn", Format: "text"})
	return airplay.NewRemote(f.controlCommand, f.timeout, logging.GetLogger("airplay"))
}

// CreateVolumeCmd creates the volume command.
func CreateVolumeCmd() *cobra.Command {
	var f remoteFlags

	cmd := &cobra.Command{
		Use:   "volume [level]",
		Short: "Print or set the device volume",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := f.remote()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if len(args) == 0 {
				volume, err := remote.Volume(ctx, f.target)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), volume)
				return nil
			}

			level, err := strconv.Atoi(args[0])
			if err != nil || level < 0 || level > 100 {
				return fmt.Errorf("volume must be an integer between 0 and 100, got %q", args[0])
			}
			return remote.SetVolume(ctx, f.target, level)
		},
	}
	f.register(cmd)
	return cmd
}

// CreateTitleCmd creates the title command.
func CreateTitleCmd() *cobra.Command {
	var f remoteFlags

	cmd := &cobra.Command{
		Use:   "title",
		Short: "Print the title the device is playing",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			remote, err := f.remote()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			title, err := remote.Title(ctx, f.target)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Fprintln(cmd.OutOrStdout(), title)
		},
	}
	f.register(cmd)
	return cmd
}
