package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/msto63/overlay/internal/overlay/audio"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	Long: `Lists the input devices PortAudio can open. The name can be used as
[audio] input_device for the microphone meter. System audio is captured
through the loopback device and does not appear here.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := audio.ListInputDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No input devices found")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tNAME\tCHANNELS\tRATE")
		for _, d := range devices {
			marker := ""
			if d.IsDefault {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%.0f Hz\n", marker, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
