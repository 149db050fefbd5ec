package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Nakildias/sc0710/internal/format"
)

// CreateModesCmd creates the modes command, which lists every video
// mode in the timing catalog.
func CreateModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List supported video modes",
		Long: `Prints the video mode catalog: visible geometry, frame rate and the ` +
			`raw HDMI timing tuple each mode is detected by.`,
		Run: func(_ *cobra.Command, _ []string) {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRESOLUTION\tFPS\tTIMING\tFRAME BYTES")
			for _, f := range format.All() {
				scan := "p"
				if f.Interlaced {
					scan = "i"
				}
				fmt.Fprintf(w, "%s\t%dx%d%s\t%d/%d\t%dx%d\t%d\n",
					f.Name, f.Width, f.Height, scan,
					f.FPSNum, f.FPSDen,
					f.TimingH, f.TimingV, f.FrameSize)
			}
			w.Flush()
		},
	}
}
