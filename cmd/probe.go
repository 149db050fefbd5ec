package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/engine"
	"github.com/Nakildias/sc0710/internal/events"
	"github.com/Nakildias/sc0710/internal/format"
	"github.com/Nakildias/sc0710/internal/logging"
)

func modeName(f *format.Format) string {
	if f == nil {
		return "unknown"
	}
	return f.Name
}

// CreateProbeCmd creates the probe command: map the card, read the HDMI
// status block once and print what the MCU reports.
func CreateProbeCmd() *cobra.Command {
	var pciAddress string
	var simulate bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Read the HDMI signal status once and exit",
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("probe")

			opts := &config.Options{
				PCIAddress: pciAddress,
				Simulate:   simulate,
				// Engine defaults are irrelevant for a single poll but
				// must be sane.
				PollIntervalMs:        200,
				StabilizationDelayMs:  150,
				NoTimingPollThreshold: 3,
				PlaceholderFPS:        30,
			}
			runtime := config.NewRuntimeStore(config.RuntimeFromOptions(opts))

			eng, err := engine.New(opts, runtime, events.New())
			if err != nil {
				logger.Error("probe failed", "error", err)
				os.Exit(1)
			}
			defer eng.Shutdown()

			if err := eng.Monitor().Poll(); err != nil {
				logger.Error("status read failed", "error", err)
				os.Exit(1)
			}
			snap := eng.Monitor().Snapshot()

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(map[string]any{
					"state":           snap.State.String(),
					"locked":          snap.Locked,
					"cable_connected": snap.CableConnected,
					"width":           snap.Width,
					"height":          snap.Height,
					"interlaced":      snap.Interlaced,
					"timing_h":        snap.TimingH,
					"timing_v":        snap.TimingV,
					"rate_x100":       snap.RateX100,
					"colorimetry":     snap.Colorimetry.String(),
					"colorspace":      snap.Colorspace.String(),
					"eotf":            snap.EOTF.String(),
					"mode":            modeName(snap.Format),
				})
				return
			}

			fmt.Printf("state:  %s\n", snap.State)
			if !snap.Locked {
				return
			}
			fmt.Printf("mode:   %s\n", modeName(snap.Format))
			fmt.Printf("pixels: %dx%d interlaced=%v\n", snap.Width, snap.Height, snap.Interlaced)
			fmt.Printf("timing: %dx%d rate=%d.%02d\n",
				snap.TimingH, snap.TimingV, snap.RateX100/100, snap.RateX100%100)
			fmt.Printf("color:  %s %s %s\n", snap.Colorimetry, snap.Colorspace, snap.EOTF)
		},
	}

	cmd.Flags().StringVar(&pciAddress, "pci-address", "", "PCI address of the capture card (domain:bus:dev.fn)")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Probe the simulated card instead of hardware")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")

	return cmd
}
