package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jon-Bright/samclk/clk"
	"github.com/Jon-Bright/samclk/regs"
)

var (
	memDev string

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Bring up the clock tree on real hardware",
		Long:  "Map the clock register blocks from the memory device and run the bring-up sequence once.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProfile()
			if err != nil {
				return err
			}
			m, err := regs.OpenMMIO(memDev, regs.Blocks)
			if err != nil {
				return fmt.Errorf("couldn't map registers: %w", err)
			}
			defer m.Close() // Ignore error
			st, err := clk.NewTree(m, p).BringUp()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st)
			return nil
		},
	}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Print the frequencies a profile produces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProfile()
			if err != nil {
				return err
			}
			st, err := clk.Resolve(p)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "profile     %s\n", p.Name)
			fmt.Fprintf(w, "reference   %d Hz\n", st.Reference)
			fmt.Fprintf(w, "dfll48m     %d Hz (target %d Hz, %+.1f ppm)\n", st.Multiplier, p.Multiplier.Target, ppm(st.Multiplier, p.Multiplier.Target))
			fmt.Fprintf(w, "gclk0       %d Hz\n", st.Main)
			fmt.Fprintf(w, "osc8m       %d Hz\n", st.Internal)
			fmt.Fprintf(w, "cpu         %d Hz\n", st.CPU)
			fmt.Fprintf(w, "apba/b/c    %d/%d/%d Hz\n", st.APBA, st.APBB, st.APBC)
			return nil
		},
	}

	simOpts = struct {
		oscStartup int
		genSync    int
		dfllSync   int
		dfllLock   int
		trace      bool
	}{}

	simCmd = &cobra.Command{
		Use:   "sim",
		Short: "Run the bring-up against a simulated SAMD21",
		Long:  "Run the bring-up sequence against a simulated clock block. Status flag delays are in polls; -1 keeps a flag stuck.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProfile()
			if err != nil {
				return err
			}
			s := regs.NewSim()
			s.OscStartup = simOpts.oscStartup
			s.GenSync = simOpts.genSync
			s.DFLLSync = simOpts.dfllSync
			s.DFLLLock = simOpts.dfllLock
			st, err := clk.NewTree(s, p).BringUp()
			w := cmd.OutOrStdout()
			if simOpts.trace {
				for i, a := range s.Writes() {
					fmt.Fprintf(w, "%3d %v\n", i, a)
				}
			}
			cw := colorOut(w)
			for _, f := range s.Faults {
				fmt.Fprintf(cw, "%sFAULT:%s %s\n", colorRed, colorReset, f)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(w, st)
			if len(s.Faults) > 0 {
				return fmt.Errorf("%d hardware faults in simulation", len(s.Faults))
			}
			return nil
		},
	}
)

func ppm(got, want uint32) float64 {
	if want == 0 {
		return 0
	}
	return (float64(got) - float64(want)) / float64(want) * 1e6
}

func init() {
	initCmd.Flags().StringVar(&memDev, "mem", regs.MEM_FILE, "Device to map register blocks from")

	simCmd.Flags().IntVar(&simOpts.oscStartup, "osc-startup", 3, "Polls until XOSC32K is ready")
	simCmd.Flags().IntVar(&simOpts.genSync, "gen-sync", 1, "Polls until GCLK SYNCBUSY clears")
	simCmd.Flags().IntVar(&simOpts.dfllSync, "dfll-sync", 1, "Polls until DFLLRDY")
	simCmd.Flags().IntVar(&simOpts.dfllLock, "dfll-lock", 5, "Polls until DFLL48M lock")
	simCmd.Flags().BoolVar(&simOpts.trace, "trace", false, "Print every register write")
}
