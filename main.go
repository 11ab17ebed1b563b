// Command samclk brings a SAMD21 clock tree up to 48 MHz from the external
// 32.768 kHz crystal, or shows what it would do.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Jon-Bright/samclk/clk"
)

var (
	profileName string
	quiet       bool

	rootCmd = &cobra.Command{
		Use:   "samclk",
		Short: "Bring up a SAMD21 clock tree",
		Long:  "Configure XOSC32K, DFLL48M, the generic clock generators and bus prescalers in the one order the hardware accepts.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if quiet {
				log.SetOutput(io.Discard)
			}
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", clk.DefaultProfile, "Built-in profile name or YAML profile file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Don't log progress")
	rootCmd.AddCommand(initCmd, planCmd, simCmd)
}

func loadProfile() (*clk.Profile, error) {
	p, err := clk.LoadProfile(profileName)
	if err != nil {
		return nil, fmt.Errorf("couldn't load profile: %w", err)
	}
	return p, nil
}

const (
	colorRed   = "\x1b[31m"
	colorReset = "\x1b[0m"
)

// colorOut returns a writer for w that understands ANSI colors: translated
// for Windows consoles, stripped when w isn't a terminal.
func colorOut(w io.Writer) io.Writer {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return colorable.NewColorable(f)
	}
	return colorable.NewNonColorable(w)
}

// reportFailure prints which stage of a failed bring-up stopped it.
func reportFailure(w io.Writer, err error) {
	var se *clk.StageError
	if errors.As(err, &se) {
		fmt.Fprintf(colorOut(w), "%sHALT:%s clock bring-up stopped at stage %q\n", colorRed, colorReset, se.Stage)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportFailure(os.Stderr, err)
		os.Exit(1)
	}
}
