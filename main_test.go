package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/Jon-Bright/samclk/clk"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	savedProfile, savedSim, savedQuiet := profileName, simOpts, quiet
	t.Cleanup(func() {
		profileName, simOpts, quiet = savedProfile, savedSim, savedQuiet
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "-q"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlan(t *testing.T) {
	out, err := run(t, "plan")
	if err != nil {
		t.Fatalf("plan failed: %v\n%s", err, out)
	}
	for _, want := range []string{"profile     samd21-48m", "dfll48m     48005120 Hz (target 48000000 Hz, +106.7 ppm)", "cpu         48005120 Hz"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestSim(t *testing.T) {
	out, err := run(t, "sim", "--trace")
	if err != nil {
		t.Fatalf("sim failed: %v\n%s", err, out)
	}
	if strings.Contains(out, "FAULT") {
		t.Errorf("sim reported faults:\n%s", out)
	}
	if !strings.Contains(out, "W GCLK.GENCTRL") || !strings.Contains(out, "gclk0 48005120 Hz") {
		t.Errorf("sim output incomplete:\n%s", out)
	}
}

func TestSimMissingProfile(t *testing.T) {
	_, err := run(t, "sim", "-p", "/nonexistent/board.yaml")
	if err == nil {
		t.Errorf("sim with a missing profile succeeded")
	}
}

// Flags set by one invocation mustn't leak into the next.
func TestFlagsRestored(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		if _, err := run(t, "plan", "-p", "/nonexistent/board.yaml"); err == nil {
			t.Errorf("plan with a missing profile succeeded")
		}
	})
	if profileName != "samd21-48m" {
		t.Errorf("profile flag leaked, got: %q", profileName)
	}
	if _, err := run(t, "plan"); err != nil {
		t.Errorf("plan after a failed run failed: %v", err)
	}
}

func TestReportFailure(t *testing.T) {
	_, err := run(t, "sim", "--dfll-lock=-1")
	if err == nil {
		t.Fatalf("sim with a stuck lock flag succeeded")
	}
	var b bytes.Buffer
	reportFailure(&b, err)
	if got, want := b.String(), "HALT: clock bring-up stopped at stage \"multiplier closed loop\"\n"; got != want {
		t.Errorf("reportFailure incorrect, got: %q, want %q", got, want)
	}
}

func TestSimFaultOutput(t *testing.T) {
	// Without waiting for lock GCLK0 switches to a DFLL48M that is still locking.
	fn := filepath.Join(t.TempDir(), "bad.yaml")
	p, err := clk.LoadProfile(clk.DefaultProfile)
	if err != nil {
		t.Fatalf("Failed to load default profile: %v", err)
	}
	p.Multiplier.WaitForLock = false
	b, err := yaml.Marshal(p)
	if err != nil {
		t.Fatalf("Failed to marshal profile: %v", err)
	}
	if err := os.WriteFile(fn, b, 0644); err != nil {
		t.Fatalf("Failed to write profile: %v", err)
	}
	out, err := run(t, "sim", "-p", fn)
	if err == nil {
		t.Fatalf("sim switching GCLK0 to an unlocked DFLL48M succeeded:\n%s", out)
	}
	if !strings.Contains(out, "FAULT: generator 0 enabled on source") {
		t.Errorf("fault line missing:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("color escapes written to a non-terminal:\n%q", out)
	}
}

func TestColorOut(t *testing.T) {
	var b bytes.Buffer
	fmt.Fprintf(colorOut(&b), "%sHALT:%s stopped\n", colorRed, colorReset)
	if got, want := b.String(), "HALT: stopped\n"; got != want {
		t.Errorf("colorOut didn't strip escapes, got: %q, want %q", got, want)
	}
}
