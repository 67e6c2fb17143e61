package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/edgescribe/edgescribe/internal/config"
)

func newDoctorCmd(cfgFn func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			out := cmd.OutOrStdout()
			ok := true

			check := func(name string, passed bool, detail string) {
				mark := "ok"
				if !passed {
					mark = "MISSING"
					ok = false
				}
				fmt.Fprintf(out, "%-28s %-8s %s\n", name, mark, detail)
			}

			if path, err := exec.LookPath(cfg.Whisper.Binary); err != nil {
				check("whisper binary", false, cfg.Whisper.Binary+" not found in PATH")
			} else {
				check("whisper binary", true, path)
			}
			if _, err := os.Stat(cfg.Whisper.ModelPath); err != nil {
				check("whisper model", false, cfg.Whisper.ModelPath+" not found")
			} else {
				check("whisper model", true, cfg.Whisper.ModelPath)
			}

			if path, err := exec.LookPath(cfg.Llama.Binary); err != nil {
				check("llama binary", false, cfg.Llama.Binary+" not found in PATH")
			} else {
				check("llama binary", true, path)
			}
			if _, err := os.Stat(cfg.Llama.ModelPath); err != nil {
				check("llama model", false, cfg.Llama.ModelPath+" not found")
			} else {
				check("llama model", true, cfg.Llama.ModelPath)
			}

			if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
				check("data directory", false, err.Error())
			} else {
				check("data directory", true, cfg.BaseDir)
			}

			if ok {
				fmt.Fprintln(out, "\nAll prerequisites met. Ready to record.")
			} else {
				fmt.Fprintln(out, "\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}
