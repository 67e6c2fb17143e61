// edgescribe records meetings, transcribes them with a local Whisper
// model, and summarizes them with a local LLM.
package main

import (
	"os"

	"github.com/edgescribe/edgescribe/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
