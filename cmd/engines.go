package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/textlens/internal/utils"
	"github.com/lehigh-university-libraries/textlens/pkg/engine"
	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Show which recognition engines are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, err := openRegistry(cmd)
		if err != nil && !errors.Is(err, recognition.ErrEngineUnavailable) && !errors.Is(err, recognition.ErrEngineInit) {
			return err
		}
		if reg != nil {
			defer reg.Close()
		}
		writeEngines(os.Stdout, reg, err)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(enginesCmd)
}

// writeEngines prints one line per known kind. reg is nil when no engine
// opened, in which case openErr explains why.
func writeEngines(w io.Writer, reg *engine.Registry, openErr error) {
	compiled := make(map[recognition.EngineKind]bool)
	for _, f := range engine.Factories() {
		compiled[f.Kind] = true
	}

	for _, kind := range recognition.AllKinds() {
		switch {
		case !compiled[kind]:
			fmt.Fprintf(w, "%-10s not compiled in\n", kind)
		case reg == nil:
			fmt.Fprintf(w, "%-10s unavailable\n", kind)
		case reg.IsAvailable(kind):
			marker := ""
			if reg.ActiveKind() == kind {
				marker = " (active)"
			}
			fmt.Fprintf(w, "%-10s available%s\n", kind, marker)
		case reg.Cause(kind) != nil:
			fmt.Fprintf(w, "%-10s unavailable: %v\n", kind, utils.MaskSensitiveError(reg.Cause(kind)))
		default:
			fmt.Fprintf(w, "%-10s not requested\n", kind)
		}
	}

	if reg == nil {
		fmt.Fprintf(w, "status: %s\n", engine.StatusNone)
		if openErr != nil {
			fmt.Fprintf(w, "error: %v\n", utils.MaskSensitiveError(openErr))
		}
		return
	}
	fmt.Fprintf(w, "status: %s\n", reg.Status())
}
