package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shahcompbio/alhena-lite/internal/hmmcopy"
	"github.com/shahcompbio/alhena-lite/internal/qc"
)

var (
	projectNativeBooleans bool
	projectIndent         bool
)

var projectCmd = &cobra.Command{
	Use:   "project <dataset-dir>",
	Short: "Print the QC payload of a dataset directory",
	Long: `Load a dataset directory and print the same JSON payload the
/api/<dir> endpoint returns: GC-bias curves and cells with nested segments.

Example:
  alhena-lite project /shared/runs/SA1090 > payload.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := hmmcopy.NewDirLoader().Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		view, err := qc.Project(ds)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		payload, err := qc.BuildPayload(view, qc.Options{NativeBooleans: projectNativeBooleans})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if projectIndent {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(payload)
	},
}

func init() {
	projectCmd.Flags().BoolVar(&projectNativeBooleans, "native-booleans", false, "Encode is_contaminated as a JSON boolean")
	projectCmd.Flags().BoolVar(&projectIndent, "indent", false, "Indent the JSON output")
}
