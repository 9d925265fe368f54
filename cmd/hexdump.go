package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/billm/pezbus/pkg/trace"
	"github.com/spf13/cobra"
)

var hexdumpCmd = &cobra.Command{
	Use:   "hexdump <file|->",
	Short: "Render a file in the bus trace format",
	Long: `hexdump prints a file as the bus prints traced payloads: 16 bytes per
line with offset, hex and ASCII columns. Use "-" to read standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runHexdump,
}

func runHexdump(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	_, err = io.WriteString(cmd.OutOrStdout(), trace.Dump(data))
	return err
}

func init() {
	rootCmd.AddCommand(hexdumpCmd)
}
