// Command abiplan computes SysV x86-64 calling sequences for C signatures.
//
//	abiplan plan "(i32, {f64, f64}) -> {i64, i64, i64}"
//	abiplan plan --upcall --out compare.plan "(ptr, ptr) -> i32"
//	abiplan batch --config signatures.toml
//	abiplan wit "func(name: string) -> result<u64, string>"
//	abiplan interactive
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/native-abi/config"
	"github.com/wippyai/native-abi/linker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "abiplan",
		Short:             "Compute native calling sequences",
		Long:              `abiplan classifies C signatures under the SysV x86-64 ABI and prints the register and stack bindings of each argument and return value`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
	}

	root.PersistentFlags().Bool("verbose", false, "log arrangements to stderr")
	root.PersistentFlags().String("config", "", "TOML signature catalogue")
	root.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	root.AddCommand(newPlanCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newWitCmd())
	root.AddCommand(newInteractiveCmd())
	return root
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	if !verbose {
		return nil
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	linker.SetLogger(l)
	return nil
}

// loadConfig returns the catalogue named by --config, or nil.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	return config.Load(path)
}

// useColor reports whether output to f should be styled.
func useColor(cmd *cobra.Command, f *os.File) bool {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		return true
	case "off":
		return false
	}
	return cmd.OutOrStdout() == os.Stdout && isTerminal(f)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
