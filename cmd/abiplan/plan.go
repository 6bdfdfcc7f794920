package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/native-abi/binding"
	"github.com/wippyai/native-abi/config"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/linker"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [flags] signature|name",
		Short: "Print the calling sequence of one signature",
		Long:  `Plan arranges a signature given as text, or the catalogue entry of that name when --config is set`,
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
	cmd.Flags().Bool("upcall", false, "arrange an upcall instead of a downcall")
	cmd.Flags().Bool("heap-access", false, "pass heap segments as base and offset pairs")
	cmd.Flags().String("out", "", "write the msgpack-encoded calling sequence to this file")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := resolvePlan(cmd, cfg, args[0])
	if err != nil {
		return err
	}

	cs, err := arrange(linker.New(nil, nil), p)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderPlan(p.Name, p, cs, useColor(cmd, os.Stdout)))

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return nil
	}
	return writePlan(out, cs)
}

// resolvePlan finds arg in the catalogue or parses it as a signature, then
// applies the command line flags that were set explicitly.
func resolvePlan(cmd *cobra.Command, cfg *config.Config, arg string) (*config.Plan, error) {
	var p *config.Plan
	if cfg != nil {
		if found, err := cfg.Lookup(arg); err == nil {
			p = found
		}
	}
	if p == nil {
		sig, err := layout.ParseSignature(arg)
		if err != nil {
			return nil, err
		}
		p = &config.Plan{Name: "signature", Signature: sig, Direction: config.Downcall}
		if cfg != nil {
			p.Options.AllowHeapAccess = cfg.Defaults.AllowHeapAccess
			if cfg.Defaults.Direction != "" {
				p.Direction = cfg.Defaults.Direction
			}
		}
		if sig.Variadic() {
			p.Options.Variadic = true
			p.Options.FirstVariadicArg = sig.FirstVariadic
		}
	}

	if cmd.Flags().Changed("upcall") {
		up, _ := cmd.Flags().GetBool("upcall")
		p.Direction = config.Downcall
		if up {
			p.Direction = config.Upcall
		}
	}
	if cmd.Flags().Changed("heap-access") {
		p.Options.AllowHeapAccess, _ = cmd.Flags().GetBool("heap-access")
	}
	return p, nil
}

func writePlan(path string, cs *binding.CallingSequence) error {
	data, err := binding.Marshal(cs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}
