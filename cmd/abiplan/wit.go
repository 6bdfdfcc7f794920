package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/native-abi/config"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/linker"
	"github.com/wippyai/native-abi/witsig"
)

func newWitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wit [flags] 'func(...) -> type'",
		Short: "Print the calling sequence of a WIT function type",
		Long:  `Wit lowers a WIT function type to C layouts and arranges the result`,
		Args:  cobra.ExactArgs(1),
		RunE:  runWit,
	}
	cmd.Flags().Bool("upcall", false, "arrange an upcall instead of a downcall")
	cmd.Flags().String("out", "", "write the msgpack-encoded calling sequence to this file")
	return cmd
}

func runWit(cmd *cobra.Command, args []string) error {
	f, err := witsig.ParseFunc(args[0])
	if err != nil {
		return err
	}
	p, err := witPlan(f)
	if err != nil {
		return err
	}
	if up, _ := cmd.Flags().GetBool("upcall"); up {
		p.Direction = config.Upcall
	}

	cs, err := arrange(linker.New(nil, nil), p)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderPlan(f.String(), p, cs, useColor(cmd, os.Stdout)))

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		return writePlan(out, cs)
	}
	return nil
}

func witPlan(f *witsig.Func) (*config.Plan, error) {
	desc, err := witsig.NewConverter().Descriptor(f)
	if err != nil {
		return nil, err
	}
	return &config.Plan{
		Name:      f.String(),
		Signature: &layout.Signature{Descriptor: desc, FirstVariadic: -1},
		Direction: config.Downcall,
	}, nil
}
