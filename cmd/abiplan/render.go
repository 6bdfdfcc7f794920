package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/binding"
	"github.com/wippyai/native-abi/config"
	"github.com/wippyai/native-abi/linker"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	moveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD580"))

	bufferStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DDA0DD"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// arrange computes the calling sequence of one plan.
func arrange(l *linker.Linker, p *config.Plan) (*binding.CallingSequence, error) {
	desc := p.Signature.Descriptor
	mt := abi.MethodTypeOf(desc)
	if p.Upcall() {
		sf, err := l.ArrangeUpcall(mt, desc, p.Options)
		if err != nil {
			return nil, err
		}
		return sf.CallingSequence(), nil
	}
	h, err := l.ArrangeDowncall(mt, desc, p.Options)
	if err != nil {
		return nil, err
	}
	return h.CallingSequence(), nil
}

// renderPlan formats a calling sequence, styled for terminals.
func renderPlan(name string, p *config.Plan, cs *binding.CallingSequence, styled bool) string {
	if !styled {
		return fmt.Sprintf("%s %s %s\n%s\n", name, p.Direction, p.Signature, cs)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(name))
	b.WriteString(" ")
	b.WriteString(typeStyle.Render(p.Signature.String()))
	b.WriteString(" ")
	b.WriteString(helpStyle.Render(string(p.Direction)))
	b.WriteString("\n")

	var flags []string
	if cs.IsInMemoryReturn {
		flags = append(flags, "in-memory return")
	}
	if cs.Variadic {
		flags = append(flags, fmt.Sprintf("variadic, %d vector args", cs.NVectorArgs))
	}
	flags = append(flags, fmt.Sprintf("frame %d bytes", cs.FrameSize))
	b.WriteString(helpStyle.Render(strings.Join(flags, " • ")))
	b.WriteString("\n\n")

	for i, arg := range cs.Args {
		writeArgument(&b, argLabel(cs, i), arg)
	}
	if cs.Return != nil {
		writeArgument(&b, "return", *cs.Return)
	}
	return b.String()
}

func writeArgument(b *strings.Builder, label string, arg binding.ArgumentBindings) {
	b.WriteString("  ")
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-8s", label)))
	b.WriteString(typeStyle.Render(fmt.Sprintf("%-10s", arg.Carrier)))
	if arg.Layout != nil {
		b.WriteString(typeStyle.Render(arg.Layout.String()))
	}
	b.WriteString("\n")
	for _, bd := range arg.Bindings {
		b.WriteString("      ")
		b.WriteString(styleBinding(bd))
		b.WriteString("\n")
	}
}

func styleBinding(b binding.Binding) string {
	switch b.Op {
	case binding.OpVMStore, binding.OpVMLoad:
		return moveStyle.Render(b.String())
	case binding.OpBufferLoad, binding.OpBufferStore, binding.OpAllocate:
		return bufferStyle.Render(b.String())
	default:
		return b.String()
	}
}

// argLabel names argument i, marking the synthetic ones.
func argLabel(cs *binding.CallingSequence, i int) string {
	switch {
	case cs.IsInMemoryReturn && i == 0:
		return "retbuf"
	case cs.Variadic && !cs.ForUpcall && i == len(cs.Args)-1:
		return "nvec"
	case cs.IsInMemoryReturn:
		return fmt.Sprintf("arg%d", i-1)
	default:
		return fmt.Sprintf("arg%d", i)
	}
}
