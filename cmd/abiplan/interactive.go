package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/native-abi/config"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/linker"
)

func newInteractiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Edit a signature and watch its calling sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := tea.NewProgram(newInteractiveModel(), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
}

type interactiveModel struct {
	err    error
	linker *linker.Linker
	plan   string
	input  textinput.Model
	upcall bool
	heap   bool
}

func newInteractiveModel() *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "(i32, {f64, f64}) -> i64"
	ti.Prompt = "signature: "
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{
		linker: linker.New(nil, nil),
		input:  ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab":
			m.upcall = !m.upcall
			m.refresh()
			return m, nil

		case "ctrl+t":
			m.heap = !m.heap
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refresh()
	return m, cmd
}

// refresh rearranges the current input.
func (m *interactiveModel) refresh() {
	m.plan, m.err = "", nil

	src := strings.TrimSpace(m.input.Value())
	if src == "" {
		return
	}
	sig, err := layout.ParseSignature(src)
	if err != nil {
		m.err = err
		return
	}

	p := &config.Plan{Name: "signature", Signature: sig, Direction: config.Downcall}
	if m.upcall {
		p.Direction = config.Upcall
	}
	p.Options.AllowHeapAccess = m.heap
	if sig.Variadic() {
		p.Options.Variadic = true
		p.Options.FirstVariadicArg = sig.FirstVariadic
	}

	cs, err := arrange(m.linker, p)
	if err != nil {
		m.err = err
		return
	}
	m.plan = renderPlan(p.Name, p, cs, true)
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SysV x86-64 planner"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	direction := "downcall"
	if m.upcall {
		direction = "upcall"
	}
	heap := "off"
	if m.heap {
		heap = "on"
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("%s • heap access %s", direction, heap)))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case m.plan != "":
		b.WriteString(m.plan)
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab downcall/upcall • ctrl+t heap access • esc quit"))
	return b.String()
}
