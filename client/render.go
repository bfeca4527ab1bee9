package client

import (
	"chat-relay/tcp"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Renderer turns server frames into terminal output. Chat lines keep the
// sender name highlighted, system announcements are dimmed to yellow, and
// the roster is rendered as a table.
type Renderer struct {
	out     io.Writer
	colored bool
}

func NewRenderer(out io.Writer, colored bool) *Renderer {
	return &Renderer{out: out, colored: colored}
}

func (r *Renderer) Render(line string) {
	if names := tcp.ParseRoster(line); names != nil {
		r.renderRoster(names)
		return
	}

	if !r.colored {
		fmt.Fprintln(r.out, line)
		return
	}

	if tcp.IsSystemLine(line) {
		fmt.Fprintln(r.out, color.Yellow.Sprint(line))
		return
	}
	r.renderChat(line)
}

// renderChat highlights the sender of a "[HH:MM:SS] name: body" frame.
func (r *Renderer) renderChat(line string) {
	rest := line
	prefix := ""
	if i := strings.Index(line, "] "); i >= 0 {
		prefix = line[:i+2]
		rest = line[i+2:]
	}
	name, body, ok := strings.Cut(rest, ": ")
	if !ok {
		fmt.Fprintln(r.out, line)
		return
	}
	fmt.Fprintf(r.out, "%s%s: %s\n", prefix, color.Green.Sprint(name), body)
}

func (r *Renderer) renderRoster(names []string) {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"Online"})
	for _, name := range names {
		table.Append([]string{name})
	}
	table.Render()
}
