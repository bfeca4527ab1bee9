package client

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderer_Passes_Chat_Lines_Through(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	r := NewRenderer(&out, false)

	r.Render("[10:30:00] bob: hello room")

	req.Equal("[10:30:00] bob: hello room\n", out.String())
}

func TestRenderer_Passes_System_Lines_Through(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	r := NewRenderer(&out, false)

	r.Render("[10:30:00] * bob has joined")

	req.Equal("[10:30:00] * bob has joined\n", out.String())
}

func TestRenderer_Draws_The_Roster_As_A_Table(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	r := NewRenderer(&out, false)

	r.Render("[10:30:00] * online: alice, bob")

	rendered := out.String()
	req.Contains(strings.ToUpper(rendered), "ONLINE")
	req.Contains(rendered, "alice")
	req.Contains(rendered, "bob")
	// The raw frame itself is replaced by the table.
	req.NotContains(rendered, "online: alice, bob")
}

func TestRenderer_Keeps_The_Body_Intact_When_Colored(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	r := NewRenderer(&out, true)

	r.Render("[10:30:00] bob: see you at 10: sharp")

	rendered := out.String()
	// Only the first ": " separates name from body.
	req.Contains(rendered, "see you at 10: sharp")
	req.Contains(rendered, "[10:30:00] ")
}
