package auth

import (
	"chat-relay/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateName_Accepts_A_Simple_Name(t *testing.T) {
	req := require.New(t)

	name, err := ValidateName("alice")

	req.NoError(err)
	req.Equal("alice", name)
}

func TestValidateName_Trims_Surrounding_Whitespace(t *testing.T) {
	req := require.New(t)

	name, err := ValidateName("  bob\r\n")

	req.NoError(err)
	req.Equal("bob", name)
}

func TestValidateName_Rejects_Bad_Names(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"blank":            "   ",
		"too long":         strings.Repeat("a", 33),
		"inner space":      "mary jane",
		"reserved colon":   "al:ce",
		"command prefix":   "/quit",
		"control chars":    "al\x07ce",
		"tab inside":       "al\tce",
	}

	for label, raw := range cases {
		t.Run(label, func(t *testing.T) {
			req := require.New(t)

			name, err := ValidateName(raw)

			req.ErrorIs(err, errors.ErrInvalidName)
			req.Empty(name)
		})
	}
}

func TestValidateName_Accepts_The_Maximum_Length(t *testing.T) {
	req := require.New(t)

	raw := strings.Repeat("a", 32)
	name, err := ValidateName(raw)

	req.NoError(err)
	req.Equal(raw, name)
}
