package numbering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	issued := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		template string
		want     string
	}{
		{template: "{SEQ}", want: "42"},
		{template: "INV-{YYYY}{MM}{DD}-{SEQ6}", want: "INV-20240307-000042"},
		{template: "{YY}/{SEQ3}", want: "24/042"},
	}
	for _, tc := range cases {
		got, err := FormatNumber(tc.template, issued, 42)
		require.NoError(t, err, tc.template)
		assert.Equal(t, tc.want, got)
	}
}

func TestFormatNumberRejectsBadInput(t *testing.T) {
	issued := time.Now()

	_, err := FormatNumber("", issued, 1)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = FormatNumber("{SEQ}", issued, 0)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = FormatNumber("INV-{NOPE}", issued, 1)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
