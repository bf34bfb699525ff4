package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"indicator frame", "ST,GS,+00123.45 kg", "123.45"},
		{"negative integer", "-12", "-12"},
		{"plain", "123.45", "123.45"},
		{"padded with unit", "  +00123.45 kg\r\n", "123.45"},
		{"thousands separator", "1,234.5 g", "1234.5"},
		{"first number wins", "W1 20.5", "1"},
		{"seven digit cap", "12345678", "1234567"},
		{"leading noise", "ERR?? net -0.50kg", "-0.50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, ok := Parse(tc.raw)
			require.True(t, ok)
			assert.Equal(t, tc.want, d.Text('f'))
		})
	}
}

func TestParseAbsent(t *testing.T) {
	for _, raw := range []string{"", "   ", "no digits here", "ST,GS,kg", "+-."} {
		d, ok := Parse(raw)
		assert.False(t, ok, "raw %q", raw)
		assert.Nil(t, d, "raw %q", raw)
	}
}

func TestParseIsRepeatable(t *testing.T) {
	const raw = "ST,GS,+00123.45 kg"
	first, ok := Parse(raw)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, ok := Parse(raw)
		require.True(t, ok)
		assert.Equal(t, 0, first.Cmp(again))
		assert.NotSame(t, first, again)
	}
}
