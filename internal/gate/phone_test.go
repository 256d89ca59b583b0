package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePhone_DigitCounts(t *testing.T) {
	for n := 0; n <= 14; n++ {
		raw := "(" + strings.Repeat("9", n) + ")"
		err := ValidatePhone(raw)
		switch {
		case n == 10 || n == 11:
			require.NoError(t, err, "digits=%d", n)
		default:
			require.ErrorIs(t, err, ErrInvalidPhone, "digits=%d", n)
		}
	}
}

func TestValidatePhone_Blank(t *testing.T) {
	require.ErrorIs(t, ValidatePhone("   "), ErrPhoneRequired)
	require.ErrorIs(t, ValidatePhone(""), ErrPhoneRequired)
}

func TestNormalizePhone(t *testing.T) {
	require.Equal(t, "11999998888", NormalizePhone("(11) 99999-8888"))
	require.Equal(t, "1133334444", NormalizePhone("+ 11 3333 4444"))
	require.Empty(t, NormalizePhone("abc"))
}

func TestFormatPhone(t *testing.T) {
	cases := map[string]string{
		"11999998888":     "(11) 99999-8888",
		"1133334444":      "(11) 3333-4444",
		"113333":          "(11) 3333",
		"1133":            "1133",
		"(11) 99999-8888": "(11) 99999-8888",
		"119999988887777": "(11) 99999-8888",
	}
	for in, want := range cases {
		require.Equal(t, want, FormatPhone(in), in)
	}
}
