package render

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/certmail/internal/errors"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		input    string
		expected color.NRGBA
	}{
		{"#000000", color.NRGBA{A: 0xff}},
		{"#1a2B3c", color.NRGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 0xff}},
		{"ff8800", color.NRGBA{R: 0xff, G: 0x88, A: 0xff}},
		{"#f80", color.NRGBA{R: 0xff, G: 0x88, A: 0xff}},
		{"12, 34, 56", color.NRGBA{R: 12, G: 34, B: 56, A: 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestParseColor_Invalid(t *testing.T) {
	for _, input := range []string{"", "#12345", "#gggggg", "1,2", "1,2,300", "red"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseColor(input)
			require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestCaseTransform_Apply(t *testing.T) {
	require.Equal(t, "ALICE LEE", CaseUpper.Apply("Alice Lee"))
	require.Equal(t, "Alice Lee", CaseTitle.Apply("alice lee"))
	require.Equal(t, "Alice Lee", CaseTransform("").Apply("ALICE LEE"))
	require.Equal(t, "Alice Lee", CaseNone.Apply("Alice Lee"))
}

func TestStyle_Validate(t *testing.T) {
	require.NoError(t, Style{FontSize: 12.5, Case: CaseUpper}.Validate())
	require.Error(t, Style{FontSize: 0}.Validate())
	require.Error(t, Style{FontSize: 10, Case: "lower"}.Validate())
}
