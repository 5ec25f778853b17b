package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildCode(t *testing.T) {
	require.Equal(t, "BLK-BONE-25-GLD", BuildCode(TypeBone, 25, ColorGold))
	require.Equal(t, "BLK-CLOUD-30-SIL", BuildCode(TypeCloud, 30, ColorSilver))
}

func TestParseCodeRoundTrip(t *testing.T) {
	typ, size, color, err := ParseCode("BLK-HEART-20-SIL")
	require.NoError(t, err)
	require.Equal(t, TypeHeart, typ)
	require.Equal(t, 20, size)
	require.Equal(t, ColorSilver, color)
}

func TestParseCodeRejectsMalformed(t *testing.T) {
	for _, code := range []string{
		"",
		"BONE-25-GLD",
		"BLK-SQUARE-25-GLD",
		"BLK-BONE-xx-GLD",
		"BLK-BONE-0-GLD",
		"BLK-BONE-25-RED",
		"BLK-BONE-25-GLD-EXTRA",
	} {
		_, _, _, err := ParseCode(code)
		require.ErrorIs(t, err, ErrInvalidCode, "code %q", code)
	}
}

func TestValidateLevels(t *testing.T) {
	require.NoError(t, ValidateLevels(100, 300))
	require.ErrorIs(t, ValidateLevels(0, 300), ErrLevelBounds)
	require.ErrorIs(t, ValidateLevels(-5, 300), ErrLevelBounds)
	require.ErrorIs(t, ValidateLevels(100, 100), ErrLevelBounds)
	require.ErrorIs(t, ValidateLevels(300, 100), ErrLevelBounds)
}
