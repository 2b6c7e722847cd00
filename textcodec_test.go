package mdict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsUTF8(t *testing.T) {
	utf8, err := lookupEncoding("UTF-8")
	require.NoError(t, err)
	require.True(t, isUTF8(utf8))

	utf16le, err := lookupEncoding("UTF-16LE")
	require.NoError(t, err)
	require.False(t, isUTF8(utf16le))
}

func TestDecodeTextUTF8(t *testing.T) {
	utf8, err := lookupEncoding("UTF-8")
	require.NoError(t, err)
	text, err := decodeText([]byte("hello"), utf8)
	require.NoError(t, err)
	require.Equal(t, "hello", text)
}

func TestToLowerAndIsLowerLetter(t *testing.T) {
	require.Equal(t, "hello", toLower("HeLLo"))
	require.True(t, isLowerLetter('a'))
	require.False(t, isLowerLetter('A'))
	require.False(t, isLowerLetter('3'))
}
