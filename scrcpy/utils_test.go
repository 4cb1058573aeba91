package scrcpy

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtf8TruncationIndex(t *testing.T) {
	inputs := []string{
		"",
		"plain ascii",
		"añb",
		"日本語テキスト",
		"emoji 😀 mixed é",
		string([]byte{0xf0, 0x9f, 0x98, 0x80, 0xf0, 0x9f, 0x98, 0x80}),
	}
	for _, s := range inputs {
		b := []byte(s)
		for max := 0; max <= len(b)+2; max++ {
			n := Utf8TruncationIndex(b, max)
			require.LessOrEqual(t, n, max, "%q cap %d", s, max)
			require.True(t, utf8.Valid(b[:n]), "%q cap %d gave %d", s, max, n)
			if max >= len(b) {
				assert.Equal(t, len(b), n)
			}
		}
	}
}

func TestToFixedPoint16(t *testing.T) {
	assert.Equal(t, uint16(0x0000), ToFixedPoint16(0))
	assert.Equal(t, uint16(0xffff), ToFixedPoint16(1))
	assert.Equal(t, uint16(0x8000), ToFixedPoint16(0.5))
	assert.Equal(t, uint16(0), ToFixedPoint16(-0.25))
	assert.Equal(t, uint16(0xffff), ToFixedPoint16(3))

	prev := ToFixedPoint16(0)
	for i := 1; i <= 1000; i++ {
		v := ToFixedPoint16(float32(i) / 1000)
		require.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestFixedPointRoundTrip(t *testing.T) {
	for i := 0; i <= 100; i++ {
		p := float32(i) / 100
		assert.InDelta(t, p, FromFixedPoint16(ToFixedPoint16(p)), 1.0/65535)
	}
}

func TestTextRelease(t *testing.T) {
	text := NewText("abc")
	assert.Equal(t, "abc", text.String())
	assert.Equal(t, 3, text.Len())
	text.Release()
	assert.True(t, text.Released())
	assert.Empty(t, text.Bytes())
	text.Release()

	var nilText *Text
	assert.Zero(t, nilText.Len())
	assert.NotPanics(t, nilText.Release)
}
