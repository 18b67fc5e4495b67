package fdstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEncoding(t *testing.T) {
	tests := map[string]Encoding{
		"":         EncodingNone,
		"UTF-8":    EncodingUTF8,
		" utf8 ":   EncodingUTF8,
		"binary":   EncodingLatin1,
		"ucs2":     EncodingUTF16LE,
		"utf-16le": EncodingUTF16LE,
		"hex":      EncodingHex,
		"base64":   EncodingBase64,
		"ascii":    EncodingASCII,
	}
	for name, want := range tests {
		got, err := ParseEncoding(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseEncoding("ebcdic")
	assert.Error(t, err)
}

func TestEncoding_Encode(t *testing.T) {
	tests := []struct {
		enc  Encoding
		in   string
		want []byte
	}{
		{EncodingNone, "hé", []byte("hé")},
		{EncodingUTF8, "hé", []byte("hé")},
		{EncodingLatin1, "hé", []byte{'h', 0xe9}},
		{EncodingUTF16LE, "hé", []byte{'h', 0, 0xe9, 0}},
		{EncodingHex, "00ff", []byte{0, 0xff}},
		{EncodingBase64, "aGk=", []byte("hi")},
		{EncodingASCII, "hi", []byte("hi")},
	}
	for _, tt := range tests {
		got, err := tt.enc.Encode(tt.in)
		require.NoError(t, err, tt.enc)
		assert.Equal(t, tt.want, got, tt.enc)
	}

	_, err := EncodingHex.Encode("xyz")
	assert.Error(t, err)
	_, err = Encoding("rot13").Encode("a")
	assert.Error(t, err)
}

func decodeInPieces(enc Encoding, b []byte, size int) string {
	d := newDecoder(enc)
	var out string
	for len(b) > 0 {
		n := min(size, len(b))
		out += d.decode(b[:n])
		b = b[n:]
	}
	return out + d.flush()
}

func TestDecoder_SplitCharacters(t *testing.T) {
	utf8 := []byte("añ€😀z")
	for size := 1; size <= len(utf8); size++ {
		assert.Equal(t, "añ€😀z", decodeInPieces(EncodingUTF8, utf8, size), size)
	}

	utf16 := []byte{'h', 0, 0xe9, 0, 0x3d, 0xd8, 0x00, 0xde}
	for size := 1; size <= len(utf16); size++ {
		assert.Equal(t, "hé😀", decodeInPieces(EncodingUTF16LE, utf16, size), size)
	}

	raw := []byte("any carnal pleasure.")
	for size := 1; size <= len(raw); size++ {
		assert.Equal(t, "YW55IGNhcm5hbCBwbGVhc3VyZS4=", decodeInPieces(EncodingBase64, raw, size), size)
	}

	assert.Equal(t, "hé", decodeInPieces(EncodingLatin1, []byte{'h', 0xe9}, 1))
	assert.Equal(t, "hi\x69", decodeInPieces(EncodingASCII, []byte{'h', 'i', 0xe9}, 2))
}
