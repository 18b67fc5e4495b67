package fdstream

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names the text conversion applied to chunks. The zero value
// means raw bytes.
type Encoding string

const (
	EncodingNone    Encoding = ""
	EncodingUTF8    Encoding = "utf8"
	EncodingASCII   Encoding = "ascii"
	EncodingLatin1  Encoding = "latin1"
	EncodingUTF16LE Encoding = "utf16le"
	EncodingHex     Encoding = "hex"
	EncodingBase64  Encoding = "base64"
)

var encodingAliases = map[string]Encoding{
	"":         EncodingNone,
	"buffer":   EncodingNone,
	"raw":      EncodingNone,
	"utf8":     EncodingUTF8,
	"utf-8":    EncodingUTF8,
	"ascii":    EncodingASCII,
	"latin1":   EncodingLatin1,
	"binary":   EncodingLatin1,
	"utf16le":  EncodingUTF16LE,
	"utf-16le": EncodingUTF16LE,
	"ucs2":     EncodingUTF16LE,
	"ucs-2":    EncodingUTF16LE,
	"hex":      EncodingHex,
	"base64":   EncodingBase64,
}

// ParseEncoding resolves an encoding name, accepting the usual aliases.
func ParseEncoding(name string) (Encoding, error) {
	enc, ok := encodingAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return EncodingNone, errors.Errorf("unknown encoding %q", name)
	}
	return enc, nil
}

func (e Encoding) textEncoding() encoding.Encoding {
	switch e {
	case EncodingUTF8:
		return unicode.UTF8
	case EncodingASCII:
		return asciiEncoding{}
	case EncodingLatin1:
		return charmap.ISO8859_1
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	}
	return nil
}

// Encode converts s to the bytes it denotes in e.
func (e Encoding) Encode(s string) ([]byte, error) {
	switch e {
	case EncodingNone, EncodingUTF8:
		return []byte(s), nil
	case EncodingHex:
		b, err := hex.DecodeString(s)
		return b, errors.Wrap(err, "decode hex chunk")
	case EncodingBase64:
		b, err := base64.StdEncoding.DecodeString(s)
		return b, errors.Wrap(err, "decode base64 chunk")
	}
	if te := e.textEncoding(); te != nil {
		b, _, err := transform.Bytes(te.NewEncoder(), []byte(s))
		return b, errors.Wrapf(err, "encode %s chunk", e)
	}
	return nil, errors.Errorf("unknown encoding %q", string(e))
}

// decoder turns a byte stream into text, carrying partial characters or
// groups over to the next chunk.
type decoder struct {
	enc   Encoding
	t     transform.Transformer
	carry []byte
}

func newDecoder(enc Encoding) *decoder {
	d := &decoder{enc: enc}
	if te := enc.textEncoding(); te != nil {
		d.t = te.NewDecoder()
	}
	return d
}

func (d *decoder) decode(p []byte) string {
	switch d.enc {
	case EncodingHex:
		return hex.EncodeToString(p)
	case EncodingBase64:
		buf := append(d.carry, p...)
		n := len(buf) - len(buf)%3
		d.carry = append([]byte(nil), buf[n:]...)
		return base64.StdEncoding.EncodeToString(buf[:n])
	}
	return d.transform(p, false)
}

// flush returns whatever text is still held back at end of stream.
func (d *decoder) flush() string {
	switch d.enc {
	case EncodingHex:
		return ""
	case EncodingBase64:
		s := base64.StdEncoding.EncodeToString(d.carry)
		d.carry = nil
		return s
	}
	return d.transform(nil, true)
}

func (d *decoder) transform(p []byte, atEOF bool) string {
	if d.t == nil {
		return ""
	}
	src := append(d.carry, p...)
	d.carry = nil
	var sb strings.Builder
	dst := make([]byte, 4*len(src)+16)
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		sb.Write(dst[:nDst])
		src = src[nSrc:]
		switch err {
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			d.carry = append([]byte(nil), src...)
		}
		return sb.String()
	}
}

// asciiEncoding strips the high bit, matching the classic "ascii" decoding.
type asciiEncoding struct{}

func (asciiEncoding) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: asciiTransformer{}}
}

func (asciiEncoding) NewEncoder() *encoding.Encoder {
	return charmap.ISO8859_1.NewEncoder()
}

type asciiTransformer struct{ transform.NopResetter }

func (asciiTransformer) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = src[nSrc] & 0x7f
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}
