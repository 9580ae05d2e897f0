package mailparser

import (
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
)

// DecodeHeader decodes a MIME encoded-word header. Unknown charsets fall
// through undecoded rather than failing the whole header.
func DecodeHeader(header string) (string, error) {
	dec := new(mime.WordDecoder)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "iso-2022-jp":
			return japanese.ISO2022JP.NewDecoder().Reader(input), nil
		default:
			enc, err := htmlindex.Get(charset)
			if err != nil {
				return input, nil
			}
			return enc.NewDecoder().Reader(input), nil
		}
	}
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return "", err
	}
	return decoded, nil
}

// DecodeHeaderLossy decodes a header and falls back to the raw value when
// decoding fails. Inbound mail is best-effort.
func DecodeHeaderLossy(header string) string {
	decoded, err := DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}
