package mdict

import (
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// version is the MDX/MDD engine-version dialect, see spec.md §4.3/§4.4.
type version int

const (
	v1 version = iota
	v2
)

// fileHeader is the transient result of parsing the UTF-16LE
// attribute blob at the start of the archive; it is discarded once
// the loader completes (spec.md §3 "Header (transient)").
type fileHeader struct {
	version   version
	encrypted int
	encoding  encoding.Encoding
	title     string
}

// readHeader reads the length-prefixed UTF-16LE attribute blob and
// extracts the fields the rest of the loader needs.
func readHeader(r io.Reader, isMDD bool) (*fileHeader, error) {
	blob, err := readLenPrefixed(r, "header")
	if err != nil {
		return nil, err
	}

	text, err := decodeUTF16LE(blob)
	if err != nil {
		return nil, &ErrInvalidData{Reason: "header blob is not valid UTF-16LE"}
	}
	attrs := parseAttrs(text)

	rawVersion, ok := attrs["GeneratedByEngineVersion"]
	if !ok {
		return nil, ErrNoVersion
	}
	rawVersion = strings.TrimSpace(rawVersion)
	if len(rawVersion) == 0 {
		return nil, &ErrInvalidVersion{Raw: rawVersion}
	}
	digit, err := strconv.Atoi(rawVersion[0:1])
	if err != nil {
		return nil, &ErrInvalidVersion{Raw: rawVersion}
	}

	var ver version
	switch digit {
	case 1:
		ver = v1
	case 2:
		ver = v2
	default:
		if digit >= 3 {
			return nil, &ErrUnsupportedVersion{N: digit}
		}
		return nil, &ErrInvalidVersion{Raw: rawVersion}
	}

	encrypted := 0
	if raw, ok := attrs["Encrypted"]; ok {
		if raw == "Yes" {
			encrypted = 1
		} else if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			encrypted = n
		}
	}

	var enc encoding.Encoding
	switch {
	case isMDD:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case attrs["Encoding"] != "":
		enc, err = lookupEncoding(attrs["Encoding"])
		if err != nil {
			return nil, &ErrInvalidEncoding{Label: attrs["Encoding"]}
		}
	default:
		enc, _ = lookupEncoding("UTF-8")
	}

	return &fileHeader{version: ver, encrypted: encrypted, encoding: enc, title: attrs["Title"]}, nil
}

// lookupEncoding resolves an arbitrary IANA/WHATWG label to a decoder,
// the "labelled encoding registry" spec.md §4.1/§4.3 requires.
func lookupEncoding(label string) (encoding.Encoding, error) {
	if strings.EqualFold(label, "UTF-8") || strings.EqualFold(label, "UTF8") {
		return unicode.UTF8, nil
	}
	if strings.EqualFold(label, "UTF-16LE") || strings.EqualFold(label, "UTF16LE") {
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, &ErrInvalidEncoding{Label: label}
	}
	return enc, nil
}

// decodeUTF16LE decodes the header blob, which is always UTF-16LE
// regardless of the payload encoding declared inside it.
func decodeUTF16LE(b []byte) (string, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// parseAttrs scans a flat name="value" attribute blob, keeping the
// last occurrence of each name (spec.md §4.3). Values may contain
// newlines. This hand-written scanner replaces the Rust original's
// regex (`(\w+)="((.|\r\n|[\r\n])*?)"`, see original_source's
// read_keys) since no regex dependency appears anywhere else in this
// module's stack.
func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	i := 0
	n := len(s)
	for i < n {
		// Skip to the next identifier-looking run followed by `="`.
		start := i
		for i < n && isWordByte(s[i]) {
			i++
		}
		if i == start {
			i++
			continue
		}
		name := s[start:i]
		if i+1 >= n || s[i] != '=' || s[i+1] != '"' {
			continue
		}
		i += 2
		valStart := i
		for i < n && s[i] != '"' {
			i++
		}
		if i >= n {
			break
		}
		attrs[name] = s[valStart:i]
		i++ // consume closing quote
	}
	return attrs
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// keyBlockHeader is the decoded V1 (16-byte) or V2 (40-byte, checksummed)
// header preceding the key-block-info table, spec.md §4.4.
type keyBlockHeader struct {
	blockInfoSize int
	keyBlockSize  int
}

func readKeyBlockHeaderV1(r io.Reader) (*keyBlockHeader, error) {
	buf, err := readBuf(r, 16)
	if err != nil {
		return nil, err
	}
	return &keyBlockHeader{
		blockInfoSize: int(binary.BigEndian.Uint32(buf[8:12])),
		keyBlockSize:  int(binary.BigEndian.Uint32(buf[12:16])),
	}, nil
}

func readKeyBlockHeaderV2(r io.Reader) (*keyBlockHeader, error) {
	buf, err := readBuf(r, 40)
	if err != nil {
		return nil, err
	}
	var checksum uint32
	if err := binary.Read(r, binary.BigEndian, &checksum); err != nil {
		return nil, err
	}
	if err := checkAdler32(buf, checksum, "header"); err != nil {
		return nil, err
	}
	return &keyBlockHeader{
		blockInfoSize: int(binary.BigEndian.Uint64(buf[24:32])),
		keyBlockSize:  int(binary.BigEndian.Uint64(buf[32:40])),
	}, nil
}

func readKeyBlockHeader(r io.Reader, v version) (*keyBlockHeader, error) {
	if v == v1 {
		return readKeyBlockHeaderV1(r)
	}
	return readKeyBlockHeaderV2(r)
}
