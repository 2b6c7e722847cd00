package mdict

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// dictState is the engine handle state machine of spec.md §4.6:
// Unopened → Opening → Ready → Closed. Opening failures collapse back
// to Unopened (no partial Ready), which in this implementation simply
// means Open never returns a non-nil *Dict on error.
type dictState int

const (
	stateReady dictState = iota
	stateClosed
)

// Dict is an opened MDX dictionary and its discovered MDD resource
// siblings (spec.md §3 "Engine handle", §6 "open"). The zero value is
// not usable; construct with Open.
//
// A Dict is not safe for concurrent lookups: every Lookup/Resource
// call may reposition the underlying file cursor, matching spec.md §5
// ("lookup is &mut-equivalent"). Open independent Dicts for concurrent
// readers.
type Dict struct {
	primary   *archive
	resources []*archive
	state     dictState
}

// Open opens the primary dictionary file at path — an .mdx or .mdd —
// and, if the primary is an .mdx, eagerly discovers sibling resource
// files name.mdd, name.1.mdd, name.2.mdd, ... until the first gap
// (spec.md §6, §9 "Sibling discovery"). The returned Dict must be
// closed with Close.
func Open(path string, opts ...Option) (*Dict, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	isMDX := strings.EqualFold(filepath.Ext(path), ".mdx")

	primary, err := loadArchive(f, isMDX, o.normalize, o.cachePayloads)
	if err != nil {
		f.Close()
		return nil, err
	}
	primary.file = f

	d := &Dict{primary: primary, state: stateReady}

	if isMDX {
		siblings, err := openResourceSiblings(path, o)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.resources = siblings
	}

	return d, nil
}

// OpenReader opens the primary dictionary content from an in-memory
// or otherwise non-file io.ReadSeeker, mirroring icza/mpq's New
// (as opposed to NewFromFile). Since there is no path, MDD sibling
// discovery is skipped; use Open for that. isMDX selects MDX-mode
// (UTF-8/declared-encoding payloads) versus MDD-mode (forced
// UTF-16LE, no sibling discovery applicable by definition).
func OpenReader(r io.ReadSeeker, isMDX bool, opts ...Option) (*Dict, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	primary, err := loadArchive(r, isMDX, o.normalize, o.cachePayloads)
	if err != nil {
		return nil, err
	}
	return &Dict{primary: primary, state: stateReady}, nil
}

// openResourceSiblings resolves and opens name.mdd, name.1.mdd,
// name.2.mdd, ... relative to the canonicalized parent directory of
// path, stopping at the first missing index (spec.md §6, §9).
func openResourceSiblings(path string, o *options) ([]*archive, error) {
	dir, base, err := splitCanonical(path)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if !utf8.ValidString(stem) {
		return nil, &ErrInvalidPath{Path: path}
	}

	var siblings []*archive
	for i := 0; ; i++ {
		var name string
		if i == 0 {
			name = stem + ".mdd"
		} else {
			name = fmt.Sprintf("%s.%d.mdd", stem, i)
		}
		full := filepath.Join(dir, name)

		f, err := os.Open(full)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return nil, err
		}

		a, err := loadArchive(f, false, o.normalize, o.cacheResources)
		if err != nil {
			f.Close()
			return nil, err
		}
		a.file = f
		siblings = append(siblings, a)
	}
	return siblings, nil
}

// splitCanonical canonicalizes path's parent directory and returns it
// alongside path's base name, failing with ErrInvalidPath if path has
// no parent directory.
func splitCanonical(path string) (dir, base string, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", &ErrInvalidPath{Path: path}
	}
	parent := filepath.Dir(absPath)
	if parent == "" {
		return "", "", &ErrInvalidPath{Path: path}
	}
	resolved, err := filepath.EvalSymlinks(parent)
	if err != nil {
		resolved = parent // parent may not exist yet in tests using in-memory readers
	}
	return resolved, filepath.Base(absPath), nil
}

// Lookup searches the primary MDX for word under the active
// normalizer and returns its decoded definition payload (spec.md §6
// "lookup").
func (d *Dict) Lookup(word string) ([]byte, bool, error) {
	if d.state == stateClosed {
		return nil, false, io.ErrClosedPipe
	}
	if !d.primary.isMDX {
		return nil, false, &ErrInvalidData{Reason: "Lookup called on an MDD-only Dict"}
	}
	return d.primary.lookup(word)
}

// LookupString is a convenience wrapper over Lookup that decodes the
// result under the dictionary's declared payload encoding, mirroring
// the Rust original's lookup_as_string (original_source/mdict/src/
// parser.rs).
func (d *Dict) LookupString(word string) (string, bool, error) {
	payload, ok, err := d.Lookup(word)
	if err != nil || !ok {
		return "", ok, err
	}
	text, err := decodeText(payload, d.primary.encoding)
	if err != nil {
		return "", false, &ErrInvalidData{Reason: "definition is not valid under its declared encoding"}
	}
	return text, true, nil
}

// Resource searches each loaded MDD sibling in order for path, first
// hit wins, and returns its raw bytes (spec.md §6 "get_resource").
func (d *Dict) Resource(path string) ([]byte, bool, error) {
	if d.state == stateClosed {
		return nil, false, io.ErrClosedPipe
	}
	for _, res := range d.resources {
		payload, ok, err := res.lookup(path)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return payload, true, nil
		}
	}
	return nil, false, nil
}

// Title returns the dictionary's declared title, or the empty string
// if the header carried none (spec.md §6 "title").
func (d *Dict) Title() string {
	return d.primary.title
}

// Close releases the primary file and every discovered resource
// sibling.
func (d *Dict) Close() error {
	if d.state == stateClosed {
		return nil
	}
	d.state = stateClosed

	var firstErr error
	if err := d.primary.close(); err != nil {
		firstErr = err
	}
	for _, res := range d.resources {
		if err := res.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
