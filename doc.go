/*

Package mdict is a read-only decoder and lookup engine for the
MDX/MDD dictionary file family (format versions 1.x and 2.x) produced
by the MDict toolchain. An MDX file stores a sorted set of string keys
mapped to HTML definitions; an MDD file stores the same kind of index
mapped to raw resource bytes (fonts, images, audio) referenced by the
definitions.

Open an MDX file; sibling MDD resource files (name.mdd, name.1.mdd,
name.2.mdd, ...) are discovered automatically:

	dict, err := mdict.Open("dictionary.mdx")
	if err != nil {
		// ...
	}
	defer dict.Close()

	definition, ok, err := dict.Lookup("hello")

	image, ok, err := dict.Resource("\\images\\hello.png")

This package never writes MDX/MDD files, never performs full-text or
fuzzy search, and rejects any archive declaring engine version 3 or
above.

Information sources:

- MDX/MDD file format notes collected by the mdict community:
https://bitbucket.org/xwang/mdict-analysis

- zangloo/mdict, a Rust implementation of this same format, used here
to resolve the handful of places the public format notes leave
ambiguous (the UTF-16LE payload NUL-termination quirk documented on
RecordOffset and sliceMDXPayload).

*/
package mdict
