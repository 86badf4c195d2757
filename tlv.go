// Copyright 2026 The magsp00f Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emv

import (
	"encoding/hex"
	"strings"
)

// TLVEntry is a single decoded BER-TLV data object. Tag and Value alias into
// freshly copied buffers; entries are never mutated after decode.
type TLVEntry struct {
	Tag   []byte
	Value []byte
}

// TagHex returns the entry's tag as canonical uppercase hex.
func (e TLVEntry) TagHex() string {
	return strings.ToUpper(hex.EncodeToString(e.Tag))
}

// ValueHex returns the entry's value as canonical uppercase hex.
func (e TLVEntry) ValueHex() string {
	return strings.ToUpper(hex.EncodeToString(e.Value))
}

// readTag reads a BER tag starting at offset i. The low 5 bits of the first
// byte all set signals a multi-byte tag, continued while the high bit of each
// subsequent byte is set. Returns the tag bytes and the offset past the tag,
// or ok=false if the buffer ends mid-tag.
func readTag(data []byte, i int) (tag []byte, next int, ok bool) {
	if i >= len(data) {
		return nil, i, false
	}
	start := i
	if data[i]&0x1F == 0x1F {
		i++
		for i < len(data) && data[i]&0x80 == 0x80 {
			i++
		}
		i++ // final tag byte (high bit clear)
	} else {
		i++
	}
	if i > len(data) {
		return nil, start, false
	}
	tag = make([]byte, i-start)
	copy(tag, data[start:i])
	return tag, i, true
}

// readLength reads a BER length starting at offset i. Short form encodes the
// length in the low 7 bits; long form uses the low 7 bits as a count of
// subsequent big-endian length bytes.
func readLength(data []byte, i int) (length, next int, ok bool) {
	if i >= len(data) {
		return 0, i, false
	}
	b := data[i]
	i++
	if b&0x80 == 0 {
		return int(b & 0x7F), i, true
	}
	n := int(b & 0x7F)
	// More than three length bytes cannot describe a real card response and
	// would overflow the accumulator on hostile input.
	if n == 0 || n > 3 || i+n > len(data) {
		return 0, i, false
	}
	for j := 0; j < n; j++ {
		length = length<<8 | int(data[i+j])
	}
	return length, i + n, true
}

// DecodeTLV walks a BER-TLV buffer and returns the data objects it contains,
// in encounter order. The walk is deliberately lenient: a truncated or
// malformed trailer ends the walk and the entries decoded so far are
// returned, matching how card responses are consumed in practice. A
// zero-length value also ends the walk; EMV cards in the wild pad FCI
// trailers with zero bytes and treating them as data produces garbage tags.
func DecodeTLV(data []byte) []TLVEntry {
	var entries []TLVEntry
	i := 0
	for i < len(data) {
		tag, next, ok := readTag(data, i)
		if !ok {
			break
		}
		length, next, ok := readLength(data, next)
		if !ok {
			break
		}
		if length == 0 || next+length > len(data) {
			break
		}
		value := make([]byte, length)
		copy(value, data[next:next+length])
		entries = append(entries, TLVEntry{Tag: tag, Value: value})
		i = next + length
	}
	return entries
}

// DecodeTLVDeep decodes a buffer and recurses into constructed data objects
// (bit 6 of the first tag byte set), flattening the tree in encounter order.
// Constructed templates such as 6F/A5/77/70 are emitted alongside their
// primitive children so template boundaries remain visible to diagnostics.
func DecodeTLVDeep(data []byte) []TLVEntry {
	var entries []TLVEntry
	for _, e := range DecodeTLV(data) {
		entries = append(entries, e)
		if len(e.Tag) > 0 && e.Tag[0]&0x20 == 0x20 {
			entries = append(entries, DecodeTLVDeep(e.Value)...)
		}
	}
	return entries
}

// EncodeTLV assembles tag+length+value using short-form length encoding.
// Values in this system never exceed 127 bytes per field; longer values
// return nil so a caller cannot silently emit a malformed frame.
func EncodeTLV(tag, value []byte) []byte {
	if len(value) > 0x7F {
		return nil
	}
	out := make([]byte, 0, len(tag)+1+len(value))
	out = append(out, tag...)
	out = append(out, byte(len(value)))
	out = append(out, value...)
	return out
}

// TagMap folds decoded entries into a tag→value hex map. Later entries
// overwrite earlier ones sharing a tag (last-writer-wins), which is the merge
// rule the read session relies on when the same tag appears in several
// records.
func TagMap(entries []TLVEntry) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.TagHex()] = e.ValueHex()
	}
	return m
}

// FindTag returns the first value for the given tag (uppercase hex) in a
// deep decode of data, or nil if the tag is absent.
func FindTag(data []byte, tagHex string) []byte {
	tagHex = strings.ToUpper(tagHex)
	for _, e := range DecodeTLVDeep(data) {
		if e.TagHex() == tagHex {
			return e.Value
		}
	}
	return nil
}

// FindAllTags returns every value for the given tag in a deep decode of
// data, in encounter order.
func FindAllTags(data []byte, tagHex string) [][]byte {
	tagHex = strings.ToUpper(tagHex)
	var values [][]byte
	for _, e := range DecodeTLVDeep(data) {
		if e.TagHex() == tagHex {
			values = append(values, e.Value)
		}
	}
	return values
}
