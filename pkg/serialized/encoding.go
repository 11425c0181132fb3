// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package serialized

import (
	"strings"

	"github.com/pingcap/fexec/pkg/errors"
)

// Encoding describes how the bytes of a serialized object are produced.
type Encoding int32

// Encodings known to the executor.
const (
	EncodingUnknown Encoding = iota
	EncodingUTF8JSON
	EncodingUTF8Text
	// EncodingBinary is msgpack.
	EncodingBinary
	EncodingBinaryZip
	EncodingRaw
)

var encodingNames = map[Encoding]string{
	EncodingUnknown:   "unknown",
	EncodingUTF8JSON:  "utf8-json",
	EncodingUTF8Text:  "utf8-text",
	EncodingBinary:    "binary",
	EncodingBinaryZip: "binary-zip",
	EncodingRaw:       "raw",
}

func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Encoding) UnmarshalText(text []byte) error {
	enc, err := ParseEncoding(string(text))
	if err != nil {
		return err
	}
	*e = enc
	return nil
}

// ParseEncoding parses the name of an encoding.
func ParseEncoding(name string) (Encoding, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for enc, n := range encodingNames {
		if n == name {
			return enc, nil
		}
	}
	return EncodingUnknown, errors.ErrUnsupportedEncoding.GenWithStackByArgs(name)
}

// Known reports whether e is one of the concrete encodings.
func (e Encoding) Known() bool {
	_, ok := encodingNames[e]
	return ok && e != EncodingUnknown
}
