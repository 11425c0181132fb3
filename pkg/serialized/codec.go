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
	"fmt"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Encode turns value into bytes with enc.
func Encode(enc Encoding, value any) ([]byte, error) {
	switch enc {
	case EncodingUTF8JSON:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, errors.WrapError(errors.ErrEncodeFailed, err, enc)
		}
		return data, nil
	case EncodingBinary:
		data, err := msgpack.Marshal(value)
		if err != nil {
			return nil, errors.WrapError(errors.ErrEncodeFailed, err, enc)
		}
		return data, nil
	case EncodingUTF8Text:
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		case error:
			s = v.Error()
		case fmt.Stringer:
			s = v.String()
		default:
			return nil, errors.ErrEncodeFailed.GenWithStackByArgs(enc)
		}
		if !utf8.ValidString(s) {
			return nil, errors.ErrEncodeFailed.GenWithStackByArgs(enc)
		}
		return []byte(s), nil
	case EncodingRaw, EncodingBinaryZip:
		data, ok := value.([]byte)
		if !ok {
			return nil, errors.ErrEncodeFailed.GenWithStackByArgs(enc)
		}
		return data, nil
	default:
		return nil, errors.ErrUnsupportedEncoding.GenWithStackByArgs(enc)
	}
}

// Decode decodes data produced with enc into out. Text, raw and zip
// objects decode into *string or *[]byte.
func Decode(enc Encoding, data []byte, out any) error {
	switch enc {
	case EncodingUTF8JSON:
		if err := json.Unmarshal(data, out); err != nil {
			return errors.WrapError(errors.ErrDecodeFailed, err, enc)
		}
		return nil
	case EncodingBinary:
		if err := msgpack.Unmarshal(data, out); err != nil {
			return errors.WrapError(errors.ErrDecodeFailed, err, enc)
		}
		return nil
	case EncodingUTF8Text, EncodingRaw, EncodingBinaryZip:
		if enc == EncodingUTF8Text && !utf8.Valid(data) {
			return errors.ErrDecodeFailed.GenWithStackByArgs(enc)
		}
		switch v := out.(type) {
		case *string:
			*v = string(data)
		case *[]byte:
			*v = append((*v)[:0], data...)
		default:
			return errors.ErrDecodeFailed.GenWithStackByArgs(enc)
		}
		return nil
	default:
		return errors.ErrUnsupportedEncoding.GenWithStackByArgs(enc)
	}
}
