// Package payload implements the encode/decode conventions shared by both
// transports: strings travel as their content plus one terminator byte,
// fixed-layout values and slices of them travel as raw little-endian bytes,
// and nothing carries a length prefix. The receiver declares capacity and
// relies on the byte count the transport reports.
package payload

import (
	"bytes"
	"encoding/binary"
	"reflect"

	"github.com/pkg/errors"
)

// Terminator ends every encoded string.
const Terminator byte = 0x00

// AppendString appends s and the terminator byte to dst.
func AppendString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, Terminator)
}

// TrimTerminator drops a single trailing terminator byte from b, if present.
// Received string payloads pass through here so the terminator stays an
// encoding detail rather than part of the text.
func TrimTerminator(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == Terminator {
		return b[:n-1]
	}

	return b
}

// Size reports the encoded size of v in bytes, or -1 if v is not a
// fixed-layout value.
func Size(v interface{}) int {
	return binary.Size(v)
}

// AppendValue appends the raw little-endian bytes of a fixed-layout value, or
// a slice of them, to dst. Types with a non-fixed representation are
// rejected.
func AppendValue(dst []byte, v interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(dst)

	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return dst, errors.Wrapf(err, "value of type %T has no fixed layout", v)
	}

	return buf.Bytes(), nil
}

// Marshal encodes a fixed-layout value, or a slice of them, as raw
// little-endian bytes with no framing.
func Marshal(v interface{}) ([]byte, error) {
	return AppendValue(nil, v)
}

// Unmarshal decodes b into the fixed-layout value pointed to by v. Fewer
// bytes than the value needs is an error.
func Unmarshal(b []byte, v interface{}) error {
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, v); err != nil {
		return errors.Wrapf(err, "short or malformed payload for %T", v)
	}

	return nil
}

// ElemSize reports the encoded size of one element of the slice pointed to
// by slicePtr.
func ElemSize(slicePtr interface{}) (int, error) {
	pv := reflect.ValueOf(slicePtr)
	if pv.Kind() != reflect.Ptr || pv.Elem().Kind() != reflect.Slice {
		return 0, errors.Errorf("expected pointer to slice, have %T", slicePtr)
	}

	elem := pv.Elem().Type().Elem()

	size := binary.Size(reflect.Zero(elem).Interface())
	if size <= 0 {
		return 0, errors.Errorf("slice element type %s has no fixed layout", elem)
	}

	return size, nil
}

// UnmarshalSlice decodes as many whole elements as b contains into the slice
// pointed to by slicePtr, resizing it to that element count. Trailing bytes
// shorter than one element are discarded.
func UnmarshalSlice(b []byte, slicePtr interface{}) error {
	size, err := ElemSize(slicePtr)
	if err != nil {
		return err
	}

	sv := reflect.ValueOf(slicePtr).Elem()

	n := len(b) / size
	out := reflect.MakeSlice(sv.Type(), n, n)

	if n > 0 {
		if err := binary.Read(bytes.NewReader(b[:n*size]), binary.LittleEndian, out.Interface()); err != nil {
			return errors.Wrap(err, "failed to decode slice elements")
		}
	}

	sv.Set(out)

	return nil
}
