// Package pb contains the hand-authored wire types for ShuffleService.
//
// No protoc toolchain was available to generate this package from
// api/shuffle/v1/shuffle.proto, so the message structs, their protobuf wire
// encoding, and the grpc.ServiceDesc below are written by hand in the shape
// protoc-gen-go / protoc-gen-go-grpc would otherwise emit. Encoding follows
// the real protobuf wire format (varint tags, length-delimited bytes) so
// the service remains interoperable with a future generated client.
package pb

import (
	"errors"
	"io"
)

const (
	wireVarint = 0
	wireBytes  = 2
)

var errTruncated = errors.New("pb: truncated message")

func appendTag(buf []byte, fieldNum int, wireType int) []byte {
	return appendVarint(buf, uint64(fieldNum)<<3|uint64(wireType))
}

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func appendBytesField(buf []byte, fieldNum int, v []byte) []byte {
	if len(v) == 0 {
		return buf
	}
	buf = appendTag(buf, fieldNum, wireBytes)
	buf = appendVarint(buf, uint64(len(v)))
	return append(buf, v...)
}

func appendStringField(buf []byte, fieldNum int, v string) []byte {
	if v == "" {
		return buf
	}
	return appendBytesField(buf, fieldNum, []byte(v))
}

func appendVarintField(buf []byte, fieldNum int, v uint64) []byte {
	if v == 0 {
		return buf
	}
	buf = appendTag(buf, fieldNum, wireVarint)
	return appendVarint(buf, v)
}

func appendBoolField(buf []byte, fieldNum int, v bool) []byte {
	if !v {
		return buf
	}
	return appendVarintField(buf, fieldNum, 1)
}

// decodeVarint reads a varint starting at buf[0], returning the value and
// the number of bytes consumed.
func decodeVarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, errTruncated
		}
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// fieldVisitor is called once per field encountered while walking a
// message buffer; it must consume exactly the bytes belonging to that
// field's value and return them.
type fieldVisitor func(fieldNum int, wireType int, raw []byte) (consumed int, err error)

// walkFields decodes a protobuf wire-format message into field callbacks.
func walkFields(buf []byte, visit fieldVisitor) error {
	for len(buf) > 0 {
		tag, n, err := decodeVarint(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
		fieldNum := int(tag >> 3)
		wireType := int(tag & 0x7)

		switch wireType {
		case wireVarint:
			_, n, err := decodeVarint(buf)
			if err != nil {
				return err
			}
			consumed, err := visit(fieldNum, wireType, buf[:n])
			if err != nil {
				return err
			}
			if consumed != n {
				return errTruncated
			}
			buf = buf[n:]
		case wireBytes:
			l, n, err := decodeVarint(buf)
			if err != nil {
				return err
			}
			buf = buf[n:]
			if uint64(len(buf)) < l {
				return errTruncated
			}
			consumed, err := visit(fieldNum, wireType, buf[:l])
			if err != nil {
				return err
			}
			if consumed != int(l) {
				return errTruncated
			}
			buf = buf[l:]
		default:
			return errors.New("pb: unsupported wire type")
		}
	}
	return nil
}

func decodeVarintField(raw []byte) (uint64, error) {
	v, n, err := decodeVarint(raw)
	if err != nil {
		return 0, err
	}
	if n != len(raw) {
		return 0, errTruncated
	}
	return v, nil
}
