package resp

import (
	"bufio"
	"io"
	"strconv"
)

// Append serializes v and appends the wire bytes to dst. It is pure and
// total: every constructible Value has an encoding.
func Append(dst []byte, v Value) []byte {
	switch v.Type {
	case TypeSimpleString, TypeError:
		dst = append(dst, v.Type)
		dst = append(dst, v.String...)
		dst = append(dst, '\r', '\n')

	case TypeInteger:
		dst = append(dst, TypeInteger)
		dst = strconv.AppendInt(dst, v.Integer, 10)
		dst = append(dst, '\r', '\n')

	case TypeBulkString:
		if v.IsNull {
			dst = append(dst, "$-1\r\n"...)
			break
		}
		dst = append(dst, TypeBulkString)
		dst = strconv.AppendInt(dst, int64(len(v.String)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, v.String...)
		dst = append(dst, '\r', '\n')

	case TypeArray:
		if v.IsNull {
			dst = append(dst, "*-1\r\n"...)
			break
		}
		dst = append(dst, TypeArray)
		dst = strconv.AppendInt(dst, int64(len(v.Array)), 10)
		dst = append(dst, '\r', '\n')
		for _, el := range v.Array {
			dst = Append(dst, el)
		}
	}

	return dst
}

// Encode serializes a single value to a fresh byte slice
func Encode(v Value) []byte {
	return Append(nil, v)
}

// EncodeCommand serializes a client request: an array of bulk strings with
// the command name first
func EncodeCommand(name string, args ...string) []byte {
	elements := make([]Value, 1+len(args))
	elements[0] = MakeBulkString(name)
	for i, arg := range args {
		elements[i+1] = MakeBulkString(arg)
	}
	return Encode(MakeArray(elements))
}

// Encoder handles the serialization of RESP Value objects into an output
// stream. Writes are buffered; the caller decides when to Flush, which lets
// a connection batch the replies of a pipelined request burst.
type Encoder struct {
	writer *bufio.Writer
}

// NewEncoder initializes an Encoder with a buffered writer
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		writer: bufio.NewWriter(w),
	}
}

// Write serializes a RESP Value into the buffer
func (e *Encoder) Write(v Value) error {
	b := e.writer.AvailableBuffer()
	b = Append(b, v)
	_, err := e.writer.Write(b)
	return err
}

// Flush sends all buffered data to the underlying writer
func (e *Encoder) Flush() error {
	return e.writer.Flush()
}
