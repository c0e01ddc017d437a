package resp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrIncomplete reports that the buffer ends in the middle of a value.
	// The caller should accumulate more input and retry; it is never a
	// protocol violation.
	ErrIncomplete = errors.New("resp: incomplete frame")

	// ErrProtocol reports malformed framing. Connection-fatal for a server.
	ErrProtocol = errors.New("resp: protocol error")

	// ErrLimitExceeded reports input larger than the configured limits allow.
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// Limits bound adversarial input. A length or nesting depth beyond a limit
// is treated the same as malformed framing.
type Limits struct {
	MaxBulkLen  int // max payload of a single bulk string or line
	MaxArrayLen int // max elements in a single array
	MaxDepth    int // max array nesting
}

// DefaultLimits mirrors the config defaults: most commands carry fewer than
// twenty short arguments, 512KB of headroom for values.
func DefaultLimits() Limits {
	return Limits{
		MaxBulkLen:  512 * 1024,
		MaxArrayLen: 1024,
		MaxDepth:    32,
	}
}

// Decode consumes exactly one top-level RESP value from buf and returns it
// together with the number of bytes consumed. When buf holds only part of a
// value it returns ErrIncomplete and consumes nothing; Decode never blocks.
// Payload bytes are copied out of buf, so the caller is free to reuse it.
func Decode(buf []byte, limits Limits) (Value, int, error) {
	return decode(buf, limits, 0)
}

func decode(buf []byte, limits Limits, depth int) (Value, int, error) {
	if depth > limits.MaxDepth {
		return Value{}, 0, fmt.Errorf("%w: array nesting deeper than %d", ErrLimitExceeded, limits.MaxDepth)
	}

	if len(buf) == 0 {
		return Value{}, 0, ErrIncomplete
	}

	switch buf[0] {
	case TypeSimpleString, TypeError:
		line, n, err := readLine(buf[1:], limits.MaxBulkLen)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Type: buf[0], String: append([]byte(nil), line...)}, 1 + n, nil

	case TypeInteger:
		line, n, err := readLine(buf[1:], limits.MaxBulkLen)
		if err != nil {
			return Value{}, 0, err
		}
		num, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Value{}, 0, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line)
		}
		return Value{Type: TypeInteger, Integer: num}, 1 + n, nil

	case TypeBulkString:
		return decodeBulkString(buf, limits)

	case TypeArray:
		return decodeArray(buf, limits, depth)

	default:
		return Value{}, 0, fmt.Errorf("%w: invalid type prefix %q", ErrProtocol, buf[0])
	}
}

func decodeBulkString(buf []byte, limits Limits) (Value, int, error) {
	length, n, err := readLength(buf[1:])
	if err != nil {
		return Value{}, 0, err
	}
	consumed := 1 + n

	if length == -1 {
		return Value{Type: TypeBulkString, IsNull: true}, consumed, nil
	}
	if length > limits.MaxBulkLen {
		return Value{}, 0, fmt.Errorf("%w: bulk length %d exceeds %d", ErrLimitExceeded, length, limits.MaxBulkLen)
	}

	// payload plus trailing CRLF
	rest := buf[consumed:]
	if len(rest) < length+2 {
		return Value{}, 0, ErrIncomplete
	}
	if rest[length] != '\r' || rest[length+1] != '\n' {
		return Value{}, 0, fmt.Errorf("%w: bulk string not terminated by CRLF", ErrProtocol)
	}

	payload := append([]byte(nil), rest[:length]...)
	return Value{Type: TypeBulkString, String: payload}, consumed + length + 2, nil
}

func decodeArray(buf []byte, limits Limits, depth int) (Value, int, error) {
	count, n, err := readLength(buf[1:])
	if err != nil {
		return Value{}, 0, err
	}
	consumed := 1 + n

	if count == -1 {
		return Value{Type: TypeArray, IsNull: true}, consumed, nil
	}
	if count > limits.MaxArrayLen {
		return Value{}, 0, fmt.Errorf("%w: array length %d exceeds %d", ErrLimitExceeded, count, limits.MaxArrayLen)
	}

	elements := make([]Value, 0, count)
	for i := 0; i < count; i++ {
		el, n, err := decode(buf[consumed:], limits, depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		elements = append(elements, el)
		consumed += n
	}

	return Value{Type: TypeArray, Array: elements}, consumed, nil
}

// readLine returns the bytes before the next CRLF and the count consumed
// including the terminator. A bare LF is malformed.
func readLine(b []byte, maxLen int) ([]byte, int, error) {
	idx := bytes.IndexByte(b, '\n')
	if idx == -1 {
		if len(b) > maxLen {
			return nil, 0, fmt.Errorf("%w: line longer than %d", ErrLimitExceeded, maxLen)
		}
		return nil, 0, ErrIncomplete
	}
	if idx == 0 || b[idx-1] != '\r' {
		return nil, 0, fmt.Errorf("%w: invalid line ending", ErrProtocol)
	}
	if idx-1 > maxLen {
		return nil, 0, fmt.Errorf("%w: line longer than %d", ErrLimitExceeded, maxLen)
	}
	return b[:idx-1], idx + 1, nil
}

// readLength parses a length header line. -1 encodes the null sentinel; any
// other negative or non-numeric length is malformed.
func readLength(b []byte) (int, int, error) {
	line, n, err := readLine(b, 32)
	if err != nil {
		if errors.Is(err, ErrLimitExceeded) {
			return 0, 0, fmt.Errorf("%w: length header too long", ErrProtocol)
		}
		return 0, 0, err
	}
	length, err := strconv.Atoi(string(line))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, line)
	}
	if length < -1 {
		return 0, 0, fmt.Errorf("%w: invalid length %d", ErrProtocol, length)
	}
	return length, n, nil
}
