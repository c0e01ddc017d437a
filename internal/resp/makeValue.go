package resp

import (
	"fmt"
	"strings"
)

// MakeSimpleString construct SimpleString Value from string
func MakeSimpleString(s string) Value {
	return Value{
		Type:   TypeSimpleString,
		String: []byte(s),
	}
}

// MakeError construct Error Value from string.
// An error occupies exactly one wire line; CR and LF in the text (error
// messages may quote client-supplied bytes) are replaced with spaces so a
// reply can never split into extra frames.
func MakeError(s string) Value {
	b := []byte(s)
	for i, c := range b {
		if c == '\r' || c == '\n' {
			b[i] = ' '
		}
	}
	return Value{
		Type:   TypeError,
		String: b,
	}
}

// MakeErrorWrongNumberOfArguments construct Error Value that command had wrong number of arguments for command
func MakeErrorWrongNumberOfArguments(cmd string) Value {
	return MakeError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(cmd)))
}

// MakeErrorSyntax is the generic reply for conflicting or unrecognized
// command options
func MakeErrorSyntax() Value {
	return MakeError("ERR syntax error")
}

// MakeErrorUnknownCommand builds the conventional unknown-command reply,
// naming the command and a prefix of its arguments
func MakeErrorUnknownCommand(name string, args []Value) Value {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ERR unknown command '%s', with args beginning with: ", name)
	for i, arg := range args {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&sb, "'%s', ", arg.String)
	}
	return MakeError(sb.String())
}

// MakeBulkString construct BulkString Value from string
func MakeBulkString(s string) Value {
	return Value{
		Type:   TypeBulkString,
		String: []byte(s),
	}
}

// MakeBulkBytes construct BulkString Value from raw bytes without copying
func MakeBulkBytes(b []byte) Value {
	return Value{
		Type:   TypeBulkString,
		String: b,
	}
}

// MakeNullBulkString construct null BulkString Value
func MakeNullBulkString() Value {
	return Value{
		Type:   TypeBulkString,
		IsNull: true,
	}
}

// MakeInteger construct Integer Value from int64
func MakeInteger(n int64) Value {
	return Value{
		Type:    TypeInteger,
		Integer: n,
	}
}

// MakeArray creates a standard RESP array containing the provided elements
func MakeArray(values []Value) Value {
	return Value{
		Type:  TypeArray,
		Array: values,
	}
}

// MakeNullArray construct null Array Value
func MakeNullArray() Value {
	return Value{
		Type:   TypeArray,
		IsNull: true,
	}
}
