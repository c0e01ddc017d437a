package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eternalApril/moonbeam/internal/resp"
	"github.com/eternalApril/moonbeam/internal/storage"
)

func ping(ctx *context) resp.Value {
	switch len(ctx.args) {
	case 0:
		return resp.MakeSimpleString("PONG")
	case 1:
		return resp.MakeBulkBytes(ctx.args[0].String)
	default:
		return resp.MakeErrorWrongNumberOfArguments("ping")
	}
}

func echo(ctx *context) resp.Value {
	if len(ctx.args) != 1 {
		return resp.MakeErrorWrongNumberOfArguments("echo")
	}
	// binary-safe passthrough
	return resp.MakeBulkBytes(ctx.args[0].String)
}

func get(ctx *context) resp.Value {
	if len(ctx.args) != 1 {
		return resp.MakeErrorWrongNumberOfArguments("get")
	}

	val, ok := ctx.storage.Get(string(ctx.args[0].String))
	if !ok {
		return resp.MakeNullBulkString()
	}
	return resp.MakeBulkString(val)
}

func set(ctx *context) resp.Value {
	if len(ctx.args) < 2 {
		return resp.MakeErrorWrongNumberOfArguments("set")
	}

	key := string(ctx.args[0].String)
	value := string(ctx.args[1].String)

	var opts storage.SetOptions
	hasExpiry := false

	for i := 2; i < len(ctx.args); i++ {
		switch strings.ToUpper(string(ctx.args[i].String)) {
		case "NX":
			if opts.XX {
				return resp.MakeErrorSyntax()
			}
			opts.NX = true

		case "XX":
			if opts.NX {
				return resp.MakeErrorSyntax()
			}
			opts.XX = true

		case "KEEPTTL":
			if hasExpiry {
				return resp.MakeErrorSyntax()
			}
			opts.KeepTTL = true

		case "EX", "PX", "EXAT", "PXAT":
			if hasExpiry || opts.KeepTTL || i+1 >= len(ctx.args) {
				return resp.MakeErrorSyntax()
			}
			n, err := strconv.ParseInt(string(ctx.args[i+1].String), 10, 64)
			if err != nil {
				return resp.MakeError("ERR value is not an integer or out of range")
			}
			deadline, ok := expiryDeadline(strings.ToUpper(string(ctx.args[i].String)), n)
			if !ok {
				return resp.MakeError("ERR invalid expire time in 'set' command")
			}
			opts.ExpireAt = deadline
			hasExpiry = true
			i++

		default:
			return resp.MakeErrorSyntax()
		}
	}

	if !ctx.storage.Set(key, value, opts) {
		// NX/XX precondition miss is not an error
		return resp.MakeNullBulkString()
	}
	return resp.MakeSimpleString("OK")
}

// expiryDeadline converts one expiry option into an absolute unix-nanosecond
// deadline. Relative options must be positive; absolute timestamps in the
// past are legal and make the key expire immediately. A value too large to
// represent as nanoseconds is rejected rather than allowed to wrap negative.
func expiryDeadline(opt string, n int64) (int64, bool) {
	if n <= 0 {
		return 0, false
	}

	var unit int64
	switch opt {
	case "EX", "EXAT":
		unit = int64(time.Second)
	case "PX", "PXAT":
		unit = int64(time.Millisecond)
	default:
		return 0, false
	}

	if n > math.MaxInt64/unit {
		return 0, false
	}
	d := n * unit

	if opt == "EXAT" || opt == "PXAT" {
		return d, true
	}

	now := time.Now().UnixNano()
	if d > math.MaxInt64-now {
		return 0, false
	}
	return now + d, true
}

func del(ctx *context) resp.Value {
	if len(ctx.args) == 0 {
		return resp.MakeErrorWrongNumberOfArguments("del")
	}

	var removed int64
	for _, arg := range ctx.args {
		if ctx.storage.Delete(string(arg.String)) {
			removed++
		}
	}
	return resp.MakeInteger(removed)
}

func exists(ctx *context) resp.Value {
	if len(ctx.args) == 0 {
		return resp.MakeErrorWrongNumberOfArguments("exists")
	}

	var found int64
	for _, arg := range ctx.args {
		if ctx.storage.Exists(string(arg.String)) {
			found++
		}
	}
	return resp.MakeInteger(found)
}

func ttl(ctx *context) resp.Value {
	if len(ctx.args) != 1 {
		return resp.MakeErrorWrongNumberOfArguments("ttl")
	}

	d, status := ctx.storage.Expiry(string(ctx.args[0].String))
	if status != storage.ExpActive {
		return resp.MakeInteger(int64(status))
	}
	// round up so a freshly set "EX 1" reports 1, not 0
	return resp.MakeInteger(int64((d + time.Second - 1) / time.Second))
}

func pttl(ctx *context) resp.Value {
	if len(ctx.args) != 1 {
		return resp.MakeErrorWrongNumberOfArguments("pttl")
	}

	d, status := ctx.storage.Expiry(string(ctx.args[0].String))
	if status != storage.ExpActive {
		return resp.MakeInteger(int64(status))
	}
	return resp.MakeInteger(int64((d + time.Millisecond - 1) / time.Millisecond))
}

func persist(ctx *context) resp.Value {
	if len(ctx.args) != 1 {
		return resp.MakeErrorWrongNumberOfArguments("persist")
	}
	return resp.MakeInteger(ctx.storage.Persist(string(ctx.args[0].String)))
}

func typeOf(ctx *context) resp.Value {
	if len(ctx.args) != 1 {
		return resp.MakeErrorWrongNumberOfArguments("type")
	}

	if ctx.storage.Exists(string(ctx.args[0].String)) {
		return resp.MakeSimpleString("string")
	}
	return resp.MakeSimpleString("none")
}

func keys(ctx *context) resp.Value {
	if len(ctx.args) != 1 {
		return resp.MakeErrorWrongNumberOfArguments("keys")
	}

	matched := ctx.storage.Keys(string(ctx.args[0].String))
	elements := make([]resp.Value, len(matched))
	for i, key := range matched {
		elements[i] = resp.MakeBulkString(key)
	}
	return resp.MakeArray(elements)
}

func dbsize(ctx *context) resp.Value {
	if len(ctx.args) != 0 {
		return resp.MakeErrorWrongNumberOfArguments("dbsize")
	}
	return resp.MakeInteger(int64(ctx.storage.Len()))
}

// configInfo serves a small read-only view of the running configuration.
// Only CONFIG GET is supported; the configuration is static at runtime.
func configInfo(ctx *context) resp.Value {
	if len(ctx.args) < 1 {
		return resp.MakeErrorWrongNumberOfArguments("config")
	}

	sub := strings.ToUpper(string(ctx.args[0].String))
	if sub != "GET" {
		return resp.MakeError("ERR unknown CONFIG subcommand or wrong number of arguments for '" + strings.ToLower(sub) + "'")
	}
	if len(ctx.args) != 2 {
		return resp.MakeErrorWrongNumberOfArguments("config|get")
	}

	param := strings.ToLower(string(ctx.args[1].String))

	var value string
	switch param {
	case "port":
		value = ctx.cfg.Server.Port
	case "bind":
		value = ctx.cfg.Server.Host
	case "proto-max-bulk-len":
		value = strconv.Itoa(ctx.cfg.Limits.MaxBulkLen)
	case "maxmemory":
		value = "0"
	case "appendonly":
		value = "no"
	case "save":
		value = ""
	default:
		// unknown parameters answer with an empty array, not an error
		return resp.MakeArray([]resp.Value{})
	}

	return resp.MakeArray([]resp.Value{
		resp.MakeBulkString(param),
		resp.MakeBulkString(value),
	})
}
