package server

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/eternalApril/moonbeam/internal/config"
	"github.com/eternalApril/moonbeam/internal/logger"
	"github.com/eternalApril/moonbeam/internal/resp"
	"github.com/eternalApril/moonbeam/internal/storage"
)

// setupEngine creates a fresh engine with a clean store for each test
func setupEngine() *Engine {
	s, _ := storage.NewShardedMapStorage(1) //nolint:errcheck
	return NewEngine(s, &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: "6380"},
		GC:     config.GCConfig{Enabled: false},
	}, logger.New("error", "console"))
}

// helper to construct the argument list of a RESP command request
func makeArgs(args ...string) []resp.Value {
	vals := make([]resp.Value, len(args))
	for i, arg := range args {
		vals[i] = resp.MakeBulkString(arg)
	}
	return vals
}

// helper to construct a full client request value
func makeRequest(name string, args ...string) resp.Value {
	elements := make([]resp.Value, 0, 1+len(args))
	elements = append(elements, resp.MakeBulkString(name))
	for _, arg := range args {
		elements = append(elements, resp.MakeBulkString(arg))
	}
	return resp.MakeArray(elements)
}

func TestPing(t *testing.T) {
	e := setupEngine()

	tests := []struct {
		name     string
		args     []string
		wantType byte
		wantStr  string
	}{
		{"Simple PING", []string{}, resp.TypeSimpleString, "PONG"},
		{"PING with message", []string{"Hello"}, resp.TypeBulkString, "Hello"},
		{"PING too many args", []string{"a", "b"}, resp.TypeError, "ERR wrong number of arguments for 'ping' command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Execute("PING", makeArgs(tt.args...))
			if res.Type != tt.wantType {
				t.Errorf("got type %v, want %v", res.Type, tt.wantType)
			}

			got := string(res.String)
			if got != tt.wantStr {
				t.Errorf("got %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestEcho(t *testing.T) {
	e := setupEngine()

	res := e.Execute("ECHO", makeArgs("hello"))
	if res.Type != resp.TypeBulkString || string(res.String) != "hello" {
		t.Errorf("ECHO got %q", res.String)
	}

	// binary-safe passthrough
	binary := "bin\x00\r\n\xff"
	res = e.Execute("ECHO", []resp.Value{resp.MakeBulkBytes([]byte(binary))})
	if string(res.String) != binary {
		t.Errorf("ECHO mangled binary payload: %q", res.String)
	}

	res = e.Execute("ECHO", makeArgs())
	if res.Type != resp.TypeError {
		t.Errorf("ECHO without argument should fail, got %v", res.Type)
	}
}

func TestDispatchCaseInsensitive(t *testing.T) {
	e := setupEngine()

	for _, name := range []string{"PING", "ping", "PiNg"} {
		res := e.Dispatch(makeRequest(name))
		if res.Type != resp.TypeSimpleString || string(res.String) != "PONG" {
			t.Errorf("Dispatch(%q) = %q, want PONG", name, res.String)
		}
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	e := setupEngine()

	res := e.Dispatch(makeRequest("FOO", "bar"))
	if res.Type != resp.TypeError {
		t.Fatalf("expected error reply, got %v", res.Type)
	}
	msg := string(res.String)
	if !strings.Contains(msg, "unknown command 'FOO'") {
		t.Errorf("error should name the command, got %q", msg)
	}
	if !strings.Contains(msg, "'bar'") {
		t.Errorf("error should carry the argument text, got %q", msg)
	}
}

func TestDispatchRejectsBadShape(t *testing.T) {
	e := setupEngine()

	tests := []struct {
		name string
		req  resp.Value
	}{
		{"Top-level simple string", resp.MakeSimpleString("PING")},
		{"Top-level integer", resp.MakeInteger(1)},
		{"Null array", resp.MakeNullArray()},
		{"Empty array", resp.MakeArray([]resp.Value{})},
		{"Array with integer element", resp.MakeArray([]resp.Value{resp.MakeInteger(5)})},
		{"Array with null bulk element", resp.MakeArray([]resp.Value{resp.MakeNullBulkString()})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Dispatch(tt.req)
			if res.Type != resp.TypeError {
				t.Errorf("expected error reply, got %v", res.Type)
			}
		})
	}
}

func TestBasicSetGetDel(t *testing.T) {
	e := setupEngine()

	// GET missing key
	res := e.Execute("GET", makeArgs("mykey"))
	if res.IsNull != true {
		t.Errorf("expected null for missing key, got %v", res.Type)
	}

	// SET key
	res = e.Execute("SET", makeArgs("mykey", "myvalue"))
	if string(res.String) != "OK" {
		t.Errorf("expected OK, got %v", res.String)
	}

	// SET is idempotent without TTL options
	e.Execute("SET", makeArgs("mykey", "myvalue"))
	res = e.Execute("GET", makeArgs("mykey"))
	if string(res.String) != "myvalue" {
		t.Errorf("expected myvalue, got %s", res.String)
	}

	// DEL key
	res = e.Execute("DEL", makeArgs("mykey"))
	if res.Integer != 1 {
		t.Errorf("expected 1 deleted, got %d", res.Integer)
	}

	// GET key again
	res = e.Execute("GET", makeArgs("mykey"))
	if res.IsNull != true {
		t.Errorf("expected null after delete, got %v", res.Type)
	}
}

func TestSetNX_XX(t *testing.T) {
	e := setupEngine()

	// SET NX on new key -> OK
	res := e.Execute("SET", makeArgs("k1", "v1", "NX"))
	if string(res.String) != "OK" {
		t.Errorf("SET NX new key failed")
	}

	// SET NX on existing key -> Nil
	res = e.Execute("SET", makeArgs("k1", "v2", "NX"))
	if res.IsNull != true {
		t.Errorf("SET NX existing key should return nil, got %v", res.Type)
	}
	// Verify value didn't change
	val := e.Execute("GET", makeArgs("k1"))
	if string(val.String) != "v1" {
		t.Errorf("SET NX changed value despite failure")
	}

	// SET XX on missing key -> Nil
	res = e.Execute("SET", makeArgs("k2", "v2", "XX"))
	if res.IsNull != true {
		t.Errorf("SET XX missing key should return nil, got %v", res.Type)
	}
	// and must not create the key
	if val = e.Execute("GET", makeArgs("k2")); val.IsNull != true {
		t.Errorf("SET XX created a key on miss")
	}

	// SET XX on existing key -> OK
	res = e.Execute("SET", makeArgs("k1", "v_updated", "XX"))
	if string(res.String) != "OK" {
		t.Errorf("SET XX existing key failed")
	}
	val = e.Execute("GET", makeArgs("k1"))
	if string(val.String) != "v_updated" {
		t.Errorf("SET XX failed to update value")
	}
}

func TestSetTTL(t *testing.T) {
	e := setupEngine()

	// SET EX (Seconds)
	e.Execute("SET", makeArgs("k_ex", "val", "EX", "1"))

	// Check immediately
	ttl := e.Execute("TTL", makeArgs("k_ex"))
	if ttl.Integer != 1 {
		t.Errorf("expected TTL 1, got %d", ttl.Integer)
	}

	// SET PX (Milliseconds)
	e.Execute("SET", makeArgs("k_px", "val", "PX", "50"))

	pttl := e.Execute("PTTL", makeArgs("k_px"))
	if pttl.Integer <= 0 || pttl.Integer > 50 {
		t.Errorf("expected PTTL ~50ms, got %d", pttl.Integer)
	}

	// before the deadline the value is visible
	res := e.Execute("GET", makeArgs("k_px"))
	if string(res.String) != "val" {
		t.Errorf("value should be visible before expiry, got %q", res.String)
	}

	time.Sleep(80 * time.Millisecond)
	res = e.Execute("GET", makeArgs("k_px"))
	if res.IsNull != true {
		t.Errorf("key should have expired (PX)")
	}
}

func TestSetKeepTTL(t *testing.T) {
	e := setupEngine()

	// Set key with TTL of 100 seconds
	e.Execute("SET", makeArgs("k_keep", "v1", "EX", "100"))

	// Update value but Keep TTL
	e.Execute("SET", makeArgs("k_keep", "v2", "KEEPTTL"))

	val := e.Execute("GET", makeArgs("k_keep"))
	if string(val.String) != "v2" {
		t.Errorf("KEEPTTL value not updated")
	}

	// Verify TTL is still approx 100
	ttl := e.Execute("TTL", makeArgs("k_keep"))
	if ttl.Integer < 95 || ttl.Integer > 100 {
		t.Errorf("KEEPTTL removed the expiration, got %d", ttl.Integer)
	}

	// Verify KEEPTTL on new key behaves like persistent key (no TTL)
	e.Execute("SET", makeArgs("k_new_keep", "v1", "KEEPTTL"))
	ttl = e.Execute("TTL", makeArgs("k_new_keep"))
	if ttl.Integer != -1 {
		t.Errorf("KEEPTTL on new key should have -1 TTL, got %d", ttl.Integer)
	}

	// plain SET drops an existing TTL
	e.Execute("SET", makeArgs("k_keep", "v3"))
	ttl = e.Execute("TTL", makeArgs("k_keep"))
	if ttl.Integer != -1 {
		t.Errorf("plain SET should drop the TTL, got %d", ttl.Integer)
	}
}

func TestSetTimestamps(t *testing.T) {
	e := setupEngine()

	// EXAT: expire 2 seconds in future
	future := time.Now().Add(2 * time.Second).Unix()
	futureStr := fmt.Sprintf("%d", future)

	e.Execute("SET", makeArgs("k_exat", "v", "EXAT", futureStr))

	ttl := e.Execute("TTL", makeArgs("k_exat"))
	// Should be 1 or 2 depending on rounding
	if ttl.Integer < 1 || ttl.Integer > 2 {
		t.Errorf("EXAT failed, expected ~2s TTL, got %d", ttl.Integer)
	}

	// PXAT in the past expires the key immediately
	past := fmt.Sprintf("%d", time.Now().Add(-time.Second).UnixMilli())
	e.Execute("SET", makeArgs("k_pxat", "v", "PXAT", past))

	res := e.Execute("GET", makeArgs("k_pxat"))
	if res.IsNull != true {
		t.Errorf("PXAT in the past should leave the key absent")
	}
}

func TestTTL_PTTL_Codes(t *testing.T) {
	e := setupEngine()

	// Missing Key -> -2
	res := e.Execute("TTL", makeArgs("missing"))
	if res.Integer != -2 {
		t.Errorf("expected -2 for missing key, got %d", res.Integer)
	}

	// Persistent Key -> -1
	e.Execute("SET", makeArgs("persistent", "val"))
	res = e.Execute("TTL", makeArgs("persistent"))
	if res.Integer != -1 {
		t.Errorf("expected -1 for persistent key, got %d", res.Integer)
	}
	res = e.Execute("PTTL", makeArgs("persistent"))
	if res.Integer != -1 {
		t.Errorf("expected -1 for persistent key (PTTL), got %d", res.Integer)
	}
}

func TestPersistCommand(t *testing.T) {
	e := setupEngine()

	e.Execute("SET", makeArgs("k", "v", "EX", "100"))

	res := e.Execute("PERSIST", makeArgs("k"))
	if res.Integer != 1 {
		t.Errorf("PERSIST active TTL should return 1, got %d", res.Integer)
	}
	res = e.Execute("TTL", makeArgs("k"))
	if res.Integer != -1 {
		t.Errorf("TTL after PERSIST should be -1, got %d", res.Integer)
	}
	res = e.Execute("PERSIST", makeArgs("k"))
	if res.Integer != 0 {
		t.Errorf("PERSIST without TTL should return 0, got %d", res.Integer)
	}
}

func TestSetSyntaxErrors(t *testing.T) {
	e := setupEngine()

	tests := []struct {
		name     string
		args     []string
		expected string // partial error string match
	}{
		{
			"NX and XX together",
			[]string{"k", "v", "NX", "XX"},
			"syntax error",
		},
		{
			"XX and NX together",
			[]string{"k", "v", "XX", "NX"},
			"syntax error",
		},
		{
			"EX without value",
			[]string{"k", "v", "EX"},
			"syntax error",
		},
		{
			"EX with non-integer",
			[]string{"k", "v", "EX", "abc"},
			"value is not an integer",
		},
		{
			"EX with zero",
			[]string{"k", "v", "EX", "0"},
			"invalid expire time",
		},
		{
			"PX with negative",
			[]string{"k", "v", "PX", "-5"},
			"invalid expire time",
		},
		{
			"Double TTL (EX then PX)",
			[]string{"k", "v", "EX", "10", "PX", "100"},
			"syntax error",
		},
		{
			"KEEPTTL with EX",
			[]string{"k", "v", "KEEPTTL", "EX", "10"},
			"syntax error",
		},
		{
			"EX with KEEPTTL",
			[]string{"k", "v", "EX", "10", "KEEPTTL"},
			"syntax error",
		},
		{
			"Unknown Argument",
			[]string{"k", "v", "FOOBAR"},
			"syntax error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Execute("SET", makeArgs(tt.args...))
			if res.Type != resp.TypeError {
				t.Fatalf("expected error, got %v", res.Type)
			}
			if !strings.Contains(string(res.String), tt.expected) {
				t.Errorf("expected error containing %q, got %q", tt.expected, res.String)
			}
			// a rejected SET must not create the key
			if got := e.Execute("GET", makeArgs("k")); got.IsNull != true {
				t.Errorf("rejected SET mutated state: %q", got.String)
			}
		})
	}
}

func TestExistsCommand(t *testing.T) {
	e := setupEngine()

	e.Execute("SET", makeArgs("a", "1"))
	e.Execute("SET", makeArgs("b", "2"))

	res := e.Execute("EXISTS", makeArgs("a", "b", "missing", "a"))
	if res.Integer != 3 {
		t.Errorf("EXISTS counted %d, want 3", res.Integer)
	}
}

func TestTypeCommand(t *testing.T) {
	e := setupEngine()

	e.Execute("SET", makeArgs("k", "v"))

	res := e.Execute("TYPE", makeArgs("k"))
	if res.Type != resp.TypeSimpleString || string(res.String) != "string" {
		t.Errorf("TYPE existing key = %q, want string", res.String)
	}

	res = e.Execute("TYPE", makeArgs("missing"))
	if string(res.String) != "none" {
		t.Errorf("TYPE missing key = %q, want none", res.String)
	}
}

func TestKeysCommand(t *testing.T) {
	e := setupEngine()

	e.Execute("SET", makeArgs("user:1", "a"))
	e.Execute("SET", makeArgs("user:2", "b"))
	e.Execute("SET", makeArgs("order:1", "c"))

	res := e.Execute("KEYS", makeArgs("user:*"))
	if res.Type != resp.TypeArray || len(res.Array) != 2 {
		t.Fatalf("KEYS user:* returned %d entries", len(res.Array))
	}
	for _, el := range res.Array {
		if !strings.HasPrefix(string(el.String), "user:") {
			t.Errorf("unexpected key %q", el.String)
		}
	}
}

func TestDbsizeCommand(t *testing.T) {
	e := setupEngine()

	e.Execute("SET", makeArgs("a", "1"))
	e.Execute("SET", makeArgs("b", "2"))
	e.Execute("DEL", makeArgs("a"))

	res := e.Execute("DBSIZE", makeArgs())
	if res.Integer != 1 {
		t.Errorf("DBSIZE = %d, want 1", res.Integer)
	}
}

func TestCommandIntrospection(t *testing.T) {
	e := setupEngine()

	res := e.Execute("COMMAND", makeArgs())
	if res.Type != resp.TypeArray || len(res.Array) != len(commandRegistry) {
		t.Errorf("COMMAND returned %d entries, want %d", len(res.Array), len(commandRegistry))
	}

	res = e.Execute("COMMAND", makeArgs("COUNT"))
	if res.Integer != int64(len(commandRegistry)) {
		t.Errorf("COMMAND COUNT = %d, want %d", res.Integer, len(commandRegistry))
	}

	res = e.Execute("COMMAND", makeArgs("DOCS", "GET"))
	if res.Type != resp.TypeArray || len(res.Array) != 2 {
		t.Fatalf("COMMAND DOCS GET shape: %d entries", len(res.Array))
	}
	if string(res.Array[0].String) != "GET" {
		t.Errorf("COMMAND DOCS named %q, want GET", res.Array[0].String)
	}
}

func TestConfigGetCommand(t *testing.T) {
	e := setupEngine()

	res := e.Execute("CONFIG", makeArgs("GET", "port"))
	if res.Type != resp.TypeArray || len(res.Array) != 2 {
		t.Fatalf("CONFIG GET port shape: %+v", res)
	}
	if string(res.Array[1].String) != "6380" {
		t.Errorf("CONFIG GET port = %q, want 6380", res.Array[1].String)
	}

	res = e.Execute("CONFIG", makeArgs("GET", "does-not-exist"))
	if res.Type != resp.TypeArray || len(res.Array) != 0 {
		t.Errorf("unknown parameter should yield an empty array, got %+v", res)
	}

	res = e.Execute("CONFIG", makeArgs("SET", "port", "1"))
	if res.Type != resp.TypeError {
		t.Errorf("CONFIG SET should be rejected, got %v", res.Type)
	}
}

// Error replies that quote client bytes must stay on one wire line even
// when a name or argument carries CR/LF.
func TestErrorRepliesSingleLine(t *testing.T) {
	e := setupEngine()

	replies := []resp.Value{
		e.Execute("FLUSH\r\nALL", makeArgs("x\r\n+oops")),
		e.Execute("CONFIG", makeArgs("SE\r\nT", "port", "1")),
		e.Execute("COMMAND", makeArgs("IN\r\nFO")),
	}

	for i, res := range replies {
		if res.Type != resp.TypeError {
			t.Fatalf("reply %d: type = %q, want error", i, res.Type)
		}
		if strings.ContainsAny(string(res.String), "\r\n") {
			t.Errorf("reply %d carries CR/LF: %q", i, res.String)
		}
	}
}

// An expiry large enough to overflow the nanosecond deadline is invalid,
// not a key that silently expires in the past.
func TestSetExpiryOverflow(t *testing.T) {
	e := setupEngine()

	tests := []struct {
		name string
		args []string
	}{
		{"EX overflow", []string{"k", "v", "EX", "10000000000"}},
		{"PX overflow", []string{"k", "v", "PX", "10000000000000"}},
		{"EXAT overflow", []string{"k", "v", "EXAT", "10000000000"}},
		{"PXAT overflow", []string{"k", "v", "PXAT", "10000000000000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Execute("SET", makeArgs(tt.args...))
			if res.Type != resp.TypeError {
				t.Fatalf("SET %v = %v, want error", tt.args, res)
			}
			if string(res.String) != "ERR invalid expire time in 'set' command" {
				t.Errorf("error text = %q", res.String)
			}

			got := e.Execute("GET", makeArgs("k"))
			if !got.IsNull {
				t.Errorf("rejected SET must not create the key, got %q", got.String)
			}
		})
	}
}

// GC enabled with a zero interval must fall back instead of panicking in
// the ticker.
func TestEngineGCZeroInterval(t *testing.T) {
	s, _ := storage.NewShardedMapStorage(1) //nolint:errcheck
	e := NewEngine(s, &config.Config{
		GC: config.GCConfig{Enabled: true, SamplesPerCheck: 10, MatchThreshold: 0.25},
	}, logger.New("error", "console"))
	defer e.Shutdown()

	// give the GC goroutine a chance to start its ticker
	time.Sleep(20 * time.Millisecond)

	res := e.Execute("PING", makeArgs())
	if string(res.String) != "PONG" {
		t.Errorf("PING = %q, want PONG", res.String)
	}
}
