package resp

const (
	TypeSimpleString = '+'
	TypeError        = '-'
	TypeInteger      = ':'
	TypeBulkString   = '$'
	TypeArray        = '*'
)

// Value is a single RESP2 value. The Type byte selects the payload field:
// String for simple strings, errors and bulk strings, Integer for integers,
// Array for arrays. IsNull marks the null bulk string ($-1) and the null
// array (*-1), which are distinct from their empty forms.
//
// Simple strings and errors must not contain CR or LF; arbitrary bytes
// belong in a bulk string.
type Value struct {
	String  []byte // SimpleString, Error, BulkString
	Array   []Value
	Integer int64
	Type    byte
	IsNull  bool // null BulkString and null Array
}
