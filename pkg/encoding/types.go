// Package encoding selects the smallest exact storage container for
// homogeneous value buffers before they are persisted, and reserves an
// unused sentinel value to represent missing entries.
//
// The optimizer is a family of pure functions with no shared state.
// Missing-ness is an explicit parallel boolean mask rather than a reserved
// bit pattern in the value itself; a nil mask means no value is missing.
// Callers are responsible for physically writing the returned placeholder
// into missing slots before persisting.
package encoding

import "strconv"

// Container identifies a physical storage container type.
type Container int

const (
	// Uint8 is an unsigned 8-bit integer container.
	Uint8 Container = iota
	// Int8 is a signed 8-bit integer container.
	Int8
	// Uint16 is an unsigned 16-bit integer container.
	Uint16
	// Int16 is a signed 16-bit integer container.
	Int16
	// Uint32 is an unsigned 32-bit integer container.
	Uint32
	// Int32 is a signed 32-bit integer container.
	Int32
	// Float64 is a double-precision floating point container.
	Float64
	// FixedString is a fixed-width byte buffer with a character-set tag.
	FixedString
)

// String returns the wire name recorded in object metadata.
func (c Container) String() string {
	switch c {
	case Uint8:
		return "u8"
	case Int8:
		return "i8"
	case Uint16:
		return "u16"
	case Int16:
		return "i16"
	case Uint32:
		return "u32"
	case Int32:
		return "i32"
	case Float64:
		return "f64"
	case FixedString:
		return "string"
	default:
		return "unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

// CharSet tags the character set of a FixedString container.
type CharSet string

const (
	// CharSetASCII restricts values to single-byte ASCII.
	CharSetASCII CharSet = "ASCII"
	// CharSetUTF8 allows multi-byte UTF-8 sequences.
	CharSetUTF8 CharSet = "UTF-8"
)

// StorageType describes the chosen container. Width and CharSet are only
// meaningful for FixedString containers.
type StorageType struct {
	Container Container
	Width     int
	CharSet   CharSet
}

// IntegerEncoding is the optimizer output for integer buffers.
// Placeholder is nil when no value is missing.
type IntegerEncoding struct {
	Type        StorageType
	Placeholder *int64
}

// FloatEncoding is the optimizer output for real-number buffers. The
// container may be an integer rung when every finite value is integral.
type FloatEncoding struct {
	Type        StorageType
	Placeholder *float64
}

// StringEncoding is the optimizer output for text buffers.
type StringEncoding struct {
	Type        StorageType
	Placeholder *string
}

// BooleanEncoding is the optimizer output for boolean buffers. Booleans
// are always stored as signed 8-bit 0/1, with -1 reserved for missing.
type BooleanEncoding struct {
	Type        StorageType
	Placeholder *int8
}
