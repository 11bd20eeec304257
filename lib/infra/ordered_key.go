package infra

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Integer is a constraint that permits any integer type.
type Integer interface {
	Signed | Unsigned
}

// Float is a constraint that permits any floating-point type.
type Float interface {
	~float32 | ~float64
}

// OrderedKey
// byte => ~uint8
// The keys are compared by the built-in operators, so the ordering
// is the type's own total order.
type OrderedKey interface {
	Integer | Float | ~string
}

// IsNullKey reports whether the key is the null-equivalent of its type.
// Only a floating-point NaN is not equal to itself, and NaN has no place
// in a total order, so it is treated as a missing key.
func IsNullKey[K OrderedKey](key K) bool {
	return key != key
}

// Compare
// Assume i is the new key.
//  1. i == j, return 0
//  2. i > j, return 1, turn to right part.
//  3. i < j, return -1, turn to left part.
func Compare[K OrderedKey](i, j K) int {
	if i == j {
		return 0
	} else if i < j {
		return -1
	}
	return 1
}
