package fracindex

import (
	"errors"
	"fmt"
	"strings"
)

// Digits is the base-62 alphabet in ascending byte order.
const Digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// First is the key assigned to the first element of an empty collection.
const First = "a0"

// smallestInteger is the lowest representable integer part. It cannot be a
// key on its own because nothing could be generated before it.
var smallestInteger = "A" + strings.Repeat("0", 26)

var (
	// ErrInvalidKey reports a malformed key.
	ErrInvalidKey = errors.New("invalid order key")

	// ErrKeyOrder reports bounds that are equal or reversed.
	ErrKeyOrder = errors.New("order key bounds out of order")

	// ErrExhausted reports that the integer range ran out (after ~62^26
	// appends or prepends).
	ErrExhausted = errors.New("order key space exhausted")
)

// Validate checks that key is a well-formed order key.
func Validate(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if key == smallestInteger {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	i, err := integerPart(key)
	if err != nil {
		return err
	}
	for j := 1; j < len(key); j++ {
		if strings.IndexByte(Digits, key[j]) < 0 {
			return fmt.Errorf("%w: %q has non base-62 digit %q", ErrInvalidKey, key, key[j])
		}
	}
	if f := key[len(i):]; strings.HasSuffix(f, "0") {
		return fmt.Errorf("%w: %q has a trailing zero", ErrInvalidKey, key)
	}
	return nil
}

// IsValid reports whether key is a well-formed order key.
func IsValid(key string) bool {
	return Validate(key) == nil
}

// KeyBetween returns a key strictly between a and b. Either bound may be
// empty, meaning unbounded on that side.
func KeyBetween(a, b string) (string, error) {
	if a != "" {
		if err := Validate(a); err != nil {
			return "", err
		}
	}
	if b != "" {
		if err := Validate(b); err != nil {
			return "", err
		}
	}
	if a != "" && b != "" && a >= b {
		return "", fmt.Errorf("%w: %q >= %q", ErrKeyOrder, a, b)
	}

	if a == "" {
		if b == "" {
			return First, nil
		}
		ib, _ := integerPart(b)
		fb := b[len(ib):]
		if ib == smallestInteger {
			m, err := midpoint("", fb)
			if err != nil {
				return "", err
			}
			return ib + m, nil
		}
		if ib < b {
			return ib, nil
		}
		res, ok := decrementInteger(ib)
		if !ok {
			return "", fmt.Errorf("%w: cannot prepend before %q", ErrExhausted, b)
		}
		return res, nil
	}

	ia, _ := integerPart(a)
	fa := a[len(ia):]

	if b == "" {
		if i, ok := incrementInteger(ia); ok {
			return i, nil
		}
		m, err := midpoint(fa, "")
		if err != nil {
			return "", err
		}
		return ia + m, nil
	}

	ib, _ := integerPart(b)
	fb := b[len(ib):]
	if ia == ib {
		m, err := midpoint(fa, fb)
		if err != nil {
			return "", err
		}
		return ia + m, nil
	}
	i, ok := incrementInteger(ia)
	if !ok {
		return "", fmt.Errorf("%w: cannot append after %q", ErrExhausted, a)
	}
	if i < b {
		return i, nil
	}
	m, err := midpoint(fa, "")
	if err != nil {
		return "", err
	}
	return ia + m, nil
}

// NKeysBetween returns n strictly increasing keys between a and b.
// Keys between two bounds are spread by bisection so they stay short.
func NKeysBetween(a, b string, n int) ([]string, error) {
	switch {
	case n <= 0:
		return []string{}, nil
	case n == 1:
		k, err := KeyBetween(a, b)
		if err != nil {
			return nil, err
		}
		return []string{k}, nil
	}

	if b == "" {
		keys := make([]string, 0, n)
		c := a
		for len(keys) < n {
			next, err := KeyBetween(c, b)
			if err != nil {
				return nil, err
			}
			keys = append(keys, next)
			c = next
		}
		return keys, nil
	}

	if a == "" {
		keys := make([]string, n)
		c := b
		for i := n - 1; i >= 0; i-- {
			next, err := KeyBetween(a, c)
			if err != nil {
				return nil, err
			}
			keys[i] = next
			c = next
		}
		return keys, nil
	}

	mid := n / 2
	c, err := KeyBetween(a, b)
	if err != nil {
		return nil, err
	}
	left, err := NKeysBetween(a, c, mid)
	if err != nil {
		return nil, err
	}
	right, err := NKeysBetween(c, b, n-mid-1)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, n)
	keys = append(keys, left...)
	keys = append(keys, c)
	return append(keys, right...), nil
}

// midpoint returns a digit string strictly between the fractional parts a
// and b. b == "" means no upper bound. Neither may end in '0'.
func midpoint(a, b string) (string, error) {
	if b != "" && a >= b {
		return "", fmt.Errorf("%w: %q >= %q", ErrKeyOrder, a, b)
	}
	if strings.HasSuffix(a, "0") || strings.HasSuffix(b, "0") {
		return "", fmt.Errorf("%w: trailing zero in fraction", ErrInvalidKey)
	}

	if b != "" {
		// Strip the longest common prefix, padding a with zeros.
		n := 0
		for n < len(b) && digitAt(a, n) == b[n] {
			n++
		}
		if n > 0 {
			rest, err := midpoint(suffix(a, n), b[n:])
			if err != nil {
				return "", err
			}
			return b[:n] + rest, nil
		}
	}

	digitA := 0
	if a != "" {
		digitA = strings.IndexByte(Digits, a[0])
	}
	digitB := len(Digits)
	if b != "" {
		digitB = strings.IndexByte(Digits, b[0])
	}

	if digitB-digitA > 1 {
		return string(Digits[(digitA+digitB+1)/2]), nil
	}

	// First digits are consecutive.
	if len(b) > 1 {
		return b[:1], nil
	}
	rest, err := midpoint(suffix(a, 1), "")
	if err != nil {
		return "", err
	}
	return string(Digits[digitA]) + rest, nil
}

func digitAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return Digits[0]
}

func suffix(s string, n int) string {
	if n >= len(s) {
		return ""
	}
	return s[n:]
}

func integerLength(head byte) (int, error) {
	switch {
	case head >= 'a' && head <= 'z':
		return int(head-'a') + 2, nil
	case head >= 'A' && head <= 'Z':
		return int('Z'-head) + 2, nil
	default:
		return 0, fmt.Errorf("%w: bad head %q", ErrInvalidKey, head)
	}
}

func integerPart(key string) (string, error) {
	n, err := integerLength(key[0])
	if err != nil {
		return "", err
	}
	if n > len(key) {
		return "", fmt.Errorf("%w: %q is shorter than its integer part", ErrInvalidKey, key)
	}
	return key[:n], nil
}

// incrementInteger adds one to an integer part. ok is false past the
// largest integer ('z' followed by 26 'z's).
func incrementInteger(x string) (string, bool) {
	head := x[0]
	digs := []byte(x[1:])
	carry := true
	for i := len(digs) - 1; carry && i >= 0; i-- {
		d := strings.IndexByte(Digits, digs[i]) + 1
		if d == len(Digits) {
			digs[i] = Digits[0]
		} else {
			digs[i] = Digits[d]
			carry = false
		}
	}
	if !carry {
		return string(head) + string(digs), true
	}
	switch head {
	case 'Z':
		return "a" + string(Digits[0]), true
	case 'z':
		return "", false
	}
	h := head + 1
	if h > 'a' {
		digs = append(digs, Digits[0])
	} else {
		digs = digs[:len(digs)-1]
	}
	return string(h) + string(digs), true
}

// decrementInteger subtracts one from an integer part. ok is false below
// the smallest integer.
func decrementInteger(x string) (string, bool) {
	head := x[0]
	digs := []byte(x[1:])
	borrow := true
	for i := len(digs) - 1; borrow && i >= 0; i-- {
		d := strings.IndexByte(Digits, digs[i]) - 1
		if d == -1 {
			digs[i] = Digits[len(Digits)-1]
		} else {
			digs[i] = Digits[d]
			borrow = false
		}
	}
	if !borrow {
		return string(head) + string(digs), true
	}
	switch head {
	case 'a':
		return "Z" + string(Digits[len(Digits)-1]), true
	case 'A':
		return "", false
	}
	h := head - 1
	if h < 'Z' {
		digs = append(digs, Digits[len(Digits)-1])
	} else {
		digs = digs[:len(digs)-1]
	}
	return string(h) + string(digs), true
}
