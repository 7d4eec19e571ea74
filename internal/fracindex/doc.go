// Package fracindex generates fractional order keys.
//
// A key is a base-62 string made of an integer part and an optional
// fractional part. The first character (the head) encodes the length of the
// integer part: 'a'..'z' give lengths 2..27 for non-negative integers,
// 'Z'..'A' give lengths 2..27 for negative ones. The fractional part is an
// arbitrary-precision digit string that never ends in '0'.
//
// Keys compare with plain byte order, and for any two keys a < b there is
// always a key strictly between them, so an element can be slotted anywhere
// without rewriting its neighbours. Repeated insertion into the same gap
// grows the fractional part without bound instead of running out of
// precision.
//
// The empty string stands for "no bound" on either side:
//
//	KeyBetween("", "")     // "a0", the first key of an empty collection
//	KeyBetween("a0", "")   // "a1", append
//	KeyBetween("", "a0")   // "Zz", prepend
//	KeyBetween("a0", "a1") // "a0V"
package fracindex
