// Package order maintains the total draw order of a scene.
//
// Elements are ordered by their fractional index key (see package
// fracindex), ties broken by element id. This package sorts collections,
// repairs keys that are missing, malformed, duplicated or out of order, and
// validates the result.
//
// Every function here returns a new slice and leaves its input untouched.
//
// Repair rewrites the smallest contiguous runs of bad keys it can find,
// generating replacements between the nearest valid neighbours, so most
// elements keep their keys and a peer never has to renumber its scene.
package order
