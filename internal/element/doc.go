// Package element defines the scene element record shared by every other
// package: the drawable unit, its version counters, its fractional order key
// and its drawing attributes.
//
// This package imports nothing internal. Everything that reconciles, orders,
// stores or ships elements builds on these types.
//
// Key design constraints:
//   - NO float types in attributes - coordinates are integer scene units, so
//     canonical encoding is byte-stable across replicas
//   - Elements are values; helpers return modified copies and never mutate
//     their inputs
//   - All JSON tags use snake_case
//   - Deletion is a tombstone (IsDeleted), never a physical removal
package element
