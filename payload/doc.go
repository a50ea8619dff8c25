// Package payload implements the binary codec packets use to encode their fields.
//
// A Writer appends primitives to a growing byte slice and a Reader consumes them
// from the front of a buffer in the same order. Variable-length integers use
// LEB128 with the two's-complement bit pattern of the signed value, so ids and
// lengths below 128 cost a single byte.
package payload
