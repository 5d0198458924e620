// Package distance provides the float32 kernels used by clustering, encoding and
// deviation scoring.
//
// Kernels are plain Go loops over contiguous slices. Each function re-slices its
// second operand to the length of the first so the compiler can drop the bounds
// check inside the loop.
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
package distance
