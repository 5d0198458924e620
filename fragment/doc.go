// Package fragment turns animation samples into fixed-length feature vectors
// ("fragments") and compresses them into codebooks.
//
// A Metric fixes the layout of a fragment class:
//
//   - KindTrajectory: for N+1 offsets evenly spread over [-horizon, +horizon]
//     around the target frame, the root linear velocity and forward direction
//     (both in the root space of the target frame), optionally followed by the
//     N root displacements between consecutive offsets.
//   - KindPose: per configured joint, its position and linear velocity in root
//     space.
//
// Build extracts every frame of every interval from a Sampler, computes
// per-column normalization statistics, trains a quantization.SubspaceQuantizer
// in normalized space and encodes all frames into a Codebook. A Codebook is
// bound to one Metric and maps every Interval to a contiguous run of rows in
// its flat code array, so the code of any (interval, frame) is found in O(1).
//
//	cb, err := fragment.Build(ctx, sampler, fragment.DefaultTrajectoryMetric())
//	code, _ := cb.CodeAt(intervalID, frame)
//	f := cb.Decode(code) // dequantized and de-normalized
//
// Codebooks are immutable once built and safe for concurrent readers.
package fragment
