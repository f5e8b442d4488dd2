// Package kalman owns the motion estimation core.
//
// Responsibilities: per-axis constant-acceleration Kalman filtering of
// accelerometer samples (bias high-pass pre-filter, zero-velocity
// detection, predict/correct cycle) and composition of three independent
// axes into a MotionSample.
// Key types: AxisEstimator, TriAxisEstimator, MotionSample.
//
// Dependency rule: no transport, storage or HTTP code is allowed in this
// package. Estimators are not safe for concurrent use; callers serialise
// Update and Reset.
package kalman
