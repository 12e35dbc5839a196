// Package video cleans videos frame by frame.
//
// A video is probed, its audio track set aside, and its frames extracted at
// the source rate capped by a configured maximum. Frames are cleaned on a
// bounded worker pool; a frame whose cleaning fails keeps its original
// pixels. The cleaned frames are encoded back at the extraction rate with the
// original audio, optionally followed by a Drapto AV1 encode.
package video
