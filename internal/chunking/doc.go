// Package chunking splits paged documents into byte-budgeted page ranges,
// runs a processing function over each range, and bisects ranges the
// function rejects as too large. Ranges that keep failing pass through
// unmodified so the reassembled document keeps its page count.
package chunking
