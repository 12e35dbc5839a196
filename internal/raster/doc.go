// Package raster holds the in-memory frame and mask types shared by the
// classifier, inpainters, and container adapters, plus image codecs built on
// imaging and golang.org/x/image.
package raster
