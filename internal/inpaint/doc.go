// Package inpaint implements the local neighbourhood-average fill used when
// no remote provider is configured or every provider has failed. It never
// touches the network and never fails.
package inpaint
