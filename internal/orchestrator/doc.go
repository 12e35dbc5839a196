// Package orchestrator decides who repairs a unit: it walks the configured
// remote providers in order with bounded, backed-off retries for transient
// failures, and falls back to the local inpainter when every provider fails
// or the caller's deadline passes.
//
// Payload-too-large is the one outcome that is not absorbed. It is returned
// as services.ErrPayloadTooLarge so a caller that can shrink its input (the
// document chunk splitter) gets the chance to.
package orchestrator
