// Package remote talks to remote inpainting services.
//
// Two transports share one Provider interface: SyncProvider returns the result
// in the submission response, AsyncProvider creates a task and polls it to a
// terminal state. Responses are normalized to raw bytes whether the service
// returns binary, a data URI, inline base64, or a URL to download.
//
// Providers report failures as a Result outcome rather than an error. HTTP
// 413 and size-limit messages are too-large, 408/429/5xx and network failures
// are transient, everything else is fatal. Retrying is left to the caller.
package remote
