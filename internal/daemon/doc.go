// Package daemon coordinates the long-running wmclean process.
//
// It wires configuration, queue storage, the workflow manager and an HTTP
// endpoint (Prometheus metrics plus a JSON /status snapshot) into a single
// lifecycle with flock-based locking to prevent multiple instances. On start
// it returns jobs orphaned by a previous crash to pending and runs directory
// preflight checks; on stop it marks jobs still in flight as failed so they
// can be retried.
package daemon
