// Package preflight provides readiness checks for the external tools,
// directories, and inpainting providers wmclean depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before it starts polling; failed directory
//     checks stop it early instead of failing every job.
//   - The CLI "wmclean status" command prints every check as a table.
package preflight
