// Package preflight provides readiness checks for the filesystem paths and
// documents Resonance depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before it starts serving. If any check fails,
//     startup is refused so requests never reach a half-configured engine.
//   - The CLI "resonance status" command renders every result as a table.
package preflight
