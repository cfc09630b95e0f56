// Package agent contains the execution loop tying the runtime together: send
// the conversation to the backend, dispatch requested actions through the
// tool registry, compress history when the budget manager signals overflow,
// and repeat until the model signals completion or a limit is hit.
//
// Design principles:
//   - Minimal hidden global state: explicit wiring via functional options
//   - One in-flight backend call per run; bounded fan-out only across
//     sibling tool dispatches within a turn
//   - Every termination path yields a RunResult with the best available
//     partial output, never a raw internal fault
package agent
