// Package core provides the foundational domain types shared by the runtime:
//
//   - Messages and Conversations (ordered, role-based transcript)
//   - ActionRequest / ActionResult (model-issued tool invocations and outcomes)
//   - Stable identifier generation for correlation
//
// The package intentionally keeps execution concerns (loop orchestration,
// model transport, tool dispatch) out of scope, exposing plain value types so
// higher layers can compose them without cyclic dependencies.
package core
