// Package core provides the foundational domain types shared across
// PersonaKit subsystems. It defines:
//
//   - CallContext (caller identity used for scoping and permission checks)
//   - Message (a single conversational element with role + content)
//   - MemoryRecord (the persisted unit of conversational/semantic memory)
//   - SearchResult (a scored memory retrieval hit)
//
// The package intentionally keeps implementation concerns (stores, engines,
// model providers) out of scope so that every subsystem can depend on it
// without cycles. Contracts that belong to exactly one subsystem (e.g. the
// classification result) live with that subsystem instead.
package core
