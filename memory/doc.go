// Package memory implements the tiered memory subsystem: bounded
// conversational memory, vector-similarity semantic memory and cross-session
// context retrieval, all built on the scoped state store and the shared
// embedding service.
//
// Instances are obtained through a Factory keyed by (agent, session, type);
// repeated requests with the identical key return the identical instance so
// every collaborator within a session observes the same memory. The Factory
// replaces the original design's module-level singletons with an explicit,
// dependency-injected registry.
package memory
