// Package state implements the scoped, permissioned, TTL-aware key-value
// store shared across cooperating agents. It is the substrate every higher
// memory layer persists through.
//
// Keys are qualified by one of four scopes (global, user, session, agent);
// every read, write and delete passes a permission check derived from the
// caller's CallContext before touching an entry. Expired entries are treated
// as absent on read and purged lazily, so no background sweeper is required.
//
// The store keeps an in-memory map as its authoritative façade and optionally
// writes through to a durable Backend. Backend unavailability degrades the
// store to local-only operation rather than failing callers; no write is
// dropped without being retained at least in process.
package state
