// Package model defines the generation capability boundary consumed by the
// turn pipeline and the classification engine. The core treats a Model as a
// fallible, possibly slow, stateless function from messages to text; provider
// adapters live in sub-packages (anthropic, openai) so that no calling code
// depends on a concrete vendor SDK.
package model
