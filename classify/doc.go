// Package classify implements the variant classification engine: given a
// free-text turn and a target agent, it selects the behavior variant that
// should handle the turn.
//
// The primary path asks the generation capability for a structured label and
// parses it tolerantly. Every failure along that path — model errors, bad
// output, unknown variants, a missing catalog — is absorbed by the
// deterministic keyword fallback, which always succeeds. Classification can
// therefore never block a turn.
package classify
