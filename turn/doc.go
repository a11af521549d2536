// Package turn sequences one conversational exchange through the fixed
// pipeline: load session history, classify the incoming message onto a
// behavior variant, compose the variant's instructions, invoke the
// generation capability, and persist the exchange. A turn never fails past
// its boundary: classification degrades to the default variant and a
// generation failure is replaced with an apologetic assistant message, so
// every submitted turn yields exactly one persisted reply. Turns on the same
// session are serialized; turns on different sessions run concurrently.
package turn
