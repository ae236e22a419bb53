// Package ledger is the durable, idempotent store of one record per
// outbound message, advanced by normalized provider events.
//
// The status field only ever moves forward along
// sent → delivered → opened → clicked, with bounced and spam reachable
// from any non-terminal state and themselves terminal. Timestamp fields
// are first-write-wins per field, so the final record is independent of
// event delivery order. The event journal provides the durable
// (message_id, event_type) dedup required for at-least-once webhook
// delivery.
package ledger
