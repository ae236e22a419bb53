// Package suppression implements the global suppression store.
//
// This is the single source of truth for whether an address may receive
// mail. Entries flow in from the webhook policy engine (bounces,
// complaints, unsubscribes) and from manual admin actions, and are
// checked by the pre-send gate before every send. Entries never expire
// on their own; removal is an explicit administrative action.
//
// The service layer contains business logic only and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package suppression
