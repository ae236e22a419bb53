// Package domain defines the core types shared across the delivery
// tracking pipeline: delivery records, normalized provider events,
// suppression entries and per-recipient bounce history.
//
// Types here carry no behavior beyond small pure helpers (status
// ordering, email normalization). All I/O lives in the service and
// repository layers.
package domain
