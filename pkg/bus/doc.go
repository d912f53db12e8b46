// Package bus implements the crosstalk state-synchronization bus.
//
// # Overview
//
// The bus lets independently rendered, otherwise unaware widgets (charts,
// maps, filter controls) share live selection and filter state. Widgets never
// talk to each other directly: each one binds a Handle to a named Group, and
// every publish on a Group's variables fans out synchronously to every other
// subscriber of that Group.
//
// # Core Concepts
//
// Keys are opaque, stable strings naming logical data rows. They are the only
// vocabulary used to describe selection and filter membership - never row
// indices, never row contents.
//
// Groups are named scopes of shared state. Two Handles constructed with the
// same group name are linked by definition; the bus performs no structural
// validation that their key universes correspond. That contract is the
// integrator's responsibility.
//
// Variables are the atomic unit of shared state: one named slot inside a
// Group holding a current value plus its subscribers. Every Group has at
// least the "selection" and "filter" variables; arbitrary additional names
// may be used.
//
// Handles bind one dataset's key sequence to one Group and are what widget
// adapters talk to: publish and read selection, contribute to and read the
// group-wide effective filter, and Dispose on unmount.
//
// # Filter Aggregation
//
// Each Handle contributes at most one filter assertion to its Group. The
// effective filter is the intersection of all active contributions, computed
// over the union of the live Handles' key universes: a key outside a given
// Handle's universe is not excluded by that Handle. With zero active
// contributions the effective filter is unconstrained, which is distinct
// from a filter that selects zero rows.
//
// # Delivery Semantics
//
// Publishes on one Variable are totally ordered; subscribers are notified in
// subscription order, each callback completing before the next begins. The
// subscriber list is snapshotted when a publish is dequeued: a subscriber
// added during dispatch is not notified for that publish, and one removed
// during dispatch is skipped. A publish issued from inside a callback on the
// same Variable is queued and delivered after the current pass completes,
// never nested.
//
// # Lifetime
//
// A Bus is an explicitly constructed object scoped to one live document or
// session. It is not a package-level singleton; each embedder (and each
// test) builds its own with New. Groups are created lazily on first
// reference and never deleted. Handles are created and disposed with their
// owning widget's mount and unmount.
package bus
