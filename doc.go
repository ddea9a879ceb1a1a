// Package reactor is a reactive state-container runtime.
//
// A Runtime owns one Container per state type. A container holds the current
// immutable snapshot of that type and replaces it wholesale on every merge.
// Subscribers never watch the whole object: they subscribe to topics, named
// subsets of the snapshot's fields, and are notified only when a merge
// touches one of them.
//
// Responsibilities:
//   - Snapshot types implement Deriver: given a Changes map they return a new
//     snapshot with those fields replaced. MapSnapshot and DeriveJSON cover
//     the common cases.
//   - Container[S] applies changes, commits the derived snapshot and fans the
//     emitted topic set ({self} plus the changed keys) out to reactions.
//   - ValueReaction[S, T] caches a projection and notifies its listeners only
//     when the projected value changes. EffectReaction[S] runs its effect on
//     every matching notification.
//   - Dispatch runs an Action against one container, handing it read access,
//     an update handle and the runtime's ServiceProvider.
//
// Data flow:
//
//	Dispatch -> Action -> Updater.Apply -> Deriver.Derive -> commit -> Registry fan-out -> reactions
//
// Concurrency:
//
//	Actions against the same state type are serialized. A reaction or
//	listener that mutates the container it is being notified for fails with
//	ErrReentrantMutation, whichever context it passes. Mutating other
//	containers from an effect is allowed; cycles across containers are
//	rejected the same way.
package reactor
