// Package policy implements the command-execution state machine.
//
// # Overview
//
// Evaluator.Execute consumes one command and one identity and drives the
// rule store, credit ledger, approval queue, audit log, and notifier to
// a single terminal verdict: executed, rejected, pending_approval, or
// not executed.
//
// # Evaluation order
//
//  1. Resolve the identity (identity.ErrIdentityNotFound if absent).
//  2. Require balance >= cost. This pre-check runs before rule lookup
//     and writes no audit entry on failure.
//  3. Find the first matching rule in creation order.
//  4. No match: audit NOT_EXECUTED, default deny.
//  5. Dispatch on the rule's action: AUTO_ACCEPT charges and executes;
//     AUTO_REJECT rejects without charging; REQUIRE_APPROVAL queues a
//     PENDING approval request and alerts administrators best-effort;
//     TIMED_APPROVAL executes inside the working window and rejects
//     outside it.
//
// # Concurrency
//
// Many evaluations may be in flight for the same identity. The evaluator
// takes no lock over the whole decision; the credit charge is the only
// operation requiring strict atomicity and the ledger serializes it, so
// two concurrent AUTO_ACCEPT evaluations against a balance covering only
// one cannot both succeed.
package policy
