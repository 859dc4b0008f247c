// Package work runs CPU-bound jobs such as portfolio solves on a bounded
// pool so that request goroutines do not all compete for cores at once.
//
// Each job gets a deadline derived from the caller's context and the pool
// timeout; solvers are expected to poll ctx and return early when it ends.
package work
