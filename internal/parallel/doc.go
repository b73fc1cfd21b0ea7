// Package parallel runs independent tasks on a fixed set of goroutines.
//
// The render graph uses it to execute the nodes of one depth level
// concurrently: nodes in a level never race on a resource, so their
// callbacks may run in any order.
package parallel
