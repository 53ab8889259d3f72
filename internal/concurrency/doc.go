// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free primitives shared by the reactor package: a single-producer/
// single-consumer ring buffer used as each worker's local task queue.
package concurrency
