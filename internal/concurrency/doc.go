// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-size worker pool behind the connection dispatcher. Accepted work
// waits in a bounded FIFO; submitters block while it is full.
package concurrency
