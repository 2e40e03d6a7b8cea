// Package queue plays synthesized chunks strictly in the order they were
// enqueued, one at a time, with bounded retries for clips that fail to play.
package queue
