// Package retry runs fallible remote operations under a bounded retry policy.
// Two policies are provided: a flat delay between attempts, and a linear
// backoff where the wait grows with the attempt number.
package retry
