// Package remote implements clients for the public translation and
// text-to-speech endpoints. Both clients are rate limited and wrap every call
// in a flat-delay retry policy.
package remote
