// Package audio plays synthesized MP3 speech. OtoPlayer decodes with beep and
// streams PCM to the sound device through oto; MockPlayer simulates playback
// for tests.
//
// Builds tagged nocgo replace OtoPlayer with a stub that reports
// ErrUnavailable, so packages that only need Player build without cgo.
package audio
