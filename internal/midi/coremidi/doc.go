// Package coremidi implements the midi.Device contract on top of Apple's
// CoreMIDI via github.com/youpy/go-coremidi. On other platforms a stub is
// built whose stream operations fail, so the binary still compiles and the
// devices subcommand degrades gracefully.
package coremidi
