// Package config defines the application settings and the note-to-product
// mapping, with helpers to load and validate them from YAML files.
//
// Load starts from Default and unmarshals on top of it, so absent keys keep
// their documented default values. Durations accept Go duration strings or
// bare integers interpreted as milliseconds.
package config
