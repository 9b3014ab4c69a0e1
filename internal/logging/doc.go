// Package logging sets up structured logging for docingest runs.
//
// Every run appends JSON records to a size-rotated run.log under
// ~/.docingest/logs (or the path given in config) and, unless disabled,
// mirrors a human-readable text stream to stderr.
package logging
