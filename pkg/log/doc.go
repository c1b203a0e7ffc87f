// Package log provides the logging abstraction used across reportship.
//
// Components depend on the [Logger] interface only. [ZerologAdapter] backs it
// with zerolog; [NoopLogger] discards everything and is the library default.
//
// # Usage
//
// Build the process logger from options:
//
//	logger, closer, err := log.New(log.Options{Level: "info", File: "automation_log.txt"})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//
// Or wrap an existing zerolog.Logger:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
package log
