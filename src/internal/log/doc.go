// Package log provides simple leveled logging for keen-iprules.
//
// This package implements a lightweight logging system with colored output
// and support for different log levels: DEBUG, INFO, WARN, and ERROR.
//
// # Log Levels
//
//   - DEBUG: Detailed diagnostic information (only shown in verbose mode)
//   - INFO: General informational messages
//   - WARN: Warning messages for potentially problematic situations
//   - ERROR: Error messages for failures and exceptions
//
// # Loggers
//
// Components that need a logger receive a *Logger at construction time:
//
//	logger := log.New(os.Stdout, os.Stderr).WithPrefix("engine")
//	eng := engine.New(store, engine.WithLogger(logger))
//
// The package-level functions (Infof, Warnf, ...) write through Default(),
// which is what the command layer uses:
//
//	log.SetVerbose(true)
//	log.Debugf("Detailed trace: %+v", data)
//
// Fatal errors that exit the application:
//
//	if err != nil {
//	    log.Fatalf("Critical error: %v", err) // Exits with code 1
//	}
package log
