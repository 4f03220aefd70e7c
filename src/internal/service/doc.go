// Package service runs the reconciliation engine as a long-lived daemon.
//
// ServiceManager owns the engine, the filter store and the hostname poller.
// A single goroutine performs every pass, so timer ticks, configuration
// changes and API requests never interleave:
//
//	start      Recover, Reset, then apply when enabled
//	refresh    re-resolve host names and apply (every refresh_interval_minutes)
//	config     reload when the configuration hash changes
//	Reload     re-read the configuration and apply, or reset when disabled
//	ResetNow   reset and pause refreshes until the next Reload or ApplyNow
//	stop       Reset
//
// Example:
//
//	sm, err := service.NewServiceManager(cfg, service.Options{ConfigPath: path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := sm.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer sm.Stop()
package service
