// Package commands implements CLI command handlers for keen-iprules.
//
// Each command implements the Runner interface:
//   - Init(): Parse arguments and load the configuration
//   - Run(): Execute the command
//   - Name(): Return command name for routing
//
// # Available Commands
//
//   - service: Run as a daemon; applies rules, refreshes host names, serves the REST API
//   - apply: Apply the configured rules once and exit
//   - undo: Remove every rule keen-iprules created and re-enable the ones it disabled
//   - check: Validate the configuration and print the rules it produces
//   - list: Print the entries of the filter store
//
// # Example Usage
//
//	cmd := commands.CreateApplyCommand()
//	ctx := &commands.AppContext{
//	    ConfigPath: "/opt/etc/keen-iprules/keen-iprules.toml",
//	}
//	if err := cmd.Init(args, ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cmd.Run(); err != nil {
//	    log.Fatal(err)
//	}
package commands
