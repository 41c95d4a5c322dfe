// Package cmd implements the command-line interface of dSettings. It provides
// a hierarchical command structure with operations for running the settings
// server and for reading and changing settings values as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the dSettings server
//   - values: Commands for settings values (get, set, del, rename, reset, fetch, save, dump)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Configuration is read from flags, DSETTINGS_* environment variables, .env
// files and an optional config file (--config), in that order of precedence.
//
// See dsettings -help for a list of all commands.
package cmd
