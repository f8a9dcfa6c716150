// Package cmd implements the command-line interface for housemgr.
//
// This package provides the following commands:
//   - read: Print unread messages and mark them as read (the default)
//   - send: Send a message with an optional attachment
//   - auth: Run the OAuth2 browser flow and store the token file
//   - run: Run read passes on the [Manager] schedule and send reports
//   - config: Print the sections and keys of the configuration file
//   - version: Display version information
//
// Every command reads the INI configuration named by --config. A missing or
// invalid configuration file makes the process exit with status 1.
package cmd
