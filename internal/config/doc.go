// Package config loads the housemgr INI configuration file.
//
// The file is organised in sections. Only [Server] is required:
//
//	[Server]
//	token_file = token.json
//	credentials_file = credentials.json
//
//	[Mail]
//	sender = house@example.com
//	mark_read = true
//	body_format = markdown
//
//	[Manager]
//	schedule = @every 15m
//	report_to = me@example.com
//
// Keys are case-insensitive. Relative paths are resolved against the
// directory that contains the configuration file.
package config
