// Command resetpw manages the user accounts stored in a StaX catalog.
//
// Usage:
//
//	resetpw <command> [user]
//
// Commands:
//
//	create <user> [--admin]  Create an account. The password is read twice
//	                         from the terminal without echo.
//
//	reset <user>             Set a new password for an existing account.
//	                         All of the user's sessions are ended.
//
//	status                   Print the schema version and every account
//	                         with its role, state and last login.
//
// Environment:
//
//	STAX_DB_PATH - Path to the catalog database (default: ./data/stax.db)
//
// The other STAX_* variables and STAX_CONFIG are honoured as well; see
// package config.
package main
