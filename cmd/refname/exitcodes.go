package main

// Exit codes
const (
	ExitSuccess      = 0   // Success
	ExitError        = 1   // General error (invalid arguments, runtime failure)
	ExitConfigError  = 2   // Configuration error (unreadable or invalid config)
	ExitDataError    = 3   // Data error (missing directory, unreadable ledger)
	ExitLedgerLocked = 4   // Another refname process holds the ledger
	ExitDocErrors    = 5   // Run finished but some documents ended in error
	ExitInterrupted  = 130 // Run cancelled by signal
)
