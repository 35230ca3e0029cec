// Package credential provides syntactic credential validation for subdash.
//
// It covers the two checks the dashboard performs before any remote call:
// - Email shape validation (purely syntactic, no MX or network lookups)
// - Password strength validation with ordered, single-reason feedback
//
// The package is deliberately pure: no I/O, no configuration, no state.
package credential
