// Package commands defines the avatargw CLI.
//
// Commands
//
//   - serve      Run the HTTP gateway (default when no subcommand is given)
//   - avatars    Print the provider's avatar catalogue as JSON
//   - version    Print the build version
//
// The root command loads configuration from the environment and builds the
// structured logger before any subcommand runs.
package commands
