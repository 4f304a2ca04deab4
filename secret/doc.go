// Package secret resolves credential values in configuration.
//
// A value is first expanded against the environment with ExpandEnvStrict.
// If the result has the form
//
//	secretref:<provider>:<ref>
//
// it is resolved through the named Provider. Two providers are built in:
// EnvProvider ("env") reads an environment variable and FileProvider
// ("file") reads a mounted secret file, trimming the trailing newline.
//
// Resolved values are never logged.
package secret
