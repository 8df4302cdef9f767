// Package dotenv loads .env files as a side effect of being imported, for
// tests and tools that read credentials from the environment before any
// config is loaded.
//
//	import _ "hlsubmit/internal/bootstrap/dotenv"
package dotenv

import "hlsubmit/pkg/confkit"

func init() {
	confkit.LoadDotenvOnce()
}
