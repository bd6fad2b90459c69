//go:build !sqlite_vec

package store

import (
	_ "modernc.org/sqlite"
)

// Pure-Go driver; no cgo toolchain required.
const driverName = "sqlite"
