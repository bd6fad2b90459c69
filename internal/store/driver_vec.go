//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// cgo driver with the sqlite-vec extension auto-loaded. Same schema as the
// pure-Go build; the extension accelerates distance computation when queries
// are issued through vec0 virtual tables.
const driverName = "sqlite3"

func init() {
	vec.Auto()
}
