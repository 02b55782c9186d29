//go:build sqlite_vec && cgo

package vectorstore

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Built with -tags sqlite_vec, this also registers the real sqlite-vec
// extension against mattn/go-sqlite3. Store opens the modernc "sqlite"
// driver, so it keeps using the pure-Go vec0 module from vec_compat.go,
// which is compiled in either way.
func init() {
	vec.Auto()
}
