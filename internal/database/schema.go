package database

import _ "embed"

// Schema is the full database schema produced by the migrations. Tests apply
// it to in-memory databases instead of running migrations.
//
//go:embed sqlc/schema.sql
var Schema string
