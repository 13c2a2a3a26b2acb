// Package migrations embeds the SQL schema files so every binary and test
// applies the same schema.
package migrations

import "embed"

// FS holds 001_create_schema.<driver>.<up|down>.sql
//
//go:embed *.sql
var FS embed.FS
