// Package db embeds the storefront database schema.
package db

import _ "embed"

// Schema contains the DDL statements for all storefront tables. Every
// statement is idempotent so it can be applied on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
