// Package postgres implements the durable job mirror using pgx/v5 with
// raw SQL. Features: write-through upserts, partial indexes for the
// dashboard's status queries, embedded SQL migrations.
package postgres
