// Package bunstore implements the durable job mirror on top of the
// uptrace/bun ORM. It speaks the same PostgreSQL schema as the pgx-based
// mirror in store/postgres, so the two are interchangeable over one
// database; pick this one when the host application already manages a
// *bun.DB and wants the mirror to share its connection pool.
//
// The caller owns the *bun.DB lifecycle:
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//
//	mirror := bunstore.New(db)
//	eng, err := dutyleak.New(dutyleak.WithMirror(mirror))
package bunstore
