// Package database provides SQLite persistence for ir-relay.
//
// It wraps database/sql with connection lifecycle management, WAL
// configuration, health checks, and idempotent schema initialisation
// for the command log.
//
// # Configuration
//
//	database:
//	  path: "./data/irrelay.db"
//	  wal_mode: true
//	  busy_timeout: 5
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.InitSchema(ctx); err != nil {
//	    return err
//	}
package database
