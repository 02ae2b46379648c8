package main

import (
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"tomgalvin.uk/catprint/internal/history"
)

func NewRepository(path string) (*history.Repository, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("Couldn't open database:\n%w", err)
	}
	r, err := history.NewRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}
