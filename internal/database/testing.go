package database

import (
	"fmt"
	"os"

	"github.com/ecomonitor-io/ecomonitorgo/internal/config"
)

// ConnectEphemeral starts a throwaway embedded instance on the given port
// with a temporary data directory. Intended for package tests; the returned
// cleanup stops the instance and removes the directory.
func ConnectEphemeral(port int) (*DB, func(), error) {
	dataPath, err := os.MkdirTemp("", "ecomonitor-pg-")
	if err != nil {
		return nil, nil, fmt.Errorf("temp dir: %w", err)
	}

	db, err := Connect(config.DatabaseConfig{
		Host:             "localhost",
		Username:         "postgres",
		Database:         "ecomonitor_test",
		EmbeddedDataPath: dataPath,
		EmbeddedPort:     port,
	})
	if err != nil {
		os.RemoveAll(dataPath)
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
		os.RemoveAll(dataPath)
	}
	return db, cleanup, nil
}
