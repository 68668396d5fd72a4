package main

import (
	"database/sql"

	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/gradebook/fs"
)

// mockable
var gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
	return goose.RunFS(command, db, appfs.FS, "migrations", args...)
}

func (cli *commandLine) migrate(args []string) error {
	if cli.sqlDB == nil {
		return errors.New("migrations need a database engine")
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	if err := gooseRunFunc(args[0], cli.sqlDB, arguments...); err != nil {
		return err
	}
	cli.logger.Info("migrate " + args[0] + " done")
	return nil
}
