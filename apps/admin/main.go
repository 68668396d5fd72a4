package main

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/gradebook/apps/di/dig"
	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

type params struct {
	dig.In
	Logger   core.Logger
	DB       *sqlx.DB
	UserSvc  *user.Service
	GradeSvc *grade.Service
}

func main() {
	var exitCode int
	c := dig_container.New()

	err := c.Invoke(func(p params) {
		var sqlDB *sql.DB
		if p.DB != nil {
			defer func() { _ = p.DB.Close() }()
			sqlDB = p.DB.DB
		}

		// start CLI
		cli := commandLine{
			out:      os.Stdout,
			sqlDB:    sqlDB,
			usrSvc:   p.UserSvc,
			gradeSvc: p.GradeSvc,
			logger:   p.Logger,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				printError(os.Stderr, err)
			}
			exitCode = 1
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(exitCode)
}

// printError prints err, one line per field for validation errors.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed)

	var vErr *core.ValidationError
	if !errors.As(err, &vErr) || len(vErr.Fields) == 0 {
		red.Fprintf(w, "error: %s\n", err)
		return
	}
	red.Fprintf(w, "error: %s\n", vErr)
	for _, fErr := range vErr.Fields {
		fmt.Fprintf(w, "  %s: %s\n", fErr.Field, fErr.Error)
	}
}
