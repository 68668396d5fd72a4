package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	out      io.Writer
	sqlDB    *sql.DB // nil with the in-memory engine
	usrSvc   *user.Service
	gradeSvc *grade.Service
	logger   core.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                    - run a goose command (up, down, status...)")
	fmt.Fprintln(cli.out, "  adduser -name -username -email -role       - create or update a user; the password is prompted")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL     - reset a user's password")
	fmt.Fprintln(cli.out, "")
	fmt.Fprintln(cli.out, "  The commands below need -as USERNAME; the password is prompted.")
	fmt.Fprintln(cli.out, "  enter -student -subject -class -year -trimester [-mac -pp -pt -retract -notes]")
	fmt.Fprintln(cli.out, "                                              - enter the sub-scores of one student")
	fmt.Fprintln(cli.out, "  import -file CSV -subject -class -year -trimester")
	fmt.Fprintln(cli.out, "                                              - enter a class's sub-scores from a CSV file")
	fmt.Fprintln(cli.out, "  recalculate [-year]                         - recompute stored averages")
	fmt.Fprintln(cli.out, "  report -class -subject -year -trimester     - class results of one period")
	fmt.Fprintln(cli.out, "  transcript -student -year                   - year results of a student")
	fmt.Fprintln(cli.out, "  sheet -class -year                          - year results of a class")
	fmt.Fprintln(cli.out, "  history -record ID                          - sub-score changes of a record")
	fmt.Fprintln(cli.out, "  addperiod -name -component -trimester -year -from -to")
	fmt.Fprintln(cli.out, "                                              - open an entry period")
	fmt.Fprintln(cli.out, "  closeperiod -id ID                          - close an entry period")
	fmt.Fprintln(cli.out, "  periods [-year] [-open]                     - list entry periods")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	cmdArgs := args[2:]
	switch args[1] {
	case "migrate":
		if len(cmdArgs) == 0 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(cmdArgs)
	case "adduser":
		return cli.addUserCmd(cmdArgs)
	case "resetpassword":
		return cli.resetPasswordCmd(cmdArgs)
	case "enter":
		return cli.enterCmd(cmdArgs)
	case "import":
		return cli.importCmd(cmdArgs)
	case "recalculate":
		return cli.recalculateCmd(cmdArgs)
	case "history":
		return cli.historyCmd(cmdArgs)
	case "report":
		return cli.reportCmd(cmdArgs)
	case "transcript":
		return cli.transcriptCmd(cmdArgs)
	case "sheet":
		return cli.sheetCmd(cmdArgs)
	case "addperiod":
		return cli.addPeriodCmd(cmdArgs)
	case "closeperiod":
		return cli.closePeriodCmd(cmdArgs)
	case "periods":
		return cli.periodsCmd(cmdArgs)
	default:
		cli.printUsage()
		return errHelp
	}
}

// command is a flag set whose errors and usage go to the CLI output.
type command struct {
	*flag.FlagSet
	as *string
}

func (cli *commandLine) newCommand(name string, withLogin bool) command {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	cmd := command{FlagSet: fs}
	if withLogin {
		cmd.as = fs.String("as", "", "Username or email of the operator. The password will be prompted next.")
	}
	return cmd
}

// parse parses args and returns errHelp when they are invalid or when a required flag is unset.
func (cmd command) parse(args []string, required ...string) error {
	if err := cmd.Parse(args); err != nil {
		return errHelp
	}
	set := make(map[string]bool)
	cmd.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if cmd.as != nil {
		required = append(required, "as")
	}
	for _, name := range required {
		if !set[name] {
			cmd.Usage()
			return errHelp
		}
	}
	return nil
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// login authenticates the operator of cmd.
func (cli *commandLine) login(ctx context.Context, cmd command) (user.User, error) {
	pwd, err := cli.readPassword("Enter password:")
	if err != nil {
		return user.User{}, err
	}
	if pwd == "" {
		cmd.Usage()
		return user.User{}, errHelp
	}
	return cli.usrSvc.Authenticate(ctx, *cmd.as, pwd)
}

// loginFor authenticates the operator of cmd and checks they hold capability c.
func (cli *commandLine) loginFor(ctx context.Context, cmd command, c user.Capability) (user.User, error) {
	usr, err := cli.login(ctx, cmd)
	if err != nil {
		return user.User{}, err
	}
	if err := cli.usrSvc.Authorize(usr, c); err != nil {
		return user.User{}, err
	}
	return usr, nil
}
