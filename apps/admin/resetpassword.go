package main

import (
	"context"

	"github.com/trezcool/gradebook/core/user"
)

func (cli *commandLine) resetPasswordCmd(args []string) error {
	cmd := cli.newCommand("resetpassword", false)
	uname := cmd.String("username", "", "The user's username or email. The password will be prompted next.")
	if err := cmd.parse(args, "username"); err != nil {
		return err
	}
	if *uname == "" {
		cmd.Usage()
		return errHelp
	}

	pwd, err := cli.readPassword("Enter password:")
	if err != nil {
		return err
	}
	if pwd == "" {
		cmd.Usage()
		return errHelp
	}
	return cli.resetPassword(*uname, pwd)
}

func (cli *commandLine) resetPassword(uname, pwd string) error {
	_, err := cli.usrSvc.ResetPassword(context.Background(), user.ResetUserPassword{
		Login:           uname,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	return err
}
