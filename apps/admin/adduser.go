package main

import (
	"context"

	"github.com/fatih/color"

	"github.com/trezcool/gradebook/core/user"
)

func (cli *commandLine) addUserCmd(args []string) error {
	cmd := cli.newCommand("adduser", false)
	name := cmd.String("name", "", "The user's full name.")
	uname := cmd.String("username", "", "The user's username; one of username or email is required.")
	email := cmd.String("email", "", "The user's email.")
	role := cmd.String("role", string(user.RoleTeacher), "One of administrator, secretary, director, teacher, student, operator.")
	studentID := cmd.Int("student", 0, "The student ID of a student account.")
	isAdmin := cmd.Bool("admin", false, "Shorthand for -role administrator.")
	if err := cmd.parse(args, "name"); err != nil {
		return err
	}
	if *uname == "" && *email == "" {
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

	nu := user.NewUser{
		Name:            *name,
		Username:        *uname,
		Email:           *email,
		Role:            user.Role(*role),
		StudentID:       *studentID,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if *isAdmin {
		nu.Role = user.RoleAdministrator
	}
	usr, err := cli.addUser(context.Background(), nu)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cli.out, "user %s saved (%s)\n", usr.ID, usr.Role)
	return nil
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	return cli.usrSvc.UpdateOrCreate(ctx, nu)
}
