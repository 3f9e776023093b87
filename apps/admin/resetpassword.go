package main

import (
	"context"
	"fmt"

	"github.com/coffeehubnepal/api/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if reason := user.CheckPassword(pwd, usr.Email, usr.Name); reason != "" {
		return user.ErrWeakPassword.WithMessage(reason)
	}
	if _, err := cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return err
	}
	fmt.Printf("password updated for %s\n", usr.Email)
	return nil
}

func (cli *commandLine) createAdmin(email, name, role, pwd string) error {
	usr, err := cli.usrSvc.CreateStaff(context.Background(), email, name, role, pwd)
	if err != nil {
		return err
	}
	fmt.Printf("%s account created for %s\n", usr.Role, usr.Email)
	return nil
}
