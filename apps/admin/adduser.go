package main

import (
	"context"

	"github.com/shule/backend/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	var roles []string
	if isAdmin {
		roles = []string{user.RoleAdmin}
	}
	_, err := cli.usrSvc.AddOrUpdate(context.Background(), uname, email, pwd, roles)
	return err
}
