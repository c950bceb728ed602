package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/mtihani/core/session"
)

func (cli *commandLine) issueLink(testID, email string, from, expires time.Time) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	nl := session.NewLink{
		TestID:        testID,
		UserID:        usr.ID,
		AvailableFrom: from,
		ExpiresAt:     expires,
	}
	if err := nl.Validate(ctx, cli.validate, cli.sessSvc); err != nil {
		return err
	}

	link, err := cli.sessSvc.IssueLink(ctx, nl)
	if err != nil {
		return err
	}
	fmt.Printf("link %s issued to %s; available %s - %s\n",
		link.ID, email, link.AvailableFrom.Format(time.RFC3339), link.ExpiresAt.Format(time.RFC3339))
	return nil
}
