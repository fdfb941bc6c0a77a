package main

import (
	"context"
	"fmt"
	"strings"
)

// repairEnrollments demotes duplicate enrolled memberships. Each affected
// user keeps their most recently joined enrollment.
func (cli *commandLine) repairEnrollments(ctx context.Context) error {
	repairs, err := cli.cohortSvc.RepairEnrollments(ctx)
	if err != nil {
		return err
	}
	if len(repairs) == 0 {
		fmt.Println("no duplicate enrollments found")
		return nil
	}
	for _, rep := range repairs {
		fmt.Printf("user %s: kept %s, demoted %s\n", rep.UserID, rep.KeptID, strings.Join(rep.DemotedIDs, ", "))
	}
	fmt.Printf("%d user(s) repaired\n", len(repairs))
	return nil
}
