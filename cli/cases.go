package cli

// This file contains the cases command listing the case ids of the project.

import (
	"fmt"
	"strings"

	"github.com/qasego/qasego/config"
	"github.com/qasego/qasego/qase"
	"github.com/urfave/cli/v2"
)

func (a *App) cases(ctx *cli.Context) error {
	env, err := config.Load(ctx.Context)
	if err != nil {
		return err
	}
	if env.Token == "" || env.ProjectCode == "" {
		return cli.Exit("QASE_TOKEN and QASE_PROJECT_CODE are required", exitUsageError)
	}

	client := qase.NewClient(a.logger, env.Token, env.ProjectCode,
		qase.WithBaseURL(env.APIURL),
		qase.WithRateLimit(env.RateLimit, 1),
	)
	ids, err := client.ListCaseIDs(ctx.Context)
	if err != nil {
		return err
	}

	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, fmt.Sprintf("%s-%d", env.ProjectCode, id))
	}
	fmt.Fprintf(a.stdout, "%d cases in project %s\n", len(ids), env.ProjectCode)
	if len(refs) > 0 {
		fmt.Fprintln(a.stdout, strings.Join(refs, "\n"))
	}
	return nil
}
