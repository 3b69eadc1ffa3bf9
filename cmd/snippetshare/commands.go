package main

import "github.com/urfave/cli/v3"

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "snippetshare",
		Usage:   "Code snippet sharing API",
		Version: version,
		Action:  r.Serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: r.Serve,
			},
			{
				Name:   "migrate",
				Usage:  "Create missing tables and indexes",
				Action: r.Migrate,
			},
			{
				Name:  "reset-db",
				Usage: "Drop every table and recreate the schema (all data is lost)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm that all data may be deleted",
					},
				},
				Action: r.ResetDB,
			},
			{
				Name:   "create-superuser",
				Usage:  "Create an admin account (does nothing when it already exists)",
				Flags:  superuserFlags(),
				Action: r.CreateSuperuser,
			},
			{
				Name:      "set-active",
				Usage:     "Enable or disable an account",
				ArgsUsage: "<username or email>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "disable",
						Usage: "Disable the account instead of enabling it",
					},
				},
				Action: r.SetActive,
			},
			{
				Name:  "deploy",
				Usage: "Prepare the database for a release: migrate, then create the superuser",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Drop and recreate every table first",
					},
				}, superuserFlags()...),
				Action: r.Deploy,
			},
		},
	}
}

// superuserFlags override SUPERUSER_USERNAME, SUPERUSER_EMAIL and
// SUPERUSER_PASSWORD.
func superuserFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "username", Usage: "Superuser username (default $SUPERUSER_USERNAME)"},
		&cli.StringFlag{Name: "email", Usage: "Superuser email (default $SUPERUSER_EMAIL)"},
		&cli.StringFlag{Name: "password", Usage: "Superuser password (default $SUPERUSER_PASSWORD)"},
	}
}
