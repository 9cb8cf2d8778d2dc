package catalog

import (
	"context"
	"os"

	"github.com/travigo/transitlive/pkg/database"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Manage the route & stop catalog",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "import a YAML catalog into MongoDB",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						return cli.Exit("catalog import requires the path to a YAML catalog", 1)
					}

					fileBytes, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					catalog, err := Parse(fileBytes)
					if err != nil {
						return err
					}

					if err := database.Connect(); err != nil {
						return err
					}
					defer database.Disconnect()

					return NewMongoReader().Import(context.Background(), catalog)
				},
			},
		},
	}
}
