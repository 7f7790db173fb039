package config

import "github.com/urfave/cli/v3"

// Output holds the result file configuration
type Output struct {
	Path string
}

// Flags returns CLI flags for output configuration
func (c *Output) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Path of the downloads count JSON file",
			Value:       "downloads_count.json",
			Destination: &c.Path,
			Sources:     cli.EnvVars("DLCOUNT_OUTPUT"),
		},
	}
}
