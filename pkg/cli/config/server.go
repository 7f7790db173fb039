package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Server holds server configuration
type Server struct {
	Addr            string
	RefreshInterval time.Duration
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("DLCOUNT_ADDR"),
		},
		&cli.DurationFlag{
			Name:        "refresh-interval",
			Usage:       "Interval between download count refreshes",
			Value:       time.Hour,
			Destination: &c.RefreshInterval,
			Sources:     cli.EnvVars("DLCOUNT_REFRESH_INTERVAL"),
		},
	}
}
