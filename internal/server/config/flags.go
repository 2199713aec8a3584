package config

import (
	"flag"
	"os"
	"time"

	"github.com/taskkeeper/taskkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      session validity, hours
//	-m int      max active sessions per user
//	-w int      sweep interval, minutes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration flags
// are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-r", "-m", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	sessionValidity := fs.Int("r", int(config.SessionValidityDuration.Hours()), "session_validity_duration (in hours)")
	sweepInterval := fs.Int("w", int(config.SweepInterval.Minutes()), "sweep_interval (in minutes)")

	fs.IntVar(&config.MaxActiveSessions, "m", config.MaxActiveSessions, "max active sessions per user")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Hour
	config.SweepInterval = time.Duration(*sweepInterval) * time.Minute
}
