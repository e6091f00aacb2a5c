package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-l int      lease TTL, minutes
//	-L string   lease backend (postgres|redis)
//	-R string   redis address
//	-D string   draft backend (postgres|firestore)
//	-F string   firestore project id
//	-A bool     archive overwritten drafts to S3
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w string   lease sweep cron schedule
//
// Duration flags are accepted as integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-m", "-d", "-s", "-t", "-l", "-L", "-R", "-D", "-F", "-A",
		"-u", "-p", "-b", "-g", "-e", "-w",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port for metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	leaseTTL := fs.Int("l", int(config.LeaseTTL.Minutes()), "lease ttl (in minutes)")

	fs.StringVar(&config.LeaseBackend, "L", config.LeaseBackend, "lease backend (postgres|redis)")
	fs.StringVar(&config.RedisAddr, "R", config.RedisAddr, "redis address")
	fs.StringVar(&config.DraftBackend, "D", config.DraftBackend, "draft backend (postgres|firestore)")
	fs.StringVar(&config.FirestoreProject, "F", config.FirestoreProject, "firestore project id")
	fs.BoolVar(&config.ArchiveEnabled, "A", config.ArchiveEnabled, "archive overwritten drafts to S3")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.SweepSchedule, "w", config.SweepSchedule, "lease sweep cron schedule")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.LeaseTTL = time.Duration(*leaseTTL) * time.Minute
}
