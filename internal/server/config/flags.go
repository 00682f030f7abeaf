package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/rapidphotos/internal/flagx"
)

var serverFlags = []string{
	"-a", "-grpc", "-d", "-s", "-t", "-u", "-p", "-b", "-g", "-e", "-l",
	"-put-ttl", "-get-ttl", "-max-users", "-max-photos", "-max-total-bytes", "-max-file-bytes", "-cors",
}

// parseFlags populates Config fields from command-line flags.
//
//	-a string          HTTP bind address (e.g. ":8080")
//	-grpc string       gRPC bind address (e.g. ":50051")
//	-d string          PostgreSQL DSN
//	-s string          JWT HMAC secret key
//	-t int             access token validity, minutes
//	-u / -p string     S3 root user / password
//	-b / -g / -e       S3 bucket / region / base endpoint
//	-l string          log level
//	-put-ttl int       presigned PUT validity, minutes
//	-get-ttl int       presigned GET validity, minutes
//	-max-*             global limits
//	-cors string       comma separated allowed origins
//
// Only the flags listed above are read from os.Args, see flagx.FilterArgs.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	tokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	putTTL := fs.Int("put-ttl", int(config.PresignPutTTL.Minutes()), "presigned upload URL validity (in minutes)")
	getTTL := fs.Int("get-ttl", int(config.PresignGetTTL.Minutes()), "presigned download URL validity (in minutes)")

	fs.Int64Var(&config.MaxUsers, "max-users", config.MaxUsers, "maximum number of users")
	fs.Int64Var(&config.MaxPhotos, "max-photos", config.MaxPhotos, "maximum number of photos")
	fs.Int64Var(&config.MaxTotalBytes, "max-total-bytes", config.MaxTotalBytes, "maximum aggregate storage, bytes")
	fs.Int64Var(&config.MaxFileBytes, "max-file-bytes", config.MaxFileBytes, "maximum single file size, bytes")

	cors := fs.String("cors", strings.Join(config.CORSAllowedOrigins, ","), "allowed CORS origins, comma separated")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.PresignPutTTL = time.Duration(*putTTL) * time.Minute
	config.PresignGetTTL = time.Duration(*getTTL) * time.Minute
	config.CORSAllowedOrigins = splitList(*cors)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
