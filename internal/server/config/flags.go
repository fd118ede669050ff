package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
)

// parseFlags overlays selected fields from command-line flags.
//
//	-a string    HTTP bind address (e.g. ":8080")
//	-r string    gRPC health bind address
//	-d string    PostgreSQL DSN
//	-k string    upload token (shared secret)
//	-l string    log level
//	-b string    storage backend: onedrive | s3
//	-p string    storage path
//	-x duration  session max age
//	-L size      direct upload limit (e.g. "4MiB")
//	-m int       default chunk multiplier
//	-sniff=bool  decode base64-wrapped small uploads (use the = form)
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-r", "-d", "-k", "-l", "-b", "-p", "-x", "-L", "-m", "-sniff"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "r", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.UploadToken, "k", config.UploadToken, "upload token")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.Backend, "b", config.Backend, "storage backend (onedrive|s3)")
	fs.StringVar(&config.StoragePath, "p", config.StoragePath, "storage path")
	fs.DurationVar(&config.SessionMaxAge, "x", config.SessionMaxAge, "upload session max age")
	limit := flagx.ByteSize(config.DirectUploadLimit)
	fs.Var(&limit, "L", "direct upload limit")
	fs.IntVar(&config.DefaultChunkMultiplier, "m", config.DefaultChunkMultiplier, "default chunk multiplier")
	fs.BoolVar(&config.SniffBase64, "sniff", config.SniffBase64, "decode base64-wrapped small uploads")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.DirectUploadLimit = int64(limit)
}
