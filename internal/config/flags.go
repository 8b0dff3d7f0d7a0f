package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/cardkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-t string   tracking URI (SQL DSN or http(s):// server URL)
//	-s string   storage URI (gs://, s3://, az://, or local path)
//	-a string   HTTP bind address (e.g., ":8080")
//	-e string   encryption master secret
//	-u string   username for the login exchange
//	-p string   password for the login exchange
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-t", "-s", "-a", "-e", "-u", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.TrackingURI, "t", config.TrackingURI, "tracking URI")
	fs.StringVar(&config.StorageURI, "s", config.StorageURI, "storage URI")
	fs.StringVar(&config.ServerAddr, "a", config.ServerAddr, "address and port to run server")
	fs.StringVar(&config.EncryptSecret, "e", config.EncryptSecret, "encryption master secret")
	fs.StringVar(&config.Username, "u", config.Username, "username")
	fs.StringVar(&config.Password, "p", config.Password, "password")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
