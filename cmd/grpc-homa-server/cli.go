package main

import "flag"

// Options holds CLI options for the server.
type Options struct {
	ConfigPath string
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("grpc-homa-server", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	_ = fs.Parse(args)
	return opts
}
