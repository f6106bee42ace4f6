package main

import "flag"

var (
	flagGops                     bool
	flagConfigFile, flagLogLevel string
	flagLogDateTime              bool
)

func cliInit() {
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to `config.json`")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Sets the logging level: `[debug, info, warn, err]`")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Add date and time to log messages")
	flag.Parse()
}
