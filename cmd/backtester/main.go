package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configFile = flag.String("config", "config.ini", "Path to the ini configuration file")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&runCmd{}, "backtest")
	commander.Register(&statsCmd{}, "data")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
