package main

import (
	"os"

	"github.com/GreatValueCreamSoda/gossim/cli/options"
	"github.com/spf13/pflag"
)

var settings options.Settings

func init() {
	pflag.CommandLine.SortFlags = false
	options.Register(pflag.CommandLine, &settings)
	printHelp := pflag.BoolP("help", "h", false, "Show this help message")

	pflag.Parse()

	if *printHelp {
		options.PrintUsage(os.Stderr, pflag.CommandLine)
		os.Exit(0)
	}

	if err := settings.Validate(); err != nil {
		options.PrintError(os.Stderr, pflag.CommandLine, err)
		os.Exit(2)
	}
}
