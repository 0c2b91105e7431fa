// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/mstarongithub/way2kms/config"
)

var (
	configPath *string = flag.String(
		"config",
		"",
		"Path to the config file. Default is the xdg config location",
	)
	toolMode *bool = flag.Bool(
		"tool",
		false,
		"Start as a tool instead of a display server",
	)
	help *bool = flag.Bool(
		"help",
		false,
		"Show the help message",
	)
	verbose *bool = flag.Bool(
		"verbose",
		false,
		"Enable debug logging",
	)
)

func main() {
	flag.Parse()
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	conf, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatalln("Failed to load config")
	}

	if *toolMode {
		utilMain(conf)
		return
	}
	kmsMain(conf)
}
