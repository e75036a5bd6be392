package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/rami3l/golua/cmd"
)

func main() {
	if err := cmd.App().Execute(); err != nil {
		logrus.Fatal(err)
		os.Exit(1)
	}
}
