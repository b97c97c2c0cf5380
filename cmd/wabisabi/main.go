package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cntx = context.Background()

var (
	coordinatorUrlFlag = &cli.StringFlag{
		Name:    "coordinator-url",
		Usage:   "the url of the coordinator grpc api",
		Value:   "localhost:7080",
		EnvVars: []string{"WABISABI_COORDINATOR_URL"},
	}
	adminUrlFlag = &cli.StringFlag{
		Name:    "admin-url",
		Usage:   "the url of the coordinator admin api",
		Value:   "http://localhost:7081",
		EnvVars: []string{"WABISABI_ADMIN_URL"},
	}
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s (%s, %s)", version, commit, date)
	app.Name = "wabisabi"
	app.Usage = "wabisabi coinjoin client command line interface"
	app.Commands = append(
		app.Commands,
		&statusCommand,
		&joinCommand,
		&prisonCommand,
		&whitelistCommand,
	)
	app.Flags = []cli.Flag{
		coordinatorUrlFlag,
		adminUrlFlag,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
