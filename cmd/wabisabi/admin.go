package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

var (
	prisonCommand = cli.Command{
		Name:  "prison",
		Usage: "Shows the coins banned by the coordinator",
		Action: func(ctx *cli.Context) error {
			return adminGet(ctx, "/v1/prison")
		},
	}
	whitelistCommand = cli.Command{
		Name:  "whitelist",
		Usage: "Shows the coins the coordinator trusts without checking them",
		Action: func(ctx *cli.Context) error {
			return adminGet(ctx, "/v1/whitelist")
		},
	}
)

func adminGet(ctx *cli.Context, path string) error {
	url := strings.TrimSuffix(ctx.String(adminUrlFlag.Name), "/") + path
	client := &http.Client{Timeout: 15 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	// nolint:all
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("invalid response from %s: %s", url, err)
	}
	return printJSON(data)
}
