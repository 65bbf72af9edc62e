package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/collabnote/internal/client"
)

type rootOptions struct {
	server  string
	token   string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "notectl",
		Short:         "Command line client for collabnote rooms and AI requests",
		SilenceUsage:  true,
	}

	server := os.Getenv("NOTECTL_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", server, "api base url (env NOTECTL_SERVER)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("NOTECTL_TOKEN"), "bearer token (env NOTECTL_TOKEN)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "overall timeout")

	cmd.AddCommand(newRoomsCmd(opts), newAskCmd(opts))
	return cmd
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.server, o.token, o.timeout)
}
