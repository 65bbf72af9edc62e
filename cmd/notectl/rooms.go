package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/collabnote/internal/room"
)

func newRoomsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List and create rooms",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List owned and shared rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			listing, err := opts.client().ListRooms(ctx)
			if err != nil {
				return err
			}
			printRooms(cmd.OutOrStdout(), "owned", listing.Owned)
			printRooms(cmd.OutOrStdout(), "shared", listing.Shared)
			return nil
		},
	})

	var description string
	var members []string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a room owned by the token's user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			rm, err := opts.client().CreateRoom(ctx, args[0], description, members)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (admins: %s, members: %s)\n",
				rm.ID, strings.Join(rm.Admins, ","), strings.Join(rm.Members, ","))
			return nil
		},
	}
	create.Flags().StringVar(&description, "description", "", "room description")
	create.Flags().StringSliceVar(&members, "member", nil, "member email, repeatable")
	cmd.AddCommand(create)
	return cmd
}

func printRooms(w io.Writer, title string, rooms []room.Room) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(rooms))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range rooms {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.ID, r.Name, r.CreatedAt.Format("2006-01-02"))
	}
	_ = tw.Flush()
}
