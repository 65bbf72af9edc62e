package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/panel"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var roomID, kindName, docFile string
	cmd := &cobra.Command{
		Use:   "ask [input]",
		Short: "Send an AI request to a room and print the conversation",
		Long: "ask opens the room event stream, submits the request and prints the " +
			"conversation once an answer arrives from either the direct response or the broadcast.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := ai.ParseKind(kindName)
			if err != nil {
				return err
			}
			input := strings.Join(args, " ")
			if kind == ai.KindSummarize && input == "" {
				input = "summarize"
			}

			doc, err := readDocument(docFile)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			c := opts.client()
			events, err := c.Events(ctx, roomID)
			if err != nil {
				// the direct response still settles the panel
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			p := panel.New(kind, func(ctx context.Context, requestID, input string) (string, error) {
				res, err := c.Dispatch(ctx, roomID, requestID, kind, input, doc)
				if err != nil {
					return "", err
				}
				return res.Result, nil
			})
			defer p.Close()
			go p.Run(ctx, events)

			if !p.Submit(ctx, input) {
				return errors.New("input is required")
			}
			if err := p.WaitSettled(ctx); err != nil {
				return fmt.Errorf("no answer: %w", err)
			}

			for _, m := range p.Messages() {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n\n", m.Sender, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "room id")
	cmd.Flags().StringVar(&kindName, "kind", "chat", "generate, chat, summarize or translate")
	cmd.Flags().StringVar(&docFile, "doc", "", "document file; JSON files are sent as is, anything else as text")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func readDocument(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".json") && json.Valid(raw) {
		return raw, nil
	}
	return ai.TextDocument(string(raw)), nil
}
