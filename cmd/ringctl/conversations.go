package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/session"
	"github.com/matheus3301/ringcore/internal/tui/client"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"convs"},
	Short:   "List the account's conversations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			acc, err := account(ctx, c)
			if err != nil {
				return nil, err
			}
			return c.Conversation(ctx, "ListConversations", client.Args{"account": acc})
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "KEY\tTITLE\tMODE\tUNREAD\tLAST")
			for _, cv := range client.List(resp, "conversations") {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					client.String(cv, "key"), client.String(cv, "title"), client.String(cv, "mode"),
					client.Int(cv, "unread"), millis(client.Int(cv, "last_event")))
			}
		})
		return nil
	},
}

var (
	limitFlag  int
	beforeFlag string
)

var interactionsCmd = &cobra.Command{
	Use:   "interactions <conversation>",
	Short: "Show a page of a conversation's history, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			acc, err := account(ctx, c)
			if err != nil {
				return nil, err
			}
			req := client.Args{"account": acc, "conversation": args[0], "limit": limitFlag}
			if beforeFlag != "" {
				req["before"] = beforeFlag
			}
			return c.Conversation(ctx, "ListInteractions", req)
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			for _, it := range client.List(resp, "interactions") {
				author := client.String(it, "author")
				if author == "" {
					author = "me"
				}
				text := client.String(it, "body")
				if text == "" {
					text = "<" + client.String(it, "kind") + ">"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					millis(client.Int(it, "timestamp")), author, client.String(it, "status"), text)
			}
			if client.Bool(resp, "has_more") {
				fmt.Fprintln(w, "...\tolder history available")
			}
		})
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation> <text>",
	Short: "Send a text message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := conversationAction("SendText", client.Args{"conversation": args[0], "text": args[1]})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintf(w, "queued\t%s\n", client.String(resp, "client_msg_id"))
		})
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <conversation>",
	Short: "Mark a conversation read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := conversationAction("MarkRead", client.Args{"conversation": args[0]})
		if err == nil {
			fmt.Println("ok")
		}
		return err
	},
}

var waitFlag bool

var moreCmd = &cobra.Command{
	Use:   "more <conversation>",
	Short: "Request older history of a swarm from the daemon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := conversationAction("LoadMore", client.Args{"conversation": args[0], "wait": waitFlag})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintf(w, "backfill\t%s\tdone=%v\n", client.String(resp, "conversation"), client.Bool(resp, "done"))
		})
		return nil
	},
}

var allAccountsFlag bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over stored history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			req := client.Args{"query": args[0], "limit": limitFlag}
			if !allAccountsFlag {
				acc, err := account(ctx, c)
				if err != nil {
					return nil, err
				}
				req["account"] = acc
			}
			return c.Conversation(ctx, "Search", req)
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			for _, r := range client.List(resp, "results") {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					millis(client.Int(r, "timestamp")), client.String(r, "conversation"), client.String(r, "snippet"))
			}
		})
		return nil
	},
}

var namespaceFlag string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream host events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(session.SocketPath(profileFlag))
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		w, err := c.Watch(ctx, namespaceFlag, accountFlag)
		if err != nil {
			return err
		}
		for {
			ev, err := w.Recv()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if jsonFlag {
				outputJSON(ev)
				continue
			}
			fmt.Printf("%s %s %s\n", millis(client.Int(ev, "occurred_at")), client.String(ev, "kind"), client.String(ev, "key"))
		}
	},
}

// conversationAction runs a ConversationService command for the selected
// account.
func conversationAction(method string, args client.Args) (*structpb.Struct, error) {
	return rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
		acc, err := account(ctx, c)
		if err != nil {
			return nil, err
		}
		args["account"] = acc
		return c.Conversation(ctx, method, args)
	})
}

func init() {
	interactionsCmd.Flags().IntVarP(&limitFlag, "limit", "n", 50, "page size")
	interactionsCmd.Flags().StringVar(&beforeFlag, "before", "", "interaction id to page back from")
	moreCmd.Flags().BoolVar(&waitFlag, "wait", false, "block until the page has been loaded")
	searchCmd.Flags().IntVarP(&limitFlag, "limit", "n", 50, "maximum results")
	searchCmd.Flags().BoolVar(&allAccountsFlag, "all", false, "search every account")
	watchCmd.Flags().StringVar(&namespaceFlag, "namespace", "", "event namespace prefix, e.g. call or conversation")

	rootCmd.AddCommand(conversationsCmd, interactionsCmd, sendCmd, readCmd, moreCmd, searchCmd, watchCmd)
}
