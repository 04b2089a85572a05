package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/tui/client"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show host status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			return c.Account(ctx, "GetStatus", nil)
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintf(w, "Profile:\t%s\n", client.String(resp, "profile"))
			fmt.Fprintf(w, "Status:\t%s\n", client.String(resp, "status"))
			fmt.Fprintf(w, "Uptime:\t%s\n", (time.Duration(client.Int(resp, "uptime_ms")) * time.Millisecond).Round(time.Second))
			fmt.Fprintf(w, "Accounts:\t%d\n", client.Int(resp, "accounts"))
			fmt.Fprintf(w, "Unread:\t%d\n", client.Int(resp, "unread"))
		})
		return nil
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List loaded accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			return c.Account(ctx, "ListAccounts", nil)
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "ID\tURI\tREGISTRATION\tCONVERSATIONS\tUNREAD\tPENDING")
			for _, a := range client.List(resp, "accounts") {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
					client.String(a, "id"), client.String(a, "uri"), client.String(a, "registration"),
					client.Int(a, "conversations"), client.Int(a, "unread"), client.Int(a, "pending"))
			}
		})
		return nil
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List the account's contacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			acc, err := account(ctx, c)
			if err != nil {
				return nil, err
			}
			return c.Account(ctx, "ListContacts", client.Args{"account": acc})
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "URI\tNAME\tSTATUS\tONLINE")
			for _, ct := range client.List(resp, "contacts") {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n",
					client.String(ct, "uri"), client.String(ct, "name"),
					client.String(ct, "status"), client.Bool(ct, "online"))
			}
		})
		return nil
	},
}

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Add or remove contacts",
}

var contactAddCmd = &cobra.Command{
	Use:   "add <uri>",
	Short: "Send a trust request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return accountAction("AddContact", client.Args{"uri": args[0]})
	},
}

var banFlag bool

var contactRemoveCmd = &cobra.Command{
	Use:   "remove <uri>",
	Short: "Remove a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return accountAction("RemoveContact", client.Args{"uri": args[0], "ban": banFlag})
	},
}

var requestsCmd = &cobra.Command{
	Use:     "requests",
	Aliases: []string{"reqs"},
	Short:   "List pending trust requests",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			acc, err := account(ctx, c)
			if err != nil {
				return nil, err
			}
			return c.Account(ctx, "ListRequests", client.Args{"account": acc})
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "FROM\tNAME\tCONVERSATION\tRECEIVED")
			for _, r := range client.List(resp, "requests") {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					client.String(r, "from"), client.String(r, "name"),
					client.String(r, "conversation"), millis(client.Int(r, "received")))
			}
		})
		return nil
	},
}

var requestAcceptCmd = &cobra.Command{
	Use:   "accept <uri>",
	Short: "Accept a trust request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return accountAction("AcceptRequest", client.Args{"from": args[0]})
	},
}

var requestDiscardCmd = &cobra.Command{
	Use:   "discard <uri>",
	Short: "Discard a trust request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return accountAction("DiscardRequest", client.Args{"from": args[0]})
	},
}

// accountAction runs an AccountService command for the selected account.
func accountAction(method string, args client.Args) error {
	_, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
		acc, err := account(ctx, c)
		if err != nil {
			return nil, err
		}
		args["account"] = acc
		return c.Account(ctx, method, args)
	})
	if err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func init() {
	contactRemoveCmd.Flags().BoolVar(&banFlag, "ban", false, "also ban the contact")
	contactCmd.AddCommand(contactAddCmd, contactRemoveCmd)
	requestsCmd.AddCommand(requestAcceptCmd, requestDiscardCmd)

	rootCmd.AddCommand(statusCmd, accountsCmd, contactsCmd, contactCmd, requestsCmd)
}
