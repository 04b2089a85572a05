package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/tui/client"
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "List live calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			return c.Calls(ctx, "ListCalls", client.Args{"account": accountFlag})
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "ID\tPEER\tDIRECTION\tSTATE\tCONFERENCE\tSTARTED")
			for _, cl := range client.List(resp, "calls") {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					client.String(cl, "id"), client.String(cl, "peer"), client.String(cl, "direction"),
					client.String(cl, "state"), client.String(cl, "conference"), millis(client.Int(cl, "started")))
			}
		})
		return nil
	},
}

var conferencesCmd = &cobra.Command{
	Use:     "conferences",
	Aliases: []string{"confs"},
	Short:   "List live conferences",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			return c.Calls(ctx, "ListConferences", nil)
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "ID\tSTATE\tCALLS\tPARTICIPANTS")
			for _, cf := range client.List(resp, "conferences") {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n",
					client.String(cf, "id"), client.String(cf, "state"),
					len(client.List(cf, "calls")), len(client.List(cf, "participants")))
			}
		})
		return nil
	},
}

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Place and control calls",
}

var callPlaceCmd = &cobra.Command{
	Use:   "place <uri>",
	Short: "Call a peer or swarm URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			acc, err := account(ctx, c)
			if err != nil {
				return nil, err
			}
			return c.Calls(ctx, "PlaceCall", client.Args{"account": acc, "uri": args[0]})
		})
		if err != nil {
			return err
		}
		show(resp, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, client.String(resp, "call_id"))
		})
		return nil
	},
}

// callVerb builds a subcommand forwarding one call id to method.
func callVerb(use, short, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <call>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAction(method, client.Args{"call": args[0]})
		},
	}
}

var unmuteFlag bool

var callMuteCmd = &cobra.Command{
	Use:   "mute <call> <audio|video>",
	Short: "Mute or unmute a media stream",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAction("Mute", client.Args{"call": args[0], "media": args[1], "mute": !unmuteFlag})
	},
}

var callAddCmd = &cobra.Command{
	Use:   "add <call> <conference>",
	Short: "Add a call to a conference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAction("AddParticipant", client.Args{"call": args[0], "conference": args[1]})
	},
}

var callJoinCmd = &cobra.Command{
	Use:   "join <conference> <other>",
	Short: "Merge two conferences",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAction("JoinConference", client.Args{"conference": args[0], "other": args[1]})
	},
}

func callAction(method string, args client.Args) error {
	_, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
		return c.Calls(ctx, method, args)
	})
	if err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func init() {
	callMuteCmd.Flags().BoolVar(&unmuteFlag, "off", false, "unmute instead")
	callCmd.AddCommand(
		callPlaceCmd,
		callVerb("accept", "Answer an incoming call", "Accept"),
		callVerb("refuse", "Refuse an incoming call", "Refuse"),
		callVerb("hold", "Put a call on hold", "Hold"),
		callVerb("unhold", "Resume a held call", "Unhold"),
		callVerb("hangup", "End a call", "HangUp"),
		callVerb("detach", "Detach a call from its conference", "Detach"),
		callMuteCmd,
		callAddCmd,
		callJoinCmd,
	)
	rootCmd.AddCommand(callsCmd, conferencesCmd, callCmd)
}
