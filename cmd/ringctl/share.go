package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/tui/client"
	"github.com/matheus3301/ringcore/internal/tui/views"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Print the account URI as a QR code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := rpc(func(ctx context.Context, c *client.Client) (*structpb.Struct, error) {
			return c.Account(ctx, "ListAccounts", nil)
		})
		if err != nil {
			return err
		}
		for _, a := range client.List(resp, "accounts") {
			if accountFlag != "" && client.String(a, "id") != accountFlag {
				continue
			}
			uri := client.String(a, "uri")
			if jsonFlag {
				outputJSON(a)
				return nil
			}
			fmt.Print(views.RenderQR(uri))
			fmt.Println(uri)
			return nil
		}
		return fmt.Errorf("no matching account")
	},
}

func init() {
	rootCmd.AddCommand(shareCmd)
}
