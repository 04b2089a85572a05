// Command ringctl is a scriptable client for a running ringcored.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/session"
	"github.com/matheus3301/ringcore/internal/tui/client"
)

const rpcTimeout = 10 * time.Second

var (
	profileFlag string
	jsonFlag    bool
	accountFlag string
)

var rootCmd = &cobra.Command{
	Use:           "ringctl",
	Short:         "Inspect and drive a running ringcored",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		profileFlag = session.Resolve(profileFlag)
		return session.ValidateName(profileFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&accountFlag, "account", "a", "", "account id (defaults to the first account)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// connect dials the profile's host. The returned context bounds one RPC.
func connect() (*client.Client, context.Context, context.CancelFunc, error) {
	c, err := client.New(session.SocketPath(profileFlag))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cannot connect to ringcored for profile %q: %w", profileFlag, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	return c, ctx, func() {
		cancel()
		_ = c.Close()
	}, nil
}

// rpc runs one call against the host.
func rpc(fn func(ctx context.Context, c *client.Client) (*structpb.Struct, error)) (*structpb.Struct, error) {
	c, ctx, done, err := connect()
	if err != nil {
		return nil, err
	}
	defer done()
	return fn(ctx, c)
}

// account returns the --account flag or the host's first account.
func account(ctx context.Context, c *client.Client) (string, error) {
	if accountFlag != "" {
		return accountFlag, nil
	}
	resp, err := c.Account(ctx, "ListAccounts", nil)
	if err != nil {
		return "", err
	}
	accounts := client.List(resp, "accounts")
	if len(accounts) == 0 {
		return "", fmt.Errorf("no accounts loaded")
	}
	return client.String(accounts[0], "id"), nil
}

// show writes resp as JSON when --json is set, otherwise through human.
func show(resp *structpb.Struct, human func(w *tabwriter.Writer)) {
	if jsonFlag || human == nil {
		outputJSON(resp)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	human(w)
	_ = w.Flush()
}

func outputJSON(resp *structpb.Struct) {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
		return
	}
	fmt.Println(string(b))
}

func millis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
