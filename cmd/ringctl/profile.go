package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/ringcore/internal/config"
	"github.com/matheus3301/ringcore/internal/lock"
	"github.com/matheus3301/ringcore/internal/session"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the selected profile and whether a host holds it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Profile: %s\n", profileFlag)
		fmt.Printf("Dir:     %s\n", session.Dir(profileFlag))
		h, err := lock.Inspect(session.Dir(profileFlag))
		switch {
		case os.IsNotExist(err):
			fmt.Println("Host:    not running")
		case err != nil:
			return err
		case h.Since.IsZero():
			fmt.Printf("Host:    PID %d\n", h.PID)
		default:
			fmt.Printf("Host:    PID %d, up %s\n", h.PID, time.Since(h.Since).Round(time.Second))
		}
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a profile the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.ValidateName(args[0]); err != nil {
			return err
		}
		cfg, err := config.LoadOrDefault(session.ConfigPath())
		if err != nil {
			return err
		}
		cfg.DefaultProfile = args[0]
		if err := config.Save(session.ConfigPath(), cfg); err != nil {
			return err
		}
		fmt.Printf("default profile is now %q\n", args[0])
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileUseCmd)
	rootCmd.AddCommand(profileCmd)
}
