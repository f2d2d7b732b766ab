package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onnwee/rolemaster-relay/userlists"
)

func newListsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Show or edit the whitelist and blacklist",
		Long: `Show or edit user_lists.json in TBOT_DATA_DIR. Every write touches the flag file
so a running relay reloads within a few seconds.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print both lists",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				lists, err := userlists.ReadLists(cfg.ListsFile())
				if err != nil {
					return err
				}
				printLists(cmd, lists)
				return nil
			},
		},
		&cobra.Command{
			Use:   "blacklist <user>",
			Short: "Add one user to the blacklist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				added, err := userlists.Store{ListsFile: cfg.ListsFile(), FlagFile: cfg.FlagFile()}.AddToBlacklist(args[0])
				if err != nil {
					return err
				}
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already blacklisted\n", strings.ToLower(args[0]))
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s to the blacklist\n", strings.ToLower(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <whitelist|blacklist> [users...]",
			Short:     "Replace one list",
			Long:      "Replace one list. Invalid logins are dropped; no users empties the list.",
			Args:      cobra.MinimumNArgs(1),
			ValidArgs: []string{"whitelist", "blacklist"},
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				lists, err := userlists.Store{ListsFile: cfg.ListsFile(), FlagFile: cfg.FlagFile()}.SetList(args[0], args[1:])
				if err != nil {
					return err
				}
				printLists(cmd, lists)
				return nil
			},
		},
	)
	return cmd
}

func printLists(cmd *cobra.Command, l userlists.Lists) {
	fmt.Fprintf(cmd.OutOrStdout(), "whitelist (%d): %s\n", len(l.Whitelist), strings.Join(l.Whitelist, ", "))
	fmt.Fprintf(cmd.OutOrStdout(), "blacklist (%d): %s\n", len(l.Blacklist), strings.Join(l.Blacklist, ", "))
}
