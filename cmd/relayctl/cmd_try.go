package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onnwee/rolemaster-relay/dispatch"
	"github.com/onnwee/rolemaster-relay/engine"
	"github.com/onnwee/rolemaster-relay/relay"
	"github.com/onnwee/rolemaster-relay/server"
	"github.com/onnwee/rolemaster-relay/userlists"
)

// echoDispatcher validates like the real dispatcher but never runs anything.
type echoDispatcher struct{ out func(string) }

func (e echoDispatcher) Dispatch(_ context.Context, devType, text string) (dispatch.Result, error) {
	clean, err := dispatch.Sanitize(text)
	if err != nil {
		return dispatch.Result{}, err
	}
	res := dispatch.Result{DevType: devType, Text: clean}
	if devType == "encounter" {
		npc, err := dispatch.ResolveNPC(clean)
		if err != nil {
			return dispatch.Result{}, err
		}
		res.NPC = npc
	}
	line := fmt.Sprintf("(dry run) would dispatch %s %q", res.DevType, res.Text)
	if res.NPC != "" {
		line += " npc=" + res.NPC
	}
	e.out(line)
	return res, nil
}

func newTryCmd() *cobra.Command {
	var (
		user   string
		mod    bool
		sub    bool
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "try <message...>",
		Short: "Run a chat line through the command pipeline",
		Long: `Run a chat line through a locally wired engine and print what the relay would
say in chat. By default the line is handled as the local tester, a moderator and
subscriber, and accepted commands really run the executor. Use --dry-run to stop
short of the executor and encounter service.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			lists := userlists.NewCache(cfg.ListsFile(), cfg.FlagFile())
			if err := lists.Reload(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: user lists not loaded: %v\n", err)
			}
			out := func(s string) { fmt.Fprintln(cmd.OutOrStdout(), s) }
			var d engine.Dispatcher
			if dryRun {
				d = echoDispatcher{out: out}
			}
			eng, _ := relay.Engine(cfg, lists, d, nil)

			msg := engine.Message{User: user, Text: strings.Join(args, " "), IsMod: mod, IsSub: sub}
			outcome := eng.Handle(cmd.Context(), msg, engine.ReplierFunc(func(s string) error {
				out("> " + s)
				return nil
			}))
			out("outcome: " + outcome.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", server.LocalTestUser, "Chat login to act as")
	cmd.Flags().BoolVar(&mod, "mod", true, "Treat the user as a moderator")
	cmd.Flags().BoolVar(&sub, "sub", true, "Treat the user as a subscriber")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate accepted commands without running the executor")
	return cmd
}
