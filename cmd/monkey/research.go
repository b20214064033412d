package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/research"
)

func researchCMD() *cobra.Command {
	var cfgPath string
	var quiet bool
	var cmd = &cobra.Command{
		Use:   "research [topic]",
		Short: "Run one research loop and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			graph, err := buildGraph(cfg)
			if err != nil {
				return err
			}

			topic := strings.Join(args, " ")
			ctx := context.Background()

			var events chan research.Event
			progressDone := make(chan struct{})
			if !quiet {
				events = make(chan research.Event, 16)
				go func() {
					defer close(progressDone)
					for ev := range events {
						fmt.Fprintf(os.Stderr, "-> %s\n", ev.Description)
					}
				}()
			} else {
				close(progressDone)
			}

			res, err := graph.RunStream(ctx, topic, events)
			<-progressDone
			if err != nil {
				return err
			}

			fmt.Println(res.Report)
			if !quiet {
				usage, total := graph.Usage()
				for model, u := range usage {
					fmt.Fprintf(os.Stderr, "tokens[%s]: prompt=%d completion=%d calls=%d\n",
						model, u.PromptTokens, u.CompletionTokens, u.Calls)
				}
				if total > 0 {
					fmt.Fprintf(os.Stderr, "tokens total: %d\n", total)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
