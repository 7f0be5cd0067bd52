package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/reportoor/pkg/inspect"
	"github.com/ethpandaops/reportoor/pkg/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect materialized reporting state",
}

var inspectLaunchCmd = &cobra.Command{
	Use:   "launch <id>",
	Short: "Print a launch and its test item tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspectLaunch,
}

func init() {
	inspectCmd.AddCommand(inspectLaunchCmd)
	rootCmd.AddCommand(inspectCmd)
}

func runInspectLaunch(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid launch id %q: %w", args[0], err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	s := store.NewStore(log, &cfg.Database)
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() { _ = s.Stop() }()

	launch, err := s.GetLaunch(ctx, id)
	if err != nil {
		return fmt.Errorf("loading launch %d: %w", id, err)
	}

	items, err := s.ListItems(ctx, id)
	if err != nil {
		return fmt.Errorf("loading items of launch %d: %w", id, err)
	}

	fmt.Fprint(cmd.OutOrStdout(), inspect.FormatLaunch(launch, items))

	return nil
}
