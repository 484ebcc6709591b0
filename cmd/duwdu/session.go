package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weiawesome/duwdu-messenger/internal/session"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := session.New(ctx, cfg.Session)
		if err != nil {
			return err
		}
		defer store.Close()

		s, err := store.Restore(ctx)
		if err != nil {
			return err
		}
		if s == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (@%s, id %d)\n", s.DisplayName, s.Username, s.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := session.New(ctx, cfg.Session)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}
