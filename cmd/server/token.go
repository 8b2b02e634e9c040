package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/config"
	"github.com/spf13/cobra"
)

var tokenFlags struct {
	role    string
	subject string
	group   string
}

// tokenCmd mints tokens for the operator roles. Participants get theirs
// through verify and login.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin, groupAdmin or provider token",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject := uuid.New()
		if tokenFlags.subject != "" {
			id, err := uuid.Parse(tokenFlags.subject)
			if err != nil {
				return fmt.Errorf("parse subject: %w", err)
			}
			subject = id
		}
		var group uuid.UUID
		if tokenFlags.group != "" {
			id, err := uuid.Parse(tokenFlags.group)
			if err != nil {
				return fmt.Errorf("parse group: %w", err)
			}
			group = id
		}
		role := auth.Role(tokenFlags.role)
		if role != auth.RoleAdmin && group == uuid.Nil {
			return fmt.Errorf("--group is required for role %s", role)
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()
		if cfg.Store == config.StoreMemory {
			return fmt.Errorf("token needs a persistent store, sessions in %s store die with this process", cfg.Store)
		}

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		tok, err := a.svc.IssueOperatorToken(cmd.Context(), subject, group, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenFlags.role, "role", string(auth.RoleGroupAdmin), "admin, groupAdmin or provider")
	tokenCmd.Flags().StringVar(&tokenFlags.subject, "subject", "", "subject id (random when empty)")
	tokenCmd.Flags().StringVar(&tokenFlags.group, "group", "", "group id")
}
