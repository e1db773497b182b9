package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		name   string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			id := auth.Identity{Email: email, Name: name, Role: domain.Role(strings.ToUpper(role))}
			switch id.Role {
			case domain.RoleCustomer, domain.RoleOrganizer, domain.RoleAdmin:
			default:
				return errors.Newf("unknown role %q", role)
			}
			if userID == "" {
				id.ID = uuid.New()
			} else if id.ID, err = uuid.Parse(userID); err != nil {
				return errors.Wrap(err, "user id")
			}

			token, err := auth.NewTokens(cfg.JWTSecret).Issue(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (random when empty)")
	cmd.Flags().StringVar(&email, "email", "dev@eventhub.local", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "name claim")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCustomer), "CUSTOMER, ORGANIZER or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
