package main

import (
	"fmt"

	"github.com/robertarktes/eventhub/internal/notify"
	"github.com/spf13/cobra"
)

func newVerifyTicketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-ticket <qr-payload>",
		Short: "Check the signature of a scanned ticket QR payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := notify.NewTicketSigner(cfg.TicketSigningKey).Verify([]byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid ticket %s (transaction %s, event %s)\n", p.TicketID, p.TransactionID, p.EventID)
			return nil
		},
	}
}
