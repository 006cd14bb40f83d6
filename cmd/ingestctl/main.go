package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ingest-svc/app"
	"ingest-svc/app/services"
	"ingest-svc/storage/postgres"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func execute() error {
	rootCmd := &cobra.Command{
		Use:   "ingestctl",
		Short: "Operator tooling for the ingestion API (keys, tokens, maintenance)",
	}

	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(agentsCmd())

	return rootCmd.Execute()
}

func openStore() (*app.Config, *postgres.Store, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := postgres.NewStore(cfg.ConnString())
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Provision and manage API keys",
	}
	cmd.AddCommand(keysCreateCmd())
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysRevokeCmd())
	return cmd
}

func keysCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a new API key (the secret is printed exactly once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			svc := services.NewAPIKeyService(store, logger)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			secret, key, err := svc.Mint(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("id:     %s\n", key.ID)
			fmt.Printf("name:   %s\n", key.Name)
			fmt.Printf("secret: %s\n", secret)
			fmt.Println("store the secret now; it cannot be recovered")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name for the key")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List provisioned keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			keys, err := store.ListAPIKeys(ctx)
			if err != nil {
				return err
			}
			for _, key := range keys {
				lastUsed := "never"
				if key.LastUsedAt != nil {
					lastUsed = key.LastUsedAt.Format(time.RFC3339)
				}
				fmt.Printf("%s  %s…  active=%t  last_used=%s  %s\n",
					key.ID, key.KeyPrefix, key.Active, lastUsed, key.Name)
			}
			return nil
		},
	}
}

func keysRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Soft-disable a key (kept for audit, never deleted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid key id: %w", err)
			}

			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := store.DeactivateAPIKey(ctx, id); err != nil {
				return err
			}
			fmt.Println("ok: key revoked")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue operator bearer tokens",
	}
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed operator token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			token, err := services.NewTokenService(cfg.SigningSecret).Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&subject, "subject", "", "Operator identity embedded in the token")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = issueCmd.MarkFlagRequired("subject")
	cmd.AddCommand(issueCmd)
	return cmd
}

func agentsCmd() *cobra.Command {
	var staleAfter time.Duration
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Agent registry maintenance",
	}
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark agents inactive whose last beacon predates the threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			swept, err := store.MarkAgentsInactive(ctx, time.Now().Add(-staleAfter))
			if err != nil {
				return err
			}
			fmt.Printf("ok: %d agent(s) marked inactive\n", swept)
			return nil
		},
	}
	sweepCmd.Flags().DurationVar(&staleAfter, "stale-after", 10*time.Minute, "Staleness threshold")
	cmd.AddCommand(sweepCmd)
	return cmd
}
