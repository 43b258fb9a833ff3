package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/core/services"
	"github.com/SscSPs/credit_ledger_app/internal/dto"
	"github.com/SscSPs/credit_ledger_app/internal/platform/bootstrap"
	"github.com/SscSPs/credit_ledger_app/internal/middleware"
	"github.com/SscSPs/credit_ledger_app/internal/platform/config"
	"github.com/SscSPs/credit_ledger_app/internal/utils"
	"github.com/SscSPs/credit_ledger_app/migrations"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const (
	cliActorID     = "creditctl"
	commandTimeout = 30 * time.Second

	// skipServicesAnnotation marks commands that must not open the ledger services.
	skipServicesAnnotation = "skip-services"
)

type cli struct {
	logger   *slog.Logger
	out      io.Writer
	cfg      *config.Config
	services *portssvc.ServiceContainer
	closers  []bootstrap.Closer
	verbose  bool
}

func (a *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "creditctl",
		Short: "Administrative operations for the credit ledger",
		Long: `creditctl manages credit accounts directly against the ledger storage.

Connection settings are read from the same environment variables as the server.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.verbose {
				a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
			}
			if a.cfg == nil {
				cfg, err := config.LoadConfig()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				a.cfg = cfg
			}
			if cmd.Annotations[skipServicesAnnotation] == "true" || a.services != nil {
				return nil
			}
			return a.openServices(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			for i := len(a.closers) - 1; i >= 0; i-- {
				a.closers[i]()
			}
			a.closers = nil
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(a.migrateCmd(), a.accountCmd(), a.balanceCmd(), a.transactionsCmd(), a.auditCmd(), a.catalogCmd(), a.tokenCmd())
	return root
}

func (a *cli) openServices(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	repos, closeRepos, err := bootstrap.OpenRepositories(ctx, a.cfg, a.logger, false)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeRepos)

	sideChannels, closeSideChannels, err := bootstrap.LedgerSideChannels(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeSideChannels)

	container, err := services.NewServiceContainer(a.cfg, repos, sideChannels...)
	if err != nil {
		return err
	}
	a.services = container
	return nil
}

func (a *cli) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, commandTimeout)
}

func (a *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "migrate",
		Short:       "Apply pending database migrations",
		Annotations: map[string]string{skipServicesAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.StorageDriver != config.StoragePostgres {
				return fmt.Errorf("migrate requires the %s storage driver", config.StoragePostgres)
			}
			return migrations.Up(a.cfg.DatabaseURL, a.logger)
		},
	}
}

func (a *cli) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account management",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with a zero balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")

			ctx, cancel := commandContext(cmd)
			defer cancel()

			account, err := a.services.Account.CreateAccount(ctx, dto.CreateAccountRequest{Name: name}, cliActorID)
			if err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}
			return a.printJSON(dto.ToAccountResponse(account))
		},
	}
	createCmd.Flags().String("name", "", "Account name (required)")
	_ = createCmd.MarkFlagRequired("name")

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, _ := cmd.Flags().GetString("account-id")

			ctx, cancel := commandContext(cmd)
			defer cancel()

			account, err := a.services.Account.GetAccountByID(ctx, accountID)
			if err != nil {
				return fmt.Errorf("failed to get account: %w", err)
			}
			return a.printJSON(dto.ToAccountResponse(account))
		},
	}
	getCmd.Flags().String("account-id", "", "Account ID (required)")
	_ = getCmd.MarkFlagRequired("account-id")

	cmd.AddCommand(createCmd, getCmd)
	return cmd
}

func (a *cli) balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Balance operations",
		Long:  "Read balances and make manual adjustments",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Get an account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, _ := cmd.Flags().GetString("account-id")

			ctx, cancel := commandContext(cmd)
			defer cancel()

			balance, err := a.services.Ledger.GetBalance(ctx, accountID)
			if err != nil {
				return fmt.Errorf("failed to get balance: %w", err)
			}
			return a.printJSON(dto.AccountBalanceResponse{AccountID: accountID, Balance: balance})
		},
	}
	getCmd.Flags().String("account-id", "", "Account ID (required)")
	_ = getCmd.MarkFlagRequired("account-id")

	adjustCmd := &cobra.Command{
		Use:   "adjust",
		Short: "Grant (positive amount) or remove (negative amount) credits",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, _ := cmd.Flags().GetString("account-id")
			rawAmount, _ := cmd.Flags().GetString("amount")
			note, _ := cmd.Flags().GetString("note")
			description, _ := cmd.Flags().GetString("description")

			amount, err := decimal.NewFromString(rawAmount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", rawAmount, err)
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			result, err := a.services.Ledger.AdminAdjust(ctx, portssvc.AdjustCommand{
				AccountID:   accountID,
				Amount:      amount,
				Description: description,
				Note:        note,
				ActorID:     cliActorID,
			})
			if err != nil {
				return fmt.Errorf("adjustment rejected: %w", err)
			}
			a.logger.Debug("Adjustment committed", slog.Int64("transaction_id", result.TransactionID))
			return a.printJSON(dto.ToLedgerResponse(result))
		},
	}
	adjustCmd.Flags().String("account-id", "", "Account ID (required)")
	adjustCmd.Flags().String("amount", "", "Signed credit amount (required)")
	adjustCmd.Flags().String("note", "", "Note stored with the adjustment")
	adjustCmd.Flags().String("description", "", "Transaction description")
	_ = adjustCmd.MarkFlagRequired("account-id")
	_ = adjustCmd.MarkFlagRequired("amount")

	cmd.AddCommand(getCmd, adjustCmd)
	return cmd
}

func (a *cli) transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Transaction history",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List an account's transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, _ := cmd.Flags().GetString("account-id")
			limit, _ := cmd.Flags().GetInt("limit")
			nextToken, _ := cmd.Flags().GetString("next-token")

			ctx, cancel := commandContext(cmd)
			defer cancel()

			page, err := a.services.Reporting.ListTransactions(ctx, accountID, limit, nextToken)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			return a.printJSON(dto.ToListTransactionsResponse(page))
		},
	}
	listCmd.Flags().String("account-id", "", "Account ID (required)")
	listCmd.Flags().Int("limit", 20, "Page size")
	listCmd.Flags().String("next-token", "", "Token from the previous page")
	_ = listCmd.MarkFlagRequired("account-id")

	cmd.AddCommand(listCmd)
	return cmd
}

func (a *cli) auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Integrity checks",
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay an account's transactions and compare with the stored balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, _ := cmd.Flags().GetString("account-id")

			ctx, cancel := commandContext(cmd)
			defer cancel()

			report, err := a.services.Ledger.VerifyAccount(ctx, accountID)
			if err != nil {
				return fmt.Errorf("failed to verify account: %w", err)
			}
			if err := a.printJSON(dto.ToAuditReportResponse(report)); err != nil {
				return err
			}
			if !report.Consistent {
				return fmt.Errorf("account %s is inconsistent with its transaction log", accountID)
			}
			return nil
		},
	}
	verifyCmd.Flags().String("account-id", "", "Account ID (required)")
	_ = verifyCmd.MarkFlagRequired("account-id")

	cmd.AddCommand(verifyCmd)
	return cmd
}

func (a *cli) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Operation prices",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the price of every billable operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printJSON(dto.ToCatalogResponse(a.services.Ledger.CostCatalog()))
		},
	})
	return cmd
}

func (a *cli) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "API access tokens",
	}

	issueCmd := &cobra.Command{
		Use:         "issue",
		Short:       "Sign an API token with the configured JWT secret",
		Annotations: map[string]string{skipServicesAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			role, _ := cmd.Flags().GetString("role")
			accountID, _ := cmd.Flags().GetString("account-id")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			signed, err := utils.GenerateJWT(userID, role, accountID, a.cfg.JWTSecret, ttl, a.cfg.JWTIssuer)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			return a.printJSON(map[string]string{"token": signed, "expiresIn": ttl.String()})
		},
	}
	issueCmd.Flags().String("user-id", "", "Subject of the token (required)")
	issueCmd.Flags().String("role", middleware.RoleMember, "Role: admin or member")
	issueCmd.Flags().String("account-id", "", "Tenant account, required for members")
	issueCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = issueCmd.MarkFlagRequired("user-id")

	cmd.AddCommand(issueCmd)
	return cmd
}
