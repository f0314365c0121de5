package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/robalobadob/potguess/internal/database"
	"github.com/robalobadob/potguess/internal/payout"
	"github.com/robalobadob/potguess/internal/users"
)

// MigrateCmd applies the embedded migrations.
type MigrateCmd struct{}

func (c *MigrateCmd) Run() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	db, err := database.OpenMigrated(context.Background(), cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info().Str("db", cfg.DBPath).Msg("migrations applied")
	return nil
}

// PayoutsCmd lists payouts that still need an operator.
type PayoutsCmd struct {
	Limit int `default:"50" help:"Maximum records to list"`
}

func (c *PayoutsCmd) Run() error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	db, err := database.OpenMigrated(context.Background(), cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	recs, err := payout.NewSQLiteJournal(db).Unresolved(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	return printPayouts(os.Stdout, recs)
}

// ResolveCmd closes an inconsistent payout once the ledger has been
// reconciled by hand. Failed payouts are retried through the API instead.
type ResolveCmd struct {
	ID   string `arg:"" help:"Payout ID"`
	Note string `required:"" help:"What was done to reconcile the payout"`
}

func (c *ResolveCmd) Run() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	db, err := database.OpenMigrated(context.Background(), cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := payout.NewSQLiteJournal(db).Resolve(context.Background(), c.ID, c.Note)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", c.ID, err)
	}
	logger.Info().
		Str("payout_id", rec.ID).
		Str("game_id", rec.GameID).
		Str("account", string(rec.Account)).
		Uint64("amount", rec.Amount).
		Msg("payout resolved")
	return nil
}

// PromoteCmd grants (or with --role=player revokes) the operator role.
// Operators can create games and mint funds, so the role is only ever set
// here, by someone with access to the database.
type PromoteCmd struct {
	Username string `arg:"" help:"Username to change"`
	Role     string `default:"operator" enum:"operator,player" help:"Role to assign (operator, player)"`
}

func (c *PromoteCmd) Run() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	db, err := database.OpenMigrated(context.Background(), cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := users.NewStore(db).SetRole(context.Background(), c.Username, users.Role(c.Role)); err != nil {
		return fmt.Errorf("promote %s: %w", c.Username, err)
	}
	logger.Info().Str("username", c.Username).Str("role", c.Role).Msg("role updated")
	return nil
}

func printPayouts(w io.Writer, recs []payout.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGAME\tACCOUNT\tAMOUNT\tSTATUS\tSTAGE\tCREATED\tERROR")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.GameID, r.Account, r.Amount, r.Status, r.Stage,
			r.CreatedAt.Format(time.RFC3339), r.Error)
	}
	return tw.Flush()
}
