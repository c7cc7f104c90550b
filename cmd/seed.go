package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/app"
	"github.com/PromoBrothers/Projeto-2026/internal/db"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"github.com/PromoBrothers/Projeto-2026/internal/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed fixed destination groups from gateway.fallback_groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := app.Bootstrap(cfgPath)
		if err != nil {
			return err
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		ids := util.UniqueGroupIDs(cfg.Gateway.FallbackGroupIDs())
		if len(ids) == 0 {
			log.Warn("gateway.fallback_groups is empty, nothing to seed")
			return nil
		}

		n, err := seedGroups(cmd.Context(), repository.NewGroupsRepository(sqlDB), ids, time.Now())
		if err != nil {
			return err
		}
		log.Info("seed completed", zap.Int("groups", len(ids)), zap.Int("created", n))
		return nil
	},
}

// seedGroups upserts each id (idempotent on grupo_id) and returns how many
// rows were new.
func seedGroups(ctx context.Context, groups repository.GroupsRepository, ids []string, now time.Time) (int, error) {
	created := 0
	for _, id := range ids {
		ok, err := groups.Upsert(ctx, id, id, now)
		if err != nil {
			return created, fmt.Errorf("upsert group %s: %w", id, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}
