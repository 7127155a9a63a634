package root

import (
	"context"
	"database/sql"

	"lifeline/internal/config"
	"lifeline/internal/engine"
	"lifeline/internal/storage"
)

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, func(), error) {
	path := cfg.DB.Path
	if path == "" {
		p, err := storage.DefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}
	db, err := storage.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = db.Close()
	}
	return db, cleanup, nil
}

func serviceOptions(cfg config.Config) engine.Options {
	rules := make([]engine.AchievementRule, 0, len(cfg.Achievements))
	for _, r := range cfg.Achievements {
		rules = append(rules, engine.AchievementRule{
			Type:        r.Type,
			Requirement: engine.Requirement(r.Requirement),
			Target:      r.Target,
			XPReward:    r.XPReward,
		})
	}
	return engine.Options{
		UserID:                cfg.User.ID,
		Curve:                 engine.PowerCurve(cfg.Progression.Curve.Coefficient, cfg.Progression.Curve.Exponent),
		Rules:                 rules,
		HabitXP:               cfg.Progression.HabitXP,
		TaskXP:                cfg.Progression.TaskXP,
		CopyLinkedTransaction: cfg.Recurrence.CopyLinkedTransaction,
	}
}

func openService(ctx context.Context) (*engine.Service, config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	db, cleanup, err := openDB(ctx, cfg)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	return engine.NewService(db, serviceOptions(cfg)), cfg, cleanup, nil
}
