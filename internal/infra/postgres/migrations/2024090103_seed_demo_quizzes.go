package migrations

import (
	"context"
	"encoding/json"

	"github.com/uptrace/bun"

	"lichsu-rewards-service/internal/infra/memory"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			for _, quiz := range memory.DemoQuizzes() {
				data, err := json.Marshal(quiz)
				if err != nil {
					return err
				}
				_, err = db.ExecContext(ctx,
					`INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO NOTHING`,
					quiz.ID, string(data))
				if err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			for id := range memory.DemoQuizzes() {
				if _, err := db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = ?`, id); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
