package persistence

import (
	"context"
	"errors"

	"github.com/invigilo/invigilo/modules/proctoring/domain/ports"
	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
	"github.com/jackc/pgx/v5"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type SettingsPGStore struct {
	pool pgBeginner
}

func NewSettingsPGStore(pool pgBeginner) ports.SettingsStore {
	return &SettingsPGStore{pool: pool}
}

func (s *SettingsPGStore) GetByQuizID(ctx context.Context, quizID int64) (types.ProctoringSettings, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.ProctoringSettings{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var rec types.ProctoringSettings
	var mode int16
	var app string
	err = tx.QueryRow(ctx, `
	SELECT
	  quiz_id,
	  module_id,
	  quiz_name,
	  proctoring,
	  application,
	  main_camera_record,
	  second_camera_record,
	  screen_share_record,
	  photo_head_identity,
	  id_verification,
	  display_checks,
	  hdcp_checks,
	  content_protect,
	  fullscreen_mode,
	  extension_detector,
	  focus_detector
	FROM proctoring_quiz_settings
	WHERE quiz_id = $1
	`, quizID).Scan(
		&rec.QuizID,
		&rec.ModuleID,
		&rec.QuizName,
		&mode,
		&app,
		&rec.MainCameraRecord,
		&rec.SecondCameraRecord,
		&rec.ScreenShareRecord,
		&rec.PhotoHeadIdentity,
		&rec.IDVerification,
		&rec.DisplayChecks,
		&rec.HDCPChecks,
		&rec.ContentProtect,
		&rec.FullscreenMode,
		&rec.ExtensionDetector,
		&rec.FocusDetector,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ProctoringSettings{}, false, nil
		}
		return types.ProctoringSettings{}, false, err
	}
	rec.Proctoring = types.ProctoringMode(mode)
	rec.Application = types.ApplicationType(app)

	if err := tx.Commit(ctx); err != nil {
		return types.ProctoringSettings{}, false, err
	}
	return rec, true, nil
}

func (s *SettingsPGStore) Upsert(ctx context.Context, rec types.ProctoringSettings) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	_, err = tx.Exec(ctx, `
	INSERT INTO proctoring_quiz_settings (
	  quiz_id, module_id, quiz_name, proctoring, application,
	  main_camera_record, second_camera_record, screen_share_record,
	  photo_head_identity, id_verification, display_checks, hdcp_checks,
	  content_protect, fullscreen_mode, extension_detector, focus_detector,
	  updated_at
	) VALUES (
	  $1, $2, $3, $4, $5,
	  $6, $7, $8,
	  $9, $10, $11, $12,
	  $13, $14, $15, $16,
	  now()
	)
	ON CONFLICT (quiz_id) DO UPDATE SET
	  module_id = EXCLUDED.module_id,
	  quiz_name = EXCLUDED.quiz_name,
	  proctoring = EXCLUDED.proctoring,
	  application = EXCLUDED.application,
	  main_camera_record = EXCLUDED.main_camera_record,
	  second_camera_record = EXCLUDED.second_camera_record,
	  screen_share_record = EXCLUDED.screen_share_record,
	  photo_head_identity = EXCLUDED.photo_head_identity,
	  id_verification = EXCLUDED.id_verification,
	  display_checks = EXCLUDED.display_checks,
	  hdcp_checks = EXCLUDED.hdcp_checks,
	  content_protect = EXCLUDED.content_protect,
	  fullscreen_mode = EXCLUDED.fullscreen_mode,
	  extension_detector = EXCLUDED.extension_detector,
	  focus_detector = EXCLUDED.focus_detector,
	  updated_at = now()
	`,
		rec.QuizID, rec.ModuleID, rec.QuizName, int16(rec.Proctoring), string(rec.Application),
		rec.MainCameraRecord, rec.SecondCameraRecord, rec.ScreenShareRecord,
		rec.PhotoHeadIdentity, rec.IDVerification, rec.DisplayChecks, rec.HDCPChecks,
		rec.ContentProtect, rec.FullscreenMode, rec.ExtensionDetector, rec.FocusDetector,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *SettingsPGStore) DeleteByQuizID(ctx context.Context, quizID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `DELETE FROM proctoring_quiz_settings WHERE quiz_id = $1`, quizID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
