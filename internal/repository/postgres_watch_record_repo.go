package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/watchman/internal/model"
)

// PostgresWatchRecordRepo はPostgreSQLを使用した視聴レコードリポジトリ。
// 映画のレコードはlast_season/last_episode/statusがNULLで保存される。
type PostgresWatchRecordRepo struct {
	db *sql.DB
}

// NewPostgresWatchRecordRepo はPostgresWatchRecordRepoを生成する。
func NewPostgresWatchRecordRepo(db *sql.DB) *PostgresWatchRecordRepo {
	return &PostgresWatchRecordRepo{db: db}
}

const watchRecordColumns = `id, user_id, media_type, external_id, last_season, last_episode, status, grade, created_at, updated_at`

// scanRecord は1行を視聴レコードへ読み取る。
func scanRecord(scan func(dest ...any) error) (*model.WatchRecord, error) {
	record := &model.WatchRecord{}
	var (
		season  sql.NullInt64
		episode sql.NullInt64
		status  sql.NullString
		grade   sql.NullFloat64
	)
	if err := scan(
		&record.ID, &record.UserID, &record.MediaType, &record.ExternalID,
		&season, &episode, &status, &grade,
		&record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if season.Valid && episode.Valid {
		record.LastViewed = model.EpisodeMarker{Season: int(season.Int64), Episode: int(episode.Int64)}
	}
	if status.Valid {
		record.Status = model.WatchStatus(status.String)
	}
	if grade.Valid {
		g := grade.Float64
		record.Grade = &g
	}
	return record, nil
}

// markerColumns はマーカーをNULL許容カラム値へ変換する。映画はNULL。
func markerColumns(record *model.WatchRecord) (season, episode, status any) {
	if !record.IsSeries() {
		return nil, nil, nil
	}
	return record.LastViewed.Season, record.LastViewed.Episode, string(record.Status)
}

// FindByUserAndRef はユーザーと作品の視聴レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresWatchRecordRepo) FindByUserAndRef(ctx context.Context, userID string, ref model.MediaRef) (*model.WatchRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+watchRecordColumns+`
		 FROM watch_records
		 WHERE user_id = $1 AND media_type = $2 AND external_id = $3`,
		userID, string(ref.Type), ref.ID,
	)

	record, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("視聴レコードの取得に失敗しました: %w", err)
	}
	return record, nil
}

// Create は視聴レコードを作成する。
func (r *PostgresWatchRecordRepo) Create(ctx context.Context, record *model.WatchRecord) error {
	season, episode, status := markerColumns(record)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watch_records (id, user_id, media_type, external_id, last_season, last_episode, status, grade, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.UserID, string(record.MediaType), record.ExternalID,
		season, episode, status, record.Grade,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("視聴レコードの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete はユーザーと作品の視聴レコードを削除する。
// レコードが存在しない場合もエラーにしない。
func (r *PostgresWatchRecordRepo) Delete(ctx context.Context, userID string, ref model.MediaRef) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM watch_records
		 WHERE user_id = $1 AND media_type = $2 AND external_id = $3`,
		userID, string(ref.Type), ref.ID,
	)
	if err != nil {
		return fmt.Errorf("視聴レコードの削除に失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの全視聴レコードを返す。
func (r *PostgresWatchRecordRepo) ListByUserID(ctx context.Context, userID string) ([]*model.WatchRecord, error) {
	return r.list(ctx,
		`SELECT `+watchRecordColumns+`
		 FROM watch_records WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
}

// ListSeriesByUserID はユーザーのシリーズの視聴レコードのみを返す。
func (r *PostgresWatchRecordRepo) ListSeriesByUserID(ctx context.Context, userID string) ([]*model.WatchRecord, error) {
	return r.list(ctx,
		`SELECT `+watchRecordColumns+`
		 FROM watch_records WHERE user_id = $1 AND media_type = 'tv' ORDER BY created_at ASC`,
		userID,
	)
}

func (r *PostgresWatchRecordRepo) list(ctx context.Context, query string, args ...any) ([]*model.WatchRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("視聴レコード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []*model.WatchRecord
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("視聴レコード行の読み取りに失敗しました: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("視聴レコード一覧の走査に失敗しました: %w", err)
	}
	return records, nil
}

// UpdateProgress は視聴位置とステータスを単一のUPDATEで同時に書き込む。
// レコードが存在しない場合はfalseを返す。
func (r *PostgresWatchRecordRepo) UpdateProgress(ctx context.Context, userID string, ref model.MediaRef, marker model.EpisodeMarker, status model.WatchStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE watch_records
		 SET last_season = $4, last_episode = $5, status = $6, updated_at = NOW()
		 WHERE user_id = $1 AND media_type = $2 AND external_id = $3`,
		userID, string(ref.Type), ref.ID,
		marker.Season, marker.Episode, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("視聴位置の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// UpdateStatusIfMarker は保存済みの視聴位置がmarkerと一致する場合のみステータスを更新する。
// 再計算の読み取りと書き込みの間に視聴位置が進んだ場合、この更新は適用されない。
func (r *PostgresWatchRecordRepo) UpdateStatusIfMarker(ctx context.Context, userID string, ref model.MediaRef, marker model.EpisodeMarker, status model.WatchStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE watch_records
		 SET status = $6, updated_at = NOW()
		 WHERE user_id = $1 AND media_type = $2 AND external_id = $3
		   AND last_season = $4 AND last_episode = $5`,
		userID, string(ref.Type), ref.ID,
		marker.Season, marker.Episode, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("ステータスの条件付き更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// UpdateGrade はレコードのレーティングを更新する。レコードが存在しない場合はfalseを返す。
func (r *PostgresWatchRecordRepo) UpdateGrade(ctx context.Context, userID string, ref model.MediaRef, grade float64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE watch_records
		 SET grade = $4, updated_at = NOW()
		 WHERE user_id = $1 AND media_type = $2 AND external_id = $3`,
		userID, string(ref.Type), ref.ID, grade,
	)
	if err != nil {
		return false, fmt.Errorf("レーティングの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByUserID はユーザーの全視聴レコードを削除する。
func (r *PostgresWatchRecordRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM watch_records WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの全視聴レコードの削除に失敗しました: %w", err)
	}
	return nil
}

// ListUserIDsWithSeries はシリーズを1件以上フォローしている全ユーザーIDを返す。
func (r *PostgresWatchRecordRepo) ListUserIDsWithSeries(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM watch_records WHERE media_type = 'tv' ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("対象ユーザーの列挙に失敗しました: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ユーザーID行の読み取りに失敗しました: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("対象ユーザーの走査に失敗しました: %w", err)
	}
	return userIDs, nil
}

// compile-time interface check
var _ WatchRecordRepository = (*PostgresWatchRecordRepo)(nil)
