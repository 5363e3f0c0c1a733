package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mue/internal/models"
)

const backgroundColumns = "id, url, name, upload_date, width, height, file_size, folder, blur_hash, created_at, updated_at"

// defaultBackgroundName is used for rows added from a bare url.
const defaultBackgroundName = "Image"

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ListBackgrounds returns every background in insertion order.
func (s *Store) ListBackgrounds(ctx context.Context) ([]models.Background, error) {
	return listBackgrounds(ctx, s.db)
}

// GetBackground returns one background by id, or nil when it does not exist.
func (s *Store) GetBackground(ctx context.Context, id int64) (*models.Background, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+backgroundColumns+` FROM backgrounds WHERE id = ?`, id)
	return scanBackground(row)
}

// ListBackgroundsByURL returns backgrounds whose url matches exactly.
func (s *Store) ListBackgroundsByURL(ctx context.Context, rawURL string) ([]models.Background, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+backgroundColumns+` FROM backgrounds WHERE url = ? ORDER BY id ASC`, rawURL)
	if err != nil {
		return nil, err
	}
	return collectBackgrounds(rows)
}

// CountBackgrounds returns the number of stored backgrounds.
func (s *Store) CountBackgrounds(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM backgrounds").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// AddBackground inserts a background and assigns its id.
func (s *Store) AddBackground(ctx context.Context, bg *models.Background) (int64, error) {
	if bg == nil {
		return 0, fmt.Errorf("background is required")
	}
	id, err := insertBackground(ctx, s.db, bg)
	if err != nil {
		return 0, err
	}
	bg.ID = id
	return id, nil
}

// AddBackgroundURL inserts a background from a bare url with default metadata.
func (s *Store) AddBackgroundURL(ctx context.Context, rawURL string) (int64, error) {
	bg := &models.Background{
		URL:        rawURL,
		Name:       defaultBackgroundName,
		UploadDate: time.Now().UTC(),
	}
	return s.AddBackground(ctx, bg)
}

// UpdateBackgroundAt merges patch into the background at position index of the
// current listing. When index is out of range the patch is inserted as a new
// background instead and added is true.
func (s *Store) UpdateBackgroundAt(ctx context.Context, index int, patch models.BackgroundPatch) (id int64, added bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	snapshot, err := listBackgrounds(ctx, tx)
	if err != nil {
		return 0, false, err
	}

	if index < 0 || index >= len(snapshot) {
		bg := backgroundFromPatch(patch)
		id, err = insertBackground(ctx, tx, &bg)
		if err != nil {
			return 0, false, err
		}
		if err = tx.Commit(); err != nil {
			return 0, false, err
		}
		return id, true, nil
	}

	current := snapshot[index]
	patch.Apply(&current)
	if err = updateBackgroundRow(ctx, tx, &current, time.Now().UTC()); err != nil {
		return 0, false, err
	}
	if err = tx.Commit(); err != nil {
		return 0, false, err
	}
	return current.ID, false, nil
}

// UpdateBackgroundMetadata merges patch into the background with the given id.
func (s *Store) UpdateBackgroundMetadata(ctx context.Context, id int64, patch models.BackgroundPatch) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := scanBackground(tx.QueryRowContext(ctx, `SELECT `+backgroundColumns+` FROM backgrounds WHERE id = ?`, id))
	if err != nil {
		return err
	}
	if current == nil {
		err = fmt.Errorf("%w: %d", ErrNotFound, id)
		return err
	}

	patch.Apply(current)
	if err = updateBackgroundRow(ctx, tx, current, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteBackgroundAt deletes the background at position index of the current
// listing. Out-of-range positions are a no-op and report false.
func (s *Store) DeleteBackgroundAt(ctx context.Context, index int) (bool, error) {
	n, err := s.DeleteBackgroundsAt(ctx, []int{index})
	return n > 0, err
}

// DeleteBackgroundsAt deletes the backgrounds at the given positions, all
// resolved against one listing snapshot. Duplicate and out-of-range positions
// are ignored. It returns the number of deleted rows.
func (s *Store) DeleteBackgroundsAt(ctx context.Context, indices []int) (deleted int, err error) {
	if len(indices) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	snapshot, err := listBackgrounds(ctx, tx)
	if err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(indices))
	seen := make(map[int]struct{}, len(indices))
	for _, index := range indices {
		if index < 0 || index >= len(snapshot) {
			continue
		}
		if _, ok := seen[index]; ok {
			continue
		}
		seen[index] = struct{}{}
		ids = append(ids, snapshot[index].ID)
	}

	deleted, err = deleteBackgroundIDs(ctx, tx, ids)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteBackground deletes one background by id.
func (s *Store) DeleteBackground(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM backgrounds WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// DeleteBackgrounds deletes backgrounds by id and returns how many existed.
func (s *Store) DeleteBackgrounds(ctx context.Context, ids []int64) (deleted int, err error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	deleted, err = deleteBackgroundIDs(ctx, tx, ids)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

// EmbeddedBytes sums the decoded payload size of every data url background.
func (s *Store) EmbeddedBytes(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(
			length(substr(url, instr(url, ',') + 1)) * 3 / 4
			- (length(url) - length(rtrim(url, '=')))
		), 0)
		FROM backgrounds
		WHERE url LIKE 'data:%' AND instr(url, ',') > 0`).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ClearBackgrounds removes every background.
func (s *Store) ClearBackgrounds(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM backgrounds")
	return err
}

func listBackgrounds(ctx context.Context, q rowQuerier) ([]models.Background, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+backgroundColumns+` FROM backgrounds ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	return collectBackgrounds(rows)
}

func collectBackgrounds(rows *sql.Rows) ([]models.Background, error) {
	defer rows.Close()

	backgrounds := []models.Background{}
	for rows.Next() {
		bg, err := scanBackground(rows)
		if err != nil {
			return nil, err
		}
		if bg == nil {
			continue
		}
		backgrounds = append(backgrounds, *bg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return backgrounds, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBackground(ctx context.Context, ex execer, bg *models.Background) (int64, error) {
	now := time.Now().UTC()
	if bg.UploadDate.IsZero() {
		bg.UploadDate = now
	}
	width, height := dimensionArgs(bg.Dimensions)

	res, err := ex.ExecContext(ctx, `
		INSERT INTO backgrounds (url, name, upload_date, width, height, file_size, folder, blur_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		bg.URL,
		bg.Name,
		formatTime(bg.UploadDate),
		width,
		height,
		nullInt64(bg.FileSize),
		strings.TrimSpace(bg.Folder),
		nullString(bg.BlurHash),
		formatTime(now),
		nullTime(bg.UpdatedAt),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func updateBackgroundRow(ctx context.Context, ex execer, bg *models.Background, updatedAt time.Time) error {
	bg.UpdatedAt = &updatedAt
	width, height := dimensionArgs(bg.Dimensions)
	_, err := ex.ExecContext(ctx, `
		UPDATE backgrounds
		SET url = ?, name = ?, width = ?, height = ?, file_size = ?, folder = ?, blur_hash = ?, updated_at = ?
		WHERE id = ?
	`,
		bg.URL,
		bg.Name,
		width,
		height,
		nullInt64(bg.FileSize),
		strings.TrimSpace(bg.Folder),
		nullString(bg.BlurHash),
		formatTime(updatedAt),
		bg.ID,
	)
	return err
}

func deleteBackgroundIDs(ctx context.Context, ex execer, ids []int64) (int, error) {
	deleted := 0
	for _, id := range ids {
		res, err := ex.ExecContext(ctx, "DELETE FROM backgrounds WHERE id = ?", id)
		if err != nil {
			return deleted, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += int(affected)
	}
	return deleted, nil
}

func backgroundFromPatch(patch models.BackgroundPatch) models.Background {
	bg := models.Background{Name: defaultBackgroundName, UploadDate: time.Now().UTC()}
	patch.Apply(&bg)
	return bg
}

func scanBackground(scanner interface {
	Scan(dest ...any) error
}) (*models.Background, error) {
	bg := models.Background{}

	var name, uploadDate, blurHash, updatedAt sql.NullString
	var width, height, fileSize sql.NullInt64
	var createdAt string

	err := scanner.Scan(
		&bg.ID,
		&bg.URL,
		&name,
		&uploadDate,
		&width,
		&height,
		&fileSize,
		&bg.Folder,
		&blurHash,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	// Rows written from a bare url before names existed carry no metadata.
	if !name.Valid || name.String == "" {
		bg.Name = models.LegacyName(bg.ID)
		bg.UploadDate = parsedCreated
		if bg.UploadDate.IsZero() {
			bg.UploadDate = time.Now().UTC()
		}
		bg.Folder = ""
		return &bg, nil
	}

	bg.Name = name.String
	bg.UploadDate = parsedCreated
	if uploadDate.Valid && uploadDate.String != "" {
		parsed, err := parseTime(uploadDate.String)
		if err != nil {
			return nil, err
		}
		bg.UploadDate = parsed
	}
	if width.Valid && height.Valid {
		bg.Dimensions = &models.Dimensions{Width: int(width.Int64), Height: int(height.Int64)}
	}
	if fileSize.Valid {
		size := fileSize.Int64
		bg.FileSize = &size
	}
	if blurHash.Valid && blurHash.String != "" {
		hash := blurHash.String
		bg.BlurHash = &hash
	}
	if updatedAt.Valid && updatedAt.String != "" {
		parsed, err := parseTime(updatedAt.String)
		if err != nil {
			return nil, err
		}
		bg.UpdatedAt = &parsed
	}

	return &bg, nil
}

func dimensionArgs(d *models.Dimensions) (any, any) {
	if d == nil {
		return nil, nil
	}
	return d.Width, d.Height
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return nullIfEmpty(*v)
}
