package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
)

// CatalogStorage persists user-owned catalog entities (languages, voices,
// topics, accounts). Saves are upserts keyed on id; deletes are soft.
type CatalogStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

func NewCatalogStorage(db *SQLiteDB, logger arbor.ILogger) *CatalogStorage {
	return &CatalogStorage{db: db, logger: logger}
}

var catalogColumns = map[string]bool{
	"id": true, "user_id": true, "name": true, "code": true,
	"created_at": true, "updated_at": true, "deleted_at": true,
}

// --- Languages ---

func (s *CatalogStorage) SaveLanguage(ctx context.Context, language *models.Language) error {
	now := time.Now()
	if language.CreatedAt.IsZero() {
		language.CreatedAt = now
	}
	language.UpdatedAt = now

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO languages (id, user_id, name, code, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			code = excluded.code,
			updated_at = excluded.updated_at`,
		language.ID, language.UserID, language.Name, language.Code,
		language.CreatedAt.Unix(), language.UpdatedAt.Unix(), unixOrNil(language.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to save language: %w", err)
	}
	return nil
}

func (s *CatalogStorage) GetLanguage(ctx context.Context, id string) (*models.Language, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, user_id, name, code, created_at, updated_at, deleted_at
		FROM languages WHERE id = ? AND deleted_at IS NULL`, id)
	lang, err := scanLanguage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("language %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get language: %w", err)
	}
	return lang, nil
}

func (s *CatalogStorage) ListLanguages(ctx context.Context, query interfaces.Query) ([]*models.Language, error) {
	tail, args, err := buildQuery(query, catalogColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, user_id, name, code, created_at, updated_at, deleted_at
		FROM languages`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}
	defer rows.Close()

	var out []*models.Language
	for rows.Next() {
		lang, err := scanLanguage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		out = append(out, lang)
	}
	return out, rows.Err()
}

func (s *CatalogStorage) DeleteLanguage(ctx context.Context, id string) error {
	return s.softDelete(ctx, "languages", id)
}

// --- Voices ---

func (s *CatalogStorage) SaveVoice(ctx context.Context, voice *models.Voice) error {
	now := time.Now()
	if voice.CreatedAt.IsZero() {
		voice.CreatedAt = now
	}
	voice.UpdatedAt = now

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO voices (id, user_id, name, path, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			updated_at = excluded.updated_at`,
		voice.ID, voice.UserID, voice.Name, voice.Path,
		voice.CreatedAt.Unix(), voice.UpdatedAt.Unix(), unixOrNil(voice.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to save voice: %w", err)
	}
	return nil
}

func (s *CatalogStorage) GetVoice(ctx context.Context, id string) (*models.Voice, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, user_id, name, path, created_at, updated_at, deleted_at
		FROM voices WHERE id = ? AND deleted_at IS NULL`, id)
	voice, err := scanVoice(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("voice %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get voice: %w", err)
	}
	return voice, nil
}

func (s *CatalogStorage) ListVoices(ctx context.Context, query interfaces.Query) ([]*models.Voice, error) {
	tail, args, err := buildQuery(query, catalogColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, user_id, name, path, created_at, updated_at, deleted_at
		FROM voices`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	defer rows.Close()

	var out []*models.Voice
	for rows.Next() {
		voice, err := scanVoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voice: %w", err)
		}
		out = append(out, voice)
	}
	return out, rows.Err()
}

func (s *CatalogStorage) DeleteVoice(ctx context.Context, id string) error {
	return s.softDelete(ctx, "voices", id)
}

// --- Topics ---

func (s *CatalogStorage) SaveTopic(ctx context.Context, topic *models.Topic) error {
	now := time.Now()
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = now
	}
	topic.UpdatedAt = now

	extras, err := marshalJSON(topic.Extras)
	if err != nil {
		return fmt.Errorf("failed to marshal topic extras: %w", err)
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO topics (id, user_id, name, image_prefix, cover_prompt, style_name, style_weight, extras, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			image_prefix = excluded.image_prefix,
			cover_prompt = excluded.cover_prompt,
			style_name = excluded.style_name,
			style_weight = excluded.style_weight,
			extras = excluded.extras,
			updated_at = excluded.updated_at`,
		topic.ID, topic.UserID, topic.Name, topic.ImagePrefix, topic.CoverPrompt,
		topic.StyleName, topic.StyleWeight, extras,
		topic.CreatedAt.Unix(), topic.UpdatedAt.Unix(), unixOrNil(topic.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to save topic: %w", err)
	}
	return nil
}

func (s *CatalogStorage) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, user_id, name, image_prefix, cover_prompt, style_name, style_weight, extras, created_at, updated_at, deleted_at
		FROM topics WHERE id = ? AND deleted_at IS NULL`, id)
	topic, err := scanTopic(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("topic %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return topic, nil
}

func (s *CatalogStorage) ListTopics(ctx context.Context, query interfaces.Query) ([]*models.Topic, error) {
	tail, args, err := buildQuery(query, catalogColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, user_id, name, image_prefix, cover_prompt, style_name, style_weight, extras, created_at, updated_at, deleted_at
		FROM topics`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var out []*models.Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		out = append(out, topic)
	}
	return out, rows.Err()
}

func (s *CatalogStorage) DeleteTopic(ctx context.Context, id string) error {
	return s.softDelete(ctx, "topics", id)
}

// --- Accounts ---

func (s *CatalogStorage) SaveAccount(ctx context.Context, account *models.Account) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	var digitalHuman, subtitleStyle any
	if account.DigitalHuman != nil {
		data, err := json.Marshal(account.DigitalHuman)
		if err != nil {
			return fmt.Errorf("failed to marshal digital human settings: %w", err)
		}
		digitalHuman = string(data)
	}
	if account.SubtitleStyle != nil {
		data, err := json.Marshal(account.SubtitleStyle)
		if err != nil {
			return fmt.Errorf("failed to marshal subtitle style: %w", err)
		}
		subtitleStyle = string(data)
	}

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, logo_path, digital_human, subtitle_style, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			logo_path = excluded.logo_path,
			digital_human = excluded.digital_human,
			subtitle_style = excluded.subtitle_style,
			updated_at = excluded.updated_at`,
		account.ID, account.UserID, account.Name, account.LogoPath,
		digitalHuman, subtitleStyle,
		account.CreatedAt.Unix(), account.UpdatedAt.Unix(), unixOrNil(account.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (s *CatalogStorage) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, user_id, name, logo_path, digital_human, subtitle_style, created_at, updated_at, deleted_at
		FROM accounts WHERE id = ? AND deleted_at IS NULL`, id)
	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (s *CatalogStorage) ListAccounts(ctx context.Context, query interfaces.Query) ([]*models.Account, error) {
	tail, args, err := buildQuery(query, catalogColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, user_id, name, logo_path, digital_human, subtitle_style, created_at, updated_at, deleted_at
		FROM accounts`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (s *CatalogStorage) DeleteAccount(ctx context.Context, id string) error {
	return s.softDelete(ctx, "accounts", id)
}

func (s *CatalogStorage) softDelete(ctx context.Context, table, id string) error {
	now := time.Now().Unix()
	result, err := s.db.DB().ExecContext(ctx,
		"UPDATE "+table+" SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return nil
}

// --- Scanners ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLanguage(row rowScanner) (*models.Language, error) {
	var (
		lang                 models.Language
		createdAt, updatedAt int64
		deletedAt            sql.NullInt64
	)
	if err := row.Scan(&lang.ID, &lang.UserID, &lang.Name, &lang.Code,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	lang.CreatedAt = time.Unix(createdAt, 0)
	lang.UpdatedAt = time.Unix(updatedAt, 0)
	lang.DeletedAt = timeFromNull(deletedAt)
	return &lang, nil
}

func scanVoice(row rowScanner) (*models.Voice, error) {
	var (
		voice                models.Voice
		createdAt, updatedAt int64
		deletedAt            sql.NullInt64
	)
	if err := row.Scan(&voice.ID, &voice.UserID, &voice.Name, &voice.Path,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	voice.CreatedAt = time.Unix(createdAt, 0)
	voice.UpdatedAt = time.Unix(updatedAt, 0)
	voice.DeletedAt = timeFromNull(deletedAt)
	return &voice, nil
}

func scanTopic(row rowScanner) (*models.Topic, error) {
	var (
		topic                models.Topic
		extras               string
		createdAt, updatedAt int64
		deletedAt            sql.NullInt64
	)
	if err := row.Scan(&topic.ID, &topic.UserID, &topic.Name, &topic.ImagePrefix,
		&topic.CoverPrompt, &topic.StyleName, &topic.StyleWeight, &extras,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	topic.Extras = unmarshalMap(extras)
	topic.CreatedAt = time.Unix(createdAt, 0)
	topic.UpdatedAt = time.Unix(updatedAt, 0)
	topic.DeletedAt = timeFromNull(deletedAt)
	return &topic, nil
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account                     models.Account
		digitalHuman, subtitleStyle sql.NullString
		createdAt, updatedAt        int64
		deletedAt                   sql.NullInt64
	)
	if err := row.Scan(&account.ID, &account.UserID, &account.Name, &account.LogoPath,
		&digitalHuman, &subtitleStyle, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if digitalHuman.Valid && digitalHuman.String != "" {
		var settings models.DigitalHumanSettings
		if err := json.Unmarshal([]byte(digitalHuman.String), &settings); err == nil {
			account.DigitalHuman = &settings
		}
	}
	if subtitleStyle.Valid && subtitleStyle.String != "" {
		var style models.SubtitleStyle
		if err := json.Unmarshal([]byte(subtitleStyle.String), &style); err == nil {
			account.SubtitleStyle = &style
		}
	}
	account.CreatedAt = time.Unix(createdAt, 0)
	account.UpdatedAt = time.Unix(updatedAt, 0)
	account.DeletedAt = timeFromNull(deletedAt)
	return &account, nil
}
