package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pagesum/internal/domain"
	"pagesum/internal/prompt"
)

func (d *Database) AddWatchedPage(
	ctx context.Context,
	userID int64,
	pageURL string,
	pageTitle string,
) error {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return errors.New("page URL is empty")
	}

	pageTitle = strings.TrimSpace(pageTitle)
	if pageTitle == "" {
		pageTitle = pageURL
	}

	query := `insert into watched_pages (user_id, url, title) values (?, ?, ?)
	on conflict (user_id, url) do update set title = excluded.title`

	_, err := d.db.ExecContext(ctx, query, userID, pageURL, pageTitle)

	return err
}

// RemoveWatchedPage deletes the page only when it belongs to userID.
func (d *Database) RemoveWatchedPage(ctx context.Context, userID int64, pageID int64) (bool, error) {
	query := "delete from watched_pages where id = ? and user_id = ?"

	res, err := d.db.ExecContext(ctx, query, pageID, userID)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}

	return affected > 0, nil
}

func (d *Database) GetUserWatchedPages(ctx context.Context, userID int64) ([]domain.WatchedPage, error) {
	query := "select id, url, title from watched_pages where user_id = ? order by id"

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "GetUserWatchedPages")
		}
	}()

	var pages []domain.WatchedPage
	for rows.Next() {
		var p domain.WatchedPage
		if err = rows.Scan(&p.ID, &p.URL, &p.Title); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		p.UserID = userID
		pages = append(pages, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return pages, nil
}

// GetHourWatchedPages returns pages of users whose digest hour is hourUTC.
// Users without settings get their digest at hour 0.
func (d *Database) GetHourWatchedPages(ctx context.Context, hourUTC int64) ([]domain.WatchedPage, error) {
	var query string

	if hourUTC == 0 {
		query = `select p.id, p.user_id, p.url, p.title
		from watched_pages as p
		left join user_settings as us
		on us.user_id = p.user_id
		where us.user_id is null
		or us.digest_hour_utc = ?
		order by p.user_id, p.id`
	} else {
		query = `select p.id, p.user_id, p.url, p.title
		from watched_pages as p
		join user_settings as us
		on us.user_id = p.user_id
		where us.digest_hour_utc = ?
		order by p.user_id, p.id`
	}

	rows, err := d.db.QueryContext(ctx, query, hourUTC)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"hourUTC", hourUTC,
				"operation", "GetHourWatchedPages")
		}
	}()

	var pages []domain.WatchedPage
	for rows.Next() {
		var p domain.WatchedPage
		if err = rows.Scan(&p.ID, &p.UserID, &p.URL, &p.Title); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		pages = append(pages, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return pages, nil
}

func (d *Database) GetUserSettingsWithDefault(
	ctx context.Context,
	userID int64,
) (*domain.UserSettings, error) {
	query := `select user_id, language, digest_hour_utc
	from user_settings
	where user_id = ?`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "GetUserSettingsWithDefault")
		}
	}()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		return &domain.UserSettings{
			UserID:        userID,
			Language:      prompt.DefaultLanguage,
			DigestHourUTC: 0,
		}, nil
	}

	var us domain.UserSettings
	if err = rows.Scan(&us.UserID, &us.Language, &us.DigestHourUTC); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &us, nil
}

func (d *Database) UpsertUserSettings(ctx context.Context, userSettings *domain.UserSettings) error {
	language := strings.TrimSpace(userSettings.Language)
	if language == "" {
		language = prompt.DefaultLanguage
	}

	query := `insert into user_settings (user_id, language, digest_hour_utc)
	values (?, ?, ?)
	on conflict (user_id) do update
	set language = excluded.language,
	digest_hour_utc = excluded.digest_hour_utc`

	_, err := d.db.ExecContext(ctx, query, userSettings.UserID, language, userSettings.DigestHourUTC)

	return err
}
