// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/abelzeko/garden-bot/internal/entities"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// DueEntry is a calendar entry together with the chat its owner can be reached in
type DueEntry struct {
	UserID string
	ChatID int64
	Entry  entities.CalendarEntry
}

// GardenRepository defines the interface for garden persistence operations
type GardenRepository interface {
	SaveUser(user entities.UserProfile) error
	GetUser(userID string) (entities.UserProfile, error)

	SavePlant(plant entities.PlantProfile) error
	GetPlant(plantID string) (entities.PlantProfile, error)
	SearchPlants(term string) ([]entities.PlantProfile, error)
	AttachPlantImage(plantID, imageURL string) error

	UpsertEntry(userID string, entry entities.CalendarEntry) error
	DeleteEntry(userID, entryID string) error
	ListEntries(userID string) ([]entities.CalendarEntry, error)
	EntriesOn(date string) ([]DueEntry, error)

	Close() error
}

// SQLiteGardenRepository implements GardenRepository using SQLite
type SQLiteGardenRepository struct {
	db     *sql.DB
	DBPath string
	logger *zap.Logger
}

// NewSQLiteGardenRepository creates and initializes a new SQLite repository
func NewSQLiteGardenRepository(dbPath string, logger *zap.Logger) (*SQLiteGardenRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dbPath == "" {
		dbPath = filepath.Join("data", "garden.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Info("Opening database", zap.String("path", dbPath))
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		chat_id INTEGER NOT NULL DEFAULT 0,
		city TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		latitude REAL,
		longitude REAL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS plants (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		sun_preference TEXT NOT NULL DEFAULT '',
		watering_preference TEXT NOT NULL DEFAULT '',
		general_information TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		user_query TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_plants_normalized_name ON plants(normalized_name);
	CREATE TABLE IF NOT EXISTS calendar_entries (
		user_id TEXT NOT NULL,
		plant_id TEXT NOT NULL,
		date TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		plant_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, plant_id)
	);
	CREATE INDEX IF NOT EXISTS idx_calendar_entries_date ON calendar_entries(date);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteGardenRepository{
		db:     db,
		DBPath: dbPath,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (r *SQLiteGardenRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveUser inserts or replaces a user's chat and location
func (r *SQLiteGardenRepository) SaveUser(user entities.UserProfile) error {
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now()
	}
	_, err := r.db.Exec(`
		INSERT INTO users(id, chat_id, city, country, latitude, longitude, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		chat_id=excluded.chat_id,
		city=excluded.city,
		country=excluded.country,
		latitude=excluded.latitude,
		longitude=excluded.longitude,
		updated_at=excluded.updated_at`,
		user.ID,
		user.ChatID,
		user.Location.City,
		user.Location.Country,
		nullFloat(user.Location.Latitude),
		nullFloat(user.Location.Longitude),
		user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	return nil
}

// GetUser returns a user's profile or ErrNotFound
func (r *SQLiteGardenRepository) GetUser(userID string) (entities.UserProfile, error) {
	var (
		user      entities.UserProfile
		lat, lon  sql.NullFloat64
		updatedAt int64
	)
	err := r.db.QueryRow(`
		SELECT id, chat_id, city, country, latitude, longitude, updated_at
		FROM users WHERE id = ?`, userID).Scan(
		&user.ID,
		&user.ChatID,
		&user.Location.City,
		&user.Location.Country,
		&lat,
		&lon,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.UserProfile{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return entities.UserProfile{}, fmt.Errorf("failed to query user %s: %w", userID, err)
	}

	user.Location.Latitude = floatPtr(lat)
	user.Location.Longitude = floatPtr(lon)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return user, nil
}

// SavePlant inserts or updates a plant profile in the shared catalogue
func (r *SQLiteGardenRepository) SavePlant(p entities.PlantProfile) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	_, err := r.db.Exec(`
		INSERT INTO plants(id, display_name, normalized_name, sun_preference, watering_preference,
			general_information, image_url, user_query, created_by, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		display_name=excluded.display_name,
		normalized_name=excluded.normalized_name,
		sun_preference=excluded.sun_preference,
		watering_preference=excluded.watering_preference,
		general_information=excluded.general_information,
		image_url=excluded.image_url,
		updated_at=excluded.updated_at`,
		p.ID,
		p.DisplayName,
		p.NormalizedName,
		p.SunPreference,
		p.WateringPreference,
		p.GeneralInformation,
		p.ImageURL,
		p.UserQuery,
		p.CreatedBy,
		p.CreatedAt.Unix(),
		p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save plant %s: %w", p.ID, err)
	}
	return nil
}

const plantColumns = `id, display_name, normalized_name, sun_preference, watering_preference,
	general_information, image_url, user_query, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlant(row rowScanner) (entities.PlantProfile, error) {
	var (
		p                    entities.PlantProfile
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&p.ID,
		&p.DisplayName,
		&p.NormalizedName,
		&p.SunPreference,
		&p.WateringPreference,
		&p.GeneralInformation,
		&p.ImageURL,
		&p.UserQuery,
		&p.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return entities.PlantProfile{}, err
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return p, nil
}

// GetPlant returns a plant by id or ErrNotFound
func (r *SQLiteGardenRepository) GetPlant(plantID string) (entities.PlantProfile, error) {
	p, err := scanPlant(r.db.QueryRow(`SELECT `+plantColumns+` FROM plants WHERE id = ?`, plantID))
	if errors.Is(err, sql.ErrNoRows) {
		return entities.PlantProfile{}, fmt.Errorf("plant %s: %w", plantID, ErrNotFound)
	}
	if err != nil {
		return entities.PlantProfile{}, fmt.Errorf("failed to query plant %s: %w", plantID, err)
	}
	return p, nil
}

// SearchPlants returns plants whose normalized name starts with term, ordered by name
func (r *SQLiteGardenRepository) SearchPlants(term string) ([]entities.PlantProfile, error) {
	term = entities.NormalizeName(term)
	if term == "" {
		return nil, nil
	}

	rows, err := r.db.Query(`
		SELECT `+plantColumns+`
		FROM plants
		WHERE substr(normalized_name, 1, length(?)) = ?
		ORDER BY normalized_name`, term, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search plants for %q: %w", term, err)
	}
	defer rows.Close()

	var result []entities.PlantProfile
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// AttachPlantImage sets the image of a plant that has none yet
func (r *SQLiteGardenRepository) AttachPlantImage(plantID, imageURL string) error {
	res, err := r.db.Exec(`
		UPDATE plants SET image_url = ?, updated_at = ?
		WHERE id = ? AND image_url = ''`, imageURL, time.Now().Unix(), plantID)
	if err != nil {
		return fmt.Errorf("failed to attach image to plant %s: %w", plantID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.Debug("Plant image not attached", zap.String("plant_id", plantID))
	}
	return nil
}

// UpsertEntry writes a calendar entry keyed by its id within the user's calendar
func (r *SQLiteGardenRepository) UpsertEntry(userID string, entry entities.CalendarEntry) error {
	plantJSON, err := json.Marshal(entry.Plant)
	if err != nil {
		return fmt.Errorf("failed to encode plant snapshot: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err = r.db.Exec(`
		INSERT INTO calendar_entries(user_id, plant_id, date, title, plant_json, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, plant_id) DO UPDATE SET
		date=excluded.date,
		title=excluded.title,
		plant_json=excluded.plant_json`,
		userID,
		entry.ID,
		entry.Date,
		entry.Title,
		string(plantJSON),
		entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save calendar entry %s for %s: %w", entry.ID, userID, err)
	}

	r.logger.Debug("Saved calendar entry",
		zap.String("user_id", userID), zap.String("entry_id", entry.ID), zap.String("date", entry.Date))
	return nil
}

// DeleteEntry removes a calendar entry, returning ErrNotFound if it did not exist
func (r *SQLiteGardenRepository) DeleteEntry(userID, entryID string) error {
	res, err := r.db.Exec(`DELETE FROM calendar_entries WHERE user_id = ? AND plant_id = ?`, userID, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete calendar entry %s for %s: %w", entryID, userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("calendar entry %s: %w", entryID, ErrNotFound)
	}
	return nil
}

// ListEntries returns every calendar entry of a user in insertion order.
// Stored dates are returned verbatim; validating them is up to the reader.
func (r *SQLiteGardenRepository) ListEntries(userID string) ([]entities.CalendarEntry, error) {
	rows, err := r.db.Query(`
		SELECT plant_id, date, title, plant_json, created_at
		FROM calendar_entries
		WHERE user_id = ?
		ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar for %s: %w", userID, err)
	}
	defer rows.Close()

	var result []entities.CalendarEntry
	for rows.Next() {
		var (
			e         entities.CalendarEntry
			plantJSON string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.Title, &plantJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(plantJSON), &e.Plant); err != nil {
			r.logger.Warn("Skipping calendar entry with unreadable plant snapshot",
				zap.String("user_id", userID), zap.String("entry_id", e.ID), zap.Error(err))
			continue
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// EntriesOn returns entries of all users scheduled on date, with their chat ids
func (r *SQLiteGardenRepository) EntriesOn(date string) ([]DueEntry, error) {
	rows, err := r.db.Query(`
		SELECT c.user_id, u.chat_id, c.plant_id, c.date, c.title, c.plant_json, c.created_at
		FROM calendar_entries c
		JOIN users u ON u.id = c.user_id
		WHERE c.date = ? AND u.chat_id != 0
		ORDER BY c.user_id, c.rowid`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries on %s: %w", date, err)
	}
	defer rows.Close()

	var result []DueEntry
	for rows.Next() {
		var (
			d         DueEntry
			plantJSON string
			createdAt int64
		)
		if err := rows.Scan(&d.UserID, &d.ChatID, &d.Entry.ID, &d.Entry.Date, &d.Entry.Title, &plantJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(plantJSON), &d.Entry.Plant); err != nil {
			r.logger.Warn("Skipping due entry with unreadable plant snapshot",
				zap.String("user_id", d.UserID), zap.String("entry_id", d.Entry.ID), zap.Error(err))
			continue
		}
		d.Entry.CreatedAt = time.Unix(createdAt, 0)
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
