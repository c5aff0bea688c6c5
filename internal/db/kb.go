package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/rsclarke/aiconnect/internal/models"
)

const kbStoreColumns = "id, kbuid, name, x_platform_id, xp_ref, created_by, edited_by, created_on, edited_on"

func CreateKBStore(ctx context.Context, d *sql.DB, kbuid, name, platformID, xpRef string, createdBy *string) (int64, error) {
	now := time.Now().Unix()
	result, err := d.ExecContext(ctx,
		"INSERT INTO kbstore (kbuid, name, x_platform_id, xp_ref, created_by, edited_by, created_on, edited_on) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		kbuid, name, platformID, xpRef, createdBy, createdBy, now, now,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func GetKBStoreByUID(ctx context.Context, d *sql.DB, kbuid string) (*models.KBStore, error) {
	row := d.QueryRowContext(ctx, "SELECT "+kbStoreColumns+" FROM kbstore WHERE kbuid = ?", kbuid)
	var s models.KBStore
	err := row.Scan(&s.ID, &s.KBUID, &s.Name, &s.XPlatformID, &s.XPRef, &s.CreatedBy, &s.EditedBy, &s.CreatedOn, &s.EditedOn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func ListKBStores(ctx context.Context, d *sql.DB) ([]models.KBStore, error) {
	rows, err := d.QueryContext(ctx, "SELECT "+kbStoreColumns+" FROM kbstore ORDER BY created_on DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []models.KBStore
	for rows.Next() {
		var s models.KBStore
		if err := rows.Scan(&s.ID, &s.KBUID, &s.Name, &s.XPlatformID, &s.XPRef, &s.CreatedBy, &s.EditedBy, &s.CreatedOn, &s.EditedOn); err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

// DeleteKBStore removes a knowledge base together with its files and assistants.
func DeleteKBStore(ctx context.Context, d *sql.DB, kbuid string) error {
	_, err := d.ExecContext(ctx, "DELETE FROM kbstore WHERE kbuid = ?", kbuid)
	return err
}

func CreateKBFile(ctx context.Context, d *sql.DB, storeID int64, fileName, fileURL, xpRef string, createdBy *string) (int64, error) {
	result, err := d.ExecContext(ctx,
		"INSERT INTO kbfile (kbstore_id, file_name, file_url, xp_ref, created_by, created_on) VALUES (?, ?, ?, ?, ?, ?)",
		storeID, fileName, fileURL, xpRef, createdBy, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func GetKBFile(ctx context.Context, d *sql.DB, id int64) (*models.KBFile, error) {
	row := d.QueryRowContext(ctx,
		"SELECT id, kbstore_id, file_name, file_url, xp_ref, created_by, created_on FROM kbfile WHERE id = ?", id)
	var f models.KBFile
	err := row.Scan(&f.ID, &f.KBStoreID, &f.FileName, &f.FileURL, &f.XPRef, &f.CreatedBy, &f.CreatedOn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func ListKBFiles(ctx context.Context, d *sql.DB, storeID int64) ([]models.KBFile, error) {
	rows, err := d.QueryContext(ctx,
		"SELECT id, kbstore_id, file_name, file_url, xp_ref, created_by, created_on FROM kbfile WHERE kbstore_id = ? ORDER BY id",
		storeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.KBFile
	for rows.Next() {
		var f models.KBFile
		if err := rows.Scan(&f.ID, &f.KBStoreID, &f.FileName, &f.FileURL, &f.XPRef, &f.CreatedBy, &f.CreatedOn); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func DeleteKBFile(ctx context.Context, d *sql.DB, id int64) error {
	_, err := d.ExecContext(ctx, "DELETE FROM kbfile WHERE id = ?", id)
	return err
}

const kbAssistantColumns = "id, kbstore_id, code, name, instructions, xp_ref, created_by, edited_by, created_on, edited_on"

func scanKBAssistant(row interface{ Scan(...any) error }) (*models.KBAssistant, error) {
	var a models.KBAssistant
	err := row.Scan(&a.ID, &a.KBStoreID, &a.Code, &a.Name, &a.Instructions, &a.XPRef, &a.CreatedBy, &a.EditedBy, &a.CreatedOn, &a.EditedOn)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func CreateKBAssistant(ctx context.Context, d *sql.DB, storeID int64, code, name, instructions, xpRef string, createdBy *string) (int64, error) {
	now := time.Now().Unix()
	result, err := d.ExecContext(ctx,
		"INSERT INTO kbassistant (kbstore_id, code, name, instructions, xp_ref, created_by, edited_by, created_on, edited_on) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		storeID, code, name, instructions, xpRef, createdBy, createdBy, now, now,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func GetKBAssistantByCode(ctx context.Context, d *sql.DB, code string) (*models.KBAssistant, error) {
	a, err := scanKBAssistant(d.QueryRowContext(ctx, "SELECT "+kbAssistantColumns+" FROM kbassistant WHERE code = ?", code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func ListKBAssistants(ctx context.Context, d *sql.DB, storeID int64) ([]models.KBAssistant, error) {
	rows, err := d.QueryContext(ctx,
		"SELECT "+kbAssistantColumns+" FROM kbassistant WHERE kbstore_id = ? ORDER BY id", storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assistants []models.KBAssistant
	for rows.Next() {
		a, err := scanKBAssistant(rows)
		if err != nil {
			return nil, err
		}
		assistants = append(assistants, *a)
	}
	return assistants, rows.Err()
}

func UpdateKBAssistant(ctx context.Context, d *sql.DB, code, name, instructions string, editedBy *string) error {
	_, err := d.ExecContext(ctx,
		"UPDATE kbassistant SET name = ?, instructions = ?, edited_by = ?, edited_on = ? WHERE code = ?",
		name, instructions, editedBy, time.Now().Unix(), code,
	)
	return err
}

func DeleteKBAssistant(ctx context.Context, d *sql.DB, code string) error {
	_, err := d.ExecContext(ctx, "DELETE FROM kbassistant WHERE code = ?", code)
	return err
}
