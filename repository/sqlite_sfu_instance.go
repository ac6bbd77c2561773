package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/crypto"
)

type sqliteSFUInstanceRepo struct {
	db  *sql.DB
	key []byte
}

// NewSQLiteSFUInstanceRepo builds the repo with the AES-256 key used to seal
// instance credentials at rest.
func NewSQLiteSFUInstanceRepo(db *sql.DB, key []byte) SFUInstanceRepository {
	return &sqliteSFUInstanceRepo{db: db, key: key}
}

func (r *sqliteSFUInstanceRepo) seal(inst *models.SFUInstance) (apiKey, apiSecret string, err error) {
	apiKey, err = crypto.Encrypt(inst.APIKey, r.key)
	if err != nil {
		return "", "", fmt.Errorf("encrypt api key: %w", err)
	}
	apiSecret, err = crypto.Encrypt(inst.APISecret, r.key)
	if err != nil {
		return "", "", fmt.Errorf("encrypt api secret: %w", err)
	}
	return apiKey, apiSecret, nil
}

func (r *sqliteSFUInstanceRepo) open(inst *models.SFUInstance) error {
	apiKey, err := crypto.Decrypt(inst.APIKey, r.key)
	if err != nil {
		return fmt.Errorf("decrypt api key: %w", err)
	}
	apiSecret, err := crypto.Decrypt(inst.APISecret, r.key)
	if err != nil {
		return fmt.Errorf("decrypt api secret: %w", err)
	}
	inst.APIKey, inst.APISecret = apiKey, apiSecret
	return nil
}

func scanSFUInstance(row interface{ Scan(...any) error }) (*models.SFUInstance, error) {
	inst := &models.SFUInstance{}
	err := row.Scan(
		&inst.ID, &inst.URL, &inst.APIKey, &inst.APISecret,
		&inst.IsPlatformManaged, &inst.ServerCount, &inst.MaxServers,
		&inst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

const sfuInstanceColumns = `id, url, api_key, api_secret, is_platform_managed, server_count, max_servers, created_at`

func (r *sqliteSFUInstanceRepo) Create(ctx context.Context, inst *models.SFUInstance) error {
	apiKey, apiSecret, err := r.seal(inst)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sfu_instances (id, url, api_key, api_secret, is_platform_managed, max_servers)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query,
		inst.URL, apiKey, apiSecret, inst.IsPlatformManaged, inst.MaxServers,
	).Scan(&inst.ID, &inst.CreatedAt)
	if err != nil {
		return fmt.Errorf("create sfu instance: %w", err)
	}
	return nil
}

func (r *sqliteSFUInstanceRepo) GetByID(ctx context.Context, id string) (*models.SFUInstance, error) {
	inst, err := scanSFUInstance(r.db.QueryRowContext(ctx,
		`SELECT `+sfuInstanceColumns+` FROM sfu_instances WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sfu instance: %w", err)
	}
	if err := r.open(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (r *sqliteSFUInstanceRepo) GetByServerID(ctx context.Context, serverID string) (*models.SFUInstance, error) {
	query := `
		SELECT ` + prefixedSFUColumns("i") + `
		FROM sfu_instances i
		JOIN servers s ON s.sfu_instance_id = i.id
		WHERE s.id = ?`

	inst, err := scanSFUInstance(r.db.QueryRowContext(ctx, query, serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get server sfu instance: %w", err)
	}
	if err := r.open(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (r *sqliteSFUInstanceRepo) List(ctx context.Context) ([]models.SFUInstance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sfuInstanceColumns+` FROM sfu_instances ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sfu instances: %w", err)
	}
	defer rows.Close()

	var instances []models.SFUInstance
	for rows.Next() {
		inst, err := scanSFUInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sfu instance row: %w", err)
		}
		if err := r.open(inst); err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}

func (r *sqliteSFUInstanceRepo) LeastLoadedPlatformInstance(ctx context.Context) (*models.SFUInstance, error) {
	query := `
		SELECT ` + sfuInstanceColumns + ` FROM sfu_instances
		WHERE is_platform_managed = 1
		  AND (max_servers = 0 OR server_count < max_servers)
		ORDER BY server_count, created_at
		LIMIT 1`

	inst, err := scanSFUInstance(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no platform voice capacity available", pkg.ErrCapacityExceeded)
	}
	if err != nil {
		return nil, fmt.Errorf("pick platform sfu instance: %w", err)
	}
	if err := r.open(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (r *sqliteSFUInstanceRepo) Update(ctx context.Context, inst *models.SFUInstance) error {
	apiKey, apiSecret, err := r.seal(inst)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE sfu_instances SET url = ?, api_key = ?, api_secret = ?, max_servers = ?
		 WHERE id = ?`,
		inst.URL, apiKey, apiSecret, inst.MaxServers, inst.ID)
	if err != nil {
		return fmt.Errorf("update sfu instance: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteSFUInstanceRepo) Delete(ctx context.Context, id, dstInstanceID string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var dst any
		if dstInstanceID != "" {
			dst = dstInstanceID
		}
		moved, err := tx.ExecContext(ctx,
			`UPDATE servers SET sfu_instance_id = ? WHERE sfu_instance_id = ?`, dst, id)
		if err != nil {
			return fmt.Errorf("reassign servers: %w", err)
		}
		if dstInstanceID != "" {
			count, err := moved.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE sfu_instances SET server_count = server_count + ? WHERE id = ?`,
				count, dstInstanceID); err != nil {
				return fmt.Errorf("bump destination server count: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM sfu_instances WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete sfu instance: %w", err)
		}
		return requireAffected(result)
	})
}

func (r *sqliteSFUInstanceRepo) AssignServer(ctx context.Context, serverID string, instanceID *string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var prev *string
		err := tx.QueryRowContext(ctx,
			`SELECT sfu_instance_id FROM servers WHERE id = ?`, serverID).Scan(&prev)
		if errors.Is(err, sql.ErrNoRows) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get server assignment: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE servers SET sfu_instance_id = ? WHERE id = ?`,
			instanceID, serverID); err != nil {
			return fmt.Errorf("assign server: %w", err)
		}
		if prev != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE sfu_instances SET server_count = server_count - 1
				 WHERE id = ? AND server_count > 0`, *prev); err != nil {
				return fmt.Errorf("decrement server count: %w", err)
			}
		}
		if instanceID != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE sfu_instances SET server_count = server_count + 1 WHERE id = ?`,
				*instanceID); err != nil {
				return fmt.Errorf("increment server count: %w", err)
			}
		}
		return nil
	})
}

func prefixedSFUColumns(alias string) string {
	return alias + `.id, ` + alias + `.url, ` + alias + `.api_key, ` +
		alias + `.api_secret, ` + alias + `.is_platform_managed, ` +
		alias + `.server_count, ` + alias + `.max_servers, ` + alias + `.created_at`
}
