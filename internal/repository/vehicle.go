package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/langchou/carva/internal/models"
)

// VehicleRepository 车辆数据仓库
type VehicleRepository struct {
	db *DB
}

// NewVehicleRepository 创建车辆仓库
func NewVehicleRepository(db *DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

const vehicleColumns = `id, user_id, smartcar_vehicle_id, make, model, year,
	access_token, refresh_token, token_expiration, status, created_at, updated_at`

func scanVehicle(row pgx.Row) (*models.Vehicle, error) {
	var (
		v            models.Vehicle
		accessToken  *string
		refreshToken *string
		expiration   *time.Time
		status       string
	)
	err := row.Scan(
		&v.ID,
		&v.UserID,
		&v.SmartcarVehicleID,
		&v.Make,
		&v.Model,
		&v.Year,
		&accessToken,
		&refreshToken,
		&expiration,
		&status,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 两个 token 都存在才视为有凭证
	if accessToken != nil && refreshToken != nil && *accessToken != "" && *refreshToken != "" {
		v.Credential = &models.Credential{
			AccessToken:  *accessToken,
			RefreshToken: *refreshToken,
			Expiration:   expiration,
		}
	}
	v.Status = models.ParseVehicleStatus(status)
	return &v, nil
}

// NewVehicle 新车辆的写入参数
type NewVehicle struct {
	UserID            string
	SmartcarVehicleID string
	Info              *models.VehicleInfo
	Credential        *models.Credential
}

// Create 创建车辆
// 同一 smartcar_vehicle_id 并发创建时退化为更新凭证，不会产生重复记录；
// 返回值 created 表示是否真正插入了新行
func (r *VehicleRepository) Create(ctx context.Context, nv NewVehicle) (vehicle *models.Vehicle, created bool, err error) {
	query := `
		INSERT INTO vehicles (id, user_id, smartcar_vehicle_id, make, model, year,
			access_token, refresh_token, token_expiration, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (smartcar_vehicle_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiration = EXCLUDED.token_expiration,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + vehicleColumns + `, (xmax = 0) AS inserted`

	var (
		vmake, vmodel   *string
		year            *int
		access, refresh *string
		expiration      *time.Time
		status          = models.VehicleStatusPending
	)
	if nv.Info != nil {
		vmake, vmodel, year = nv.Info.Make, nv.Info.Model, nv.Info.Year
	}
	if nv.Credential != nil {
		access = &nv.Credential.AccessToken
		refresh = &nv.Credential.RefreshToken
		expiration = nv.Credential.Expiration
		status = models.VehicleStatusActive
	}

	now := time.Now()
	row := r.db.Pool.QueryRow(ctx, query,
		uuid.NewString(),
		nv.UserID,
		nv.SmartcarVehicleID,
		vmake,
		vmodel,
		year,
		access,
		refresh,
		expiration,
		string(status),
		now,
		now,
	)

	vehicle, err = scanVehicle(insertedRow{row: row, inserted: &created})
	if err != nil {
		return nil, false, fmt.Errorf("insert vehicle: %w", err)
	}
	return vehicle, created, nil
}

// insertedRow 在车辆列之后额外扫描 inserted 标志
type insertedRow struct {
	row      pgx.Row
	inserted *bool
}

func (r insertedRow) Scan(dest ...any) error {
	return r.row.Scan(append(dest, r.inserted)...)
}

// GetByID 通过 ID 获取车辆
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`
	v, err := scanVehicle(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get vehicle by id: %w", notFound(err))
	}
	return v, nil
}

// GetBySmartcarID 通过 Smartcar 车辆 ID 获取车辆
func (r *VehicleRepository) GetBySmartcarID(ctx context.Context, smartcarID string) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE smartcar_vehicle_id = $1`
	v, err := scanVehicle(r.db.Pool.QueryRow(ctx, query, smartcarID))
	if err != nil {
		return nil, fmt.Errorf("get vehicle by smartcar_vehicle_id: %w", notFound(err))
	}
	return v, nil
}

// ListByUserID 获取用户的所有车辆，按创建时间排序
func (r *VehicleRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE user_id = $1 ORDER BY created_at, id`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicles: %w", err)
	}

	return vehicles, nil
}

// SetCredential 覆盖车辆凭证，状态置为 active
func (r *VehicleRepository) SetCredential(ctx context.Context, id string, cred models.Credential) (*models.Vehicle, error) {
	query := `
		UPDATE vehicles SET access_token = $1, refresh_token = $2, token_expiration = $3,
			status = $4, updated_at = $5
		WHERE id = $6
		RETURNING ` + vehicleColumns
	v, err := scanVehicle(r.db.Pool.QueryRow(ctx, query,
		cred.AccessToken,
		cred.RefreshToken,
		cred.Expiration,
		string(models.VehicleStatusActive),
		time.Now(),
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("update vehicle credential: %w", notFound(err))
	}
	return v, nil
}

// UpdateStatus 更新车辆连接状态
func (r *VehicleRepository) UpdateStatus(ctx context.Context, id string, status models.VehicleStatus) (*models.Vehicle, error) {
	query := `UPDATE vehicles SET status = $1, updated_at = $2 WHERE id = $3 RETURNING ` + vehicleColumns
	v, err := scanVehicle(r.db.Pool.QueryRow(ctx, query, string(status), time.Now(), id))
	if err != nil {
		return nil, fmt.Errorf("update vehicle status: %w", notFound(err))
	}
	return v, nil
}

// Delete 删除车辆
func (r *VehicleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete vehicle: %w", ErrNotFound)
	}
	return nil
}
