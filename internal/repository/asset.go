// asset.go — справочник обслуживаемых объектов (таблицы sites и generators).
// Ядру нужны только проверка существования и снимок отображаемого имени
// при создании записи обслуживания; CRUD объектов — вне этого модуля.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
)

// AssetRepository — доступ на чтение к справочнику объектов.
type AssetRepository interface {
	// LookupName возвращает отображаемое имя объекта.
	// ErrNotFound — объект не существует.
	LookupName(ctx context.Context, assetType model.AssetType, id string) (string, error)
	// Exists проверяет существование объекта.
	Exists(ctx context.Context, assetType model.AssetType, id string) (bool, error)
}

// assetRepo — реализация AssetRepository.
type assetRepo struct {
	db DBTX
}

// NewAssetRepository создаёт репозиторий справочника объектов.
func NewAssetRepository(db DBTX) AssetRepository {
	return &assetRepo{db: db}
}

func (r *assetRepo) LookupName(ctx context.Context, assetType model.AssetType, id string) (string, error) {
	table, err := assetTable(assetType)
	if err != nil {
		return "", err
	}

	var name string
	err = r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT name FROM %s WHERE id = $1`, table), id,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка поиска объекта: %w", err)
	}
	return name, nil
}

func (r *assetRepo) Exists(ctx context.Context, assetType model.AssetType, id string) (bool, error) {
	_, err := r.LookupName(ctx, assetType, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// assetTable сопоставляет тип объекта с таблицей справочника.
// Имя таблицы берётся из фиксированного набора, не из пользовательского ввода.
func assetTable(t model.AssetType) (string, error) {
	switch t {
	case model.AssetTypeSite:
		return "sites", nil
	case model.AssetTypeGenerator:
		return "generators", nil
	default:
		return "", fmt.Errorf("недопустимый тип объекта: %q", t)
	}
}
