// Package gormstorage implements the storage.Backend interface on top of any
// GORM dialector. Components are rows keyed by (entity, kind) with a JSON payload.
package gormstorage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entity is one row per entity handle.
type Entity struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time
}

func (*Entity) TableName() string {
	return "entities"
}

// Component holds one component of one entity.
type Component struct {
	EntityID  uint64         `gorm:"primaryKey;autoIncrement:false"`
	Kind      string         `gorm:"primaryKey;size:64"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (*Component) TableName() string {
	return "components"
}

// Models lists the tables this backend migrates.
var Models = []any{&Entity{}, &Component{}}

// Backend implements storage.Backend with a GORM connection.
type Backend struct {
	db *gorm.DB
}

// New creates a new GORM storage backend.
func New(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying sql connection.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Reset removes every entity and component.
func (b *Backend) Reset() error {
	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Component{}).Error; err != nil {
			return fmt.Errorf("clear components: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Entity{}).Error; err != nil {
			return fmt.Errorf("clear entities: %w", err)
		}
		return nil
	})
}

func (b *Backend) CreateEntity() (core.Entity, error) {
	row := Entity{}
	if err := b.db.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("create entity: %w", err)
	}
	return core.Entity(row.ID), nil
}

func (b *Backend) HasComponent(e core.Entity, kind core.ComponentKind) bool {
	var count int64
	err := b.db.Model(&Component{}).
		Where("entity_id = ? AND kind = ?", uint64(e), string(kind)).
		Count(&count).Error
	return err == nil && count > 0
}

func (b *Backend) AddComponentData(e core.Entity, kind core.ComponentKind, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	if !b.hasEntity(e) {
		return fmt.Errorf("add %s to entity %d: %w", kind, e, storage.ErrNoEntity)
	}

	row := Component{EntityID: uint64(e), Kind: string(kind), Data: datatypes.JSON(raw)}
	err = b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("add %s to entity %d: %w", kind, e, err)
	}
	return nil
}

func (b *Backend) SetComponentData(e core.Entity, kind core.ComponentKind, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	if !b.hasEntity(e) {
		return fmt.Errorf("set %s on entity %d: %w", kind, e, storage.ErrNoEntity)
	}

	res := b.db.Model(&Component{}).
		Where("entity_id = ? AND kind = ?", uint64(e), string(kind)).
		Updates(map[string]any{"data": datatypes.JSON(raw), "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("set %s on entity %d: %w", kind, e, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set %s on entity %d: %w", kind, e, storage.ErrNoComponent)
	}
	return nil
}

func (b *Backend) GetComponentData(e core.Entity, kind core.ComponentKind, out any) error {
	var row Component
	err := b.db.Where("entity_id = ? AND kind = ?", uint64(e), string(kind)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNoComponent
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(row.Data, out)
}

func (b *Backend) hasEntity(e core.Entity) bool {
	var count int64
	err := b.db.Model(&Entity{}).Where("id = ?", uint64(e)).Count(&count).Error
	return err == nil && count > 0
}
