package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Room is the durable entity: one row per room, never deleted.
type Room struct {
	RoomID    string `gorm:"primaryKey;size:36"`
	Code      string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Room) TableName() string { return "rooms" }

type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to postgres and migrates the rooms table.
func OpenPostgres(dsn string) (*GormStore, error) {
	return openGorm(postgres.Open(dsn))
}

// OpenSQLite opens (or creates) a sqlite database and migrates the rooms
// table. An in-memory DSN is used by tests.
func OpenSQLite(path string) (*GormStore, error) {
	return openGorm(sqlite.Open(path))
}

func openGorm(dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Room{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (string, error) {
	var room Room
	err := s.db.WithContext(ctx).First(&room, "room_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return room.Code, nil
}

func (s *GormStore) Create(ctx context.Context, id, document string) error {
	err := s.db.WithContext(ctx).Create(&Room{RoomID: id, Code: document}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	return err
}

func (s *GormStore) Upsert(ctx context.Context, id, document string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "updated_at"}),
	}).Create(&Room{RoomID: id, Code: document}).Error
}

func (s *GormStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Room{}).Where("room_id = ?", id).Count(&count).Error
	return count > 0, err
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
