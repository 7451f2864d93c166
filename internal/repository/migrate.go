package repository

import (
	"textenger/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate 迁移全部表结构
// 三张消息表共用 model.Message
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Profile{},
		&model.Room{},
		&model.Channel{},
		&model.RoomMember{},
		&model.UserSettings{},
	); err != nil {
		return err
	}
	// 消息表改了表名，按关系排序时会找不到 profiles 的解析结果，这里跳过关系
	conf := *db.Config
	conf.IgnoreRelationshipsWhenMigrating = true
	tx := db.Session(&gorm.Session{})
	tx.Config = &conf
	for _, table := range MessageTables {
		if err := tx.Table(table).AutoMigrate(&model.Message{}); err != nil {
			return err
		}
	}
	return nil
}
