package main

import (
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/database"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err == nil {
			defer sqlDB.Close()
		}

		logger := pkglog.L()
		logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")
		return nil
	},
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := database.New(&database.Config{
		Driver:          cfg.Driver,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		DBName:          cfg.DBName,
		SSLMode:         cfg.SSLMode,
		FilePath:        cfg.FilePath,
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		LogLevel:        cfg.LogLevel,
	})
	if err != nil {
		return nil, err
	}

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		return nil, err
	}
	return db, nil
}
