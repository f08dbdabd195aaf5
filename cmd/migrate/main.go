package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"remindbot/internal/config"
)

func main() {
	_ = godotenv.Load()

	if err := migrateCommand().Execute(); err != nil {
		fmt.Println("[ERROR]", err)
		os.Exit(1)
	}
}

func migrateCommand() *cobra.Command {
	var configPath string
	var sourcePath string

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Run database schema migrations",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "/etc/remindbot/config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&sourcePath, "source", "migrations", "path to migration files")

	newMigrate := func() (*migrate.Migrate, error) {
		conf, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		conf.ApplyEnv()
		return migrate.New("file://"+sourcePath, "mysql://"+conf.MySQL.DSN())
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			m, err := newMigrate()
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migration",
		RunE: func(_ *cobra.Command, _ []string) error {
			m, err := newMigrate()
			if err != nil {
				return err
			}
			if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}
			fmt.Println("migration reverted")
			return nil
		},
	})

	return root
}
