package main

import (
	"database/sql"
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rbroggi/souqly/internal/config"
	log "github.com/sirupsen/logrus"
)

var (
	down          = flag.Bool("down", false, "run migration down")
	configPath    = flag.String("config", "", "path of an optional YAML configuration file")
	migrationsDir = flag.String("dir", "db/migrations", "directory holding the migrations, relative to the working directory")
)

func main() {
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("error loading config")
	}
	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		log.WithError(err).Fatal("error opening db connection")
	}
	defer db.Close()
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.WithError(err).Fatal("error invoking withInstance")
	}
	wd, err := os.Getwd()
	if err != nil {
		log.WithError(err).Fatal("error getting working-directory")
	}
	source := "file://" + filepath.Join(wd, *migrationsDir)
	log.WithField("source", source).Info("using migrations")
	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		log.WithError(err).Fatal("NewWithDatabaseInstance error")
	}
	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("schema already up to date")
		return
	}
	if err != nil {
		log.WithError(err).WithField("down", *down).Fatal("error migrating")
	}
	log.WithField("down", *down).Info("migration applied")
}
