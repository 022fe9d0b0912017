package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/KaramelBytes/trialdash/internal/clean"
	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects the database a download is stored in.
type DatabaseConfig struct {
	Driver string
	// SQLitePath is the database file for DriverSQLite.
	SQLitePath string
	// PostgresDSN is a libpq connection string for DriverPostgres.
	PostgresDSN string
	// Columns names the trial attributes copied into typed fields.
	Columns clean.Columns
}

// Export is one stored download.
type Export struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Source    string    `gorm:"not null" json:"source"`
	Rows      int       `gorm:"not null" json:"rows"`
	Columns   string    `gorm:"not null" json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}

// TrialRow is one exported trial. Data holds the full row as a JSON object
// keyed by column name, with null for absent cells.
type TrialRow struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	ExportID   uint    `gorm:"index;not null" json:"export_id"`
	Position   int     `gorm:"not null" json:"position"`
	Status     string  `gorm:"index" json:"status"`
	Phases     string  `gorm:"index" json:"phases"`
	Country    string  `gorm:"index" json:"country"`
	Enrollment float64 `json:"enrollment"`
	StartDate  string  `json:"start_date"`
	StartMonth string  `gorm:"index" json:"start_month"`
	Data       string  `gorm:"type:text" json:"data"`
}

// Database stores downloads through gorm.
type Database struct {
	log logrus.FieldLogger
	cfg DatabaseConfig
	db  *gorm.DB
}

var _ Sink = (*Database)(nil)

// NewDatabase creates a database sink. Start must be called before Write.
func NewDatabase(log logrus.FieldLogger, cfg DatabaseConfig) *Database {
	if cfg.Columns == (clean.Columns{}) {
		cfg.Columns = clean.DefaultColumns()
	}
	return &Database{
		log: log.WithField("component", "export-db"),
		cfg: cfg,
	}
}

// Driver returns the configured driver name.
func (d *Database) Driver() string { return d.cfg.Driver }

// Start opens the connection and runs migrations.
func (d *Database) Start(ctx context.Context) error {
	var dialector gorm.Dialector
	switch d.cfg.Driver {
	case DriverSQLite:
		if d.cfg.SQLitePath == "" {
			return errors.New("sqlite path is required")
		}
		dialector = sqlite.Open(d.cfg.SQLitePath)
	case DriverPostgres:
		if d.cfg.PostgresDSN == "" {
			return errors.New("postgres dsn is required")
		}
		dialector = postgres.Open(d.cfg.PostgresDSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", d.cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&Export{}, &TrialRow{}); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	d.db = db

	d.log.WithField("driver", d.cfg.Driver).Info("Database connected")
	return nil
}

// Stop closes the underlying connection.
func (d *Database) Stop() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}
	return sqlDB.Close()
}

// Write stores t as a new export in a single transaction.
func (d *Database) Write(ctx context.Context, t *dataset.Table) error {
	if d.db == nil {
		return errors.New("database not started")
	}
	cols, err := json.Marshal(t.Columns)
	if err != nil {
		return fmt.Errorf("encoding columns: %w", err)
	}
	exp := &Export{Source: t.Name, Rows: t.Len(), Columns: string(cols)}

	rows := make([]*TrialRow, t.Len())
	for i := range t.Rows {
		if rows[i], err = d.trialRow(t, i); err != nil {
			return err
		}
	}

	const batchSize = 100
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(exp).Error; err != nil {
			return fmt.Errorf("creating export: %w", err)
		}
		for _, r := range rows {
			r.ExportID = exp.ID
		}
		for i := 0; i < len(rows); i += batchSize {
			end := min(i+batchSize, len(rows))
			if err := tx.CreateInBatches(rows[i:end], end-i).Error; err != nil {
				return fmt.Errorf("inserting trial rows: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.log.WithFields(logrus.Fields{
		"export_id": exp.ID,
		"rows":      len(rows),
	}).Info("Export stored")
	return nil
}

func (d *Database) trialRow(t *dataset.Table, i int) (*TrialRow, error) {
	c := d.cfg.Columns
	data := make(map[string]*string, len(t.Columns))
	for j, name := range t.Columns {
		f := t.Rows[i][j]
		if f.Null {
			data[name] = nil
			continue
		}
		text := f.Text
		data[name] = &text
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding row %d: %w", i, err)
	}
	enroll, _ := strconv.ParseFloat(t.Value(i, c.Enrollment).Text, 64)
	return &TrialRow{
		Position:   i,
		Status:     t.Value(i, c.Status).Text,
		Phases:     t.Value(i, c.Phases).Text,
		Country:    t.Value(i, c.Country).Text,
		Enrollment: enroll,
		StartDate:  t.Value(i, c.StartDate).Text,
		StartMonth: t.Value(i, StartMonthColumn).Text,
		Data:       string(b),
	}, nil
}

// Exports lists stored exports, newest first.
func (d *Database) Exports(ctx context.Context) ([]Export, error) {
	var out []Export
	if err := d.db.WithContext(ctx).Order("id desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	return out, nil
}

// Trials returns the rows of one export in download order.
func (d *Database) Trials(ctx context.Context, exportID uint) ([]TrialRow, error) {
	var out []TrialRow
	if err := d.db.WithContext(ctx).
		Where("export_id = ?", exportID).
		Order("position").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing trial rows: %w", err)
	}
	return out, nil
}
