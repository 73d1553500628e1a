// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package history

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/tipscore/common/log"
	"github.com/gorse-io/tipscore/model"
	"github.com/gorse-io/tipscore/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"moul.io/zapgorm2"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ScoreRecord is the evaluation of one period in one run.
type ScoreRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"type:varchar(36);index"`
	Period    string `gorm:"type:varchar(64)"`
	Location  string `gorm:"type:varchar(1024)"`
	Model     string `gorm:"type:varchar(1024)"`
	Precision float64
	Recall    float64
	F1        float64
	Accuracy  float64
	Support   int
	Rows      int
	CreatedAt time.Time
}

// NewScoreRecord builds the record of a period from its score.
func NewScoreRecord(runID, period, location, modelPath string, score model.Score, rows int) ScoreRecord {
	return ScoreRecord{
		RunID:     runID,
		Period:    period,
		Location:  log.RedactURL(location),
		Model:     log.RedactURL(modelPath),
		Precision: score.Precision,
		Recall:    score.Recall,
		F1:        score.F1,
		Accuracy:  score.Accuracy,
		Support:   score.Support,
		Rows:      rows,
	}
}

// Run summarizes the records of a run.
type Run struct {
	RunID   string
	Periods int
	MeanF1  float64
}

type Database interface {
	Close() error
	Init() error
	Insert(ctx context.Context, records []ScoreRecord) error
	// List records of a run in insertion order.
	List(ctx context.Context, runID string) ([]ScoreRecord, error)
	// Runs lists runs in the order they were recorded.
	Runs(ctx context.Context) ([]Run, error)
}

// Series returns the score series of records in their order.
func Series(records []ScoreRecord) *model.ScoreSeries {
	series := model.NewScoreSeries()
	for _, record := range records {
		series.Set(record.Period, record.F1)
	}
	return series
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(attribute.String("db.system", "mysql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		// connect to database
		database := new(SQLDatabase)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		// append parameters
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		gormConfig := storage.NewGORMConfig(tablePrefix)
		gormConfig.Logger = &zapgorm2.Logger{
			ZapLogger:                 log.Logger(),
			LogLevel:                  logger.Warn,
			SlowThreshold:             10 * time.Second,
			SkipCallerLookup:          false,
			IgnoreRecordNotFoundError: false,
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, gormConfig)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.NotSupportedf("history store %s", log.RedactURL(path))
}

// SQLDatabase stores score records in a SQL database through GORM.
type SQLDatabase struct {
	storage.TablePrefix
	client *sql.DB
	gormDB *gorm.DB
}

func (d *SQLDatabase) Close() error {
	return errors.Trace(d.client.Close())
}

func (d *SQLDatabase) Init() error {
	return errors.Trace(d.gormDB.AutoMigrate(&ScoreRecord{}))
}

func (d *SQLDatabase) Insert(ctx context.Context, records []ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}
	return errors.Trace(d.gormDB.WithContext(ctx).Table(d.ScoresTable()).Create(&records).Error)
}

func (d *SQLDatabase) List(ctx context.Context, runID string) ([]ScoreRecord, error) {
	var records []ScoreRecord
	err := d.gormDB.WithContext(ctx).Table(d.ScoresTable()).
		Where("run_id = ?", runID).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(records) == 0 {
		return nil, errors.NotFoundf("run %s", runID)
	}
	return records, nil
}

func (d *SQLDatabase) Runs(ctx context.Context) ([]Run, error) {
	var runs []Run
	err := d.gormDB.WithContext(ctx).Table(d.ScoresTable()).
		Select("run_id, COUNT(*) AS periods, AVG(f1) AS mean_f1").
		Group("run_id").
		Order("MIN(id)").
		Scan(&runs).Error
	return runs, errors.Trace(err)
}
