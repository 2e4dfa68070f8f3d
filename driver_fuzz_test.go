package purelite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Custom logger that logs ALL statements for debugging stuck workers
type queryLogger struct{ t *testing.T }

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface { return l }
func (l *queryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.t.Logf("[INFO] "+msg, data...)
}
func (l *queryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.t.Logf("[WARN] "+msg, data...)
}
func (l *queryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.t.Logf("[ERROR] "+msg, data...)
}
func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	sql, rows := fc()
	elapsed := time.Since(begin)
	if err != nil {
		l.t.Logf("[%.3fms] [rows:%d] [ERROR: %v] %s", float64(elapsed.Nanoseconds())/1e6, rows, err, sql)
	} else {
		l.t.Logf("[%.3fms] [rows:%d] %s", float64(elapsed.Nanoseconds())/1e6, rows, sql)
	}
}

// Model for stress testing
type Record struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Name      string `gorm:"index" json:"name"`
	Value     int    `json:"value"`
	Data      string `json:"data"`
}

func stress(ctx context.Context, rng *rand.Rand, db *gorm.DB, weights []float64) error {
	actions := []string{
		"insert",
		"update",
		"delete",
		"select",
		"bulk",
		"checkpoint",
	}
	action := PickRand(rng, actions, weights)
	switch action {
	case "insert":
		now := time.Now().Format(time.RFC3339)
		record := Record{
			CreatedAt: now,
			UpdatedAt: now,
			Name:      fmt.Sprintf("record_%d", rng.Int63()),
			Value:     rng.Intn(10000),
			Data:      StringRand(rng, 100),
		}
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error { return tx.Create(&record).Error })
	case "update":
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var record Record
			if err := tx.First(&record, rng.Intn(100000)+1).Error; err != nil {
				return err
			}
			record.Value = rng.Intn(10000)
			record.Data = StringRand(rng, 100)
			record.UpdatedAt = time.Now().Format(time.RFC3339)
			return tx.Save(&record).Error
		})
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return nil
	case "delete":
		id := rng.Intn(100000)
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Delete(&Record{}, id)
			return result.Error
		})
	case "select":
		ids := make([]int, 10)
		for i := range ids {
			ids[i] = rng.Intn(100000) + 1
		}
		var records []Record
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Find(&records, ids).Error
		})
	case "bulk":
		count := 100 // Insert 100 records in a transaction
		records := make([]Record, count)
		now := time.Now().Format(time.RFC3339)
		for i := 0; i < count; i++ {
			records[i] = Record{
				CreatedAt: now,
				UpdatedAt: now,
				Name:      fmt.Sprintf("bulk_%d_%d", time.Now().UnixNano(), i),
				Value:     rng.Intn(10000),
				Data:      StringRand(rng, 100),
			}
		}
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&records).Error
		})
	case "checkpoint":
		modes := []string{"TRUNCATE", "RESTART", "FULL", "PASSIVE"}
		mode := modes[rng.Intn(len(modes))]
		sql := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode)
		return db.Exec(sql).Error
	default:
		return nil
	}
}

func FuzzStress(f *testing.F) {
	requireLibLoaded(f)
	f.Add(int64(1), uint(4), uint(8), uint(4), uint(2), uint(60), uint(5), uint(2), uint(1), uint(4), uint(1), uint(1))
	f.Add(int64(42), uint(2), uint(16), uint(1), uint(1), uint(0), uint(3), uint(3), uint(3), uint(3), uint(0), uint(1))
	f.Fuzz(run)
}

func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	run(t, 1, 4, 16, 4, 2, 60, 5, 2, 1, 4, 1, 1)
}

func run(
	t *testing.T,
	seed int64,
	workers uint,
	iterations uint,
	maxOpenConnections uint,
	maxIdleConnections uint,
	maxLifetimeSeconds uint,
	insertW uint,
	updateW uint,
	deleteW uint,
	selectW uint,
	bulkW uint,
	checkpointW uint,
) {
	requireLibLoaded(t)

	weights := []float64{
		float64(insertW),
		float64(updateW),
		float64(deleteW),
		float64(selectW),
		float64(bulkW),
		float64(checkpointW),
	}
	workers = min(workers, 8)
	iterations = min(iterations, 32)
	if maxOpenConnections == 0 {
		maxOpenConnections = 1
	}

	workerSeeds := make([]int64, 0)
	rng := rand.New(rand.NewSource(seed))
	workerRngs := make([]*rand.Rand, 0)
	for i := 0; i < int(workers); i++ {
		workerSeed := rng.Int63()
		workerSeeds = append(workerSeeds, workerSeed)
		workerRngs = append(workerRngs, rand.New(rand.NewSource(workerSeed)))
	}
	t.Logf(
		"start stress test: workers=%v iterations=%v maxOpenConnections=%v maxIdleConnections=%v maxLifetimeSeconds=%v seed=%v weights=%+v workerSeeds=%+v",
		workers, iterations, maxOpenConnections, maxIdleConnections, maxLifetimeSeconds, seed, weights, workerSeeds,
	)

	dbPath := filepath.Join(t.TempDir(), "local.db")
	dsn := dbPath + "?_busy_timeout=5000"

	dialector := sqlite.Dialector{DriverName: "purelite", DSN: dsn}

	// verboseConfig := &gorm.Config{Logger: &queryLogger{t: t}}
	// db, err := gorm.Open(dialector, verboseConfig)
	silentConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	db, err := gorm.Open(dialector, silentConfig)
	require.Nil(t, err)

	sqlDB, err := db.DB()
	require.Nil(t, err)
	defer sqlDB.Close()

	sqlDB.SetMaxOpenConns(int(maxOpenConnections))
	sqlDB.SetMaxIdleConns(int(maxIdleConnections))
	sqlDB.SetConnMaxLifetime(time.Second * time.Duration(maxLifetimeSeconds))

	// Set WAL mode
	err = db.Exec("PRAGMA journal_mode=WAL").Error
	require.Nil(t, err)

	err = db.AutoMigrate(&Record{})
	require.Nil(t, err)

	t.Logf("Database initialized at %s", dbPath)
	var wg sync.WaitGroup
	for i := 0; i < int(workers); i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := 0; s < int(iterations); s++ {
				// contention errors are part of the exercise; log and move on
				if err := stress(context.Background(), workerRngs[i], db, weights); err != nil {
					t.Logf("worker#%v: query=%v: %v", i, s, err)
				}
			}
			t.Logf("worker#%v: completed", i)
		}()
	}
	wg.Wait()

	var count int64
	require.Nil(t, db.Model(&Record{}).Count(&count).Error)
	t.Logf("final record count: %d", count)
}

func PickRand[T any](rng *rand.Rand, values []T, weights []float64) T {
	sum := 0.0
	for _, w := range weights {
		sum += math.Max(math.Abs(w), 0.0001)
	}
	value := rng.Float64() * sum
	for i := range values {
		value -= math.Max(math.Abs(weights[i]), 0.0001)
		if value < 0 {
			return values[i]
		}
	}
	return values[len(values)-1]
}

func StringRand(rng *rand.Rand, n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}
