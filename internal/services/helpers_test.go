package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/cartas-cosmicas/internal/events"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
	"github.com/tbourn/cartas-cosmicas/internal/session"
)

// newServiceDB opens a migrated file-backed SQLite database. A single pooled
// connection keeps concurrent tests free of SQLITE_BUSY.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "letters.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *testClock { return &testClock{t: t.UTC()} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t.UTC()
	c.mu.Unlock()
}

func testCodec(t *testing.T) *session.Codec {
	t.Helper()
	c, err := session.NewCodec([]byte("0123456789abcdef0123456789abcdef"), 0)
	require.NoError(t, err)
	return c
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []events.LetterEvent
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, ev events.LetterEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type fixture struct {
	db       *gorm.DB
	clock    *testClock
	letters  *LetterService
	access   *AccessService
	payments *PaymentService
	pub      *recordingPublisher
}

func newFixture(t *testing.T, t0 time.Time) *fixture {
	t.Helper()
	db := newServiceDB(t)
	clock := newClock(t0)
	pub := &recordingPublisher{}

	ls := NewLetterService(db)
	ls.Now = clock.Now
	ls.BcryptCost = 4

	as := NewAccessService(db, testCodec(t), pub)
	as.Now = clock.Now

	ps := NewPaymentService(db, pub)
	ps.Now = clock.Now

	return &fixture{db: db, clock: clock, letters: ls, access: as, payments: ps, pub: pub}
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func validInput(release time.Time) CreateLetterInput {
	return CreateLetterInput{
		Title:       "Para você",
		Content:     "Abra quando sentir saudade.",
		ReleaseDate: release,
	}
}
