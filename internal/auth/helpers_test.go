package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
)

type fakeUser struct {
	subject  Subject
	password string
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]fakeUser
}

func newFakeUsers(users ...fakeUser) *fakeUsers {
	f := &fakeUsers{users: map[string]fakeUser{}}
	for _, u := range users {
		f.users[u.subject.Email] = u
	}
	return f
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(email)]
	if !ok || u.password != password {
		return Subject{}, ErrInvalidCredentials
	}
	return u.subject, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id uint) (Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.subject.ID == id {
			return u.subject, nil
		}
	}
	return Subject{}, gorm.ErrRecordNotFound
}

func (f *fakeUsers) remove(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, email)
}

var alice = fakeUser{subject: Subject{ID: 1, Email: "user@example.com"}, password: "Str0ngPass1!"}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}

// fakeClock avança um segundo a cada leitura, para ordenar registros sem sleep.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	db      *gorm.DB
	users   *fakeUsers
	issuer  *Issuer
	store   *RefreshStore
	service *Service
	clock   *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	users := newFakeUsers(alice)
	issuer, err := NewIssuer(testAccessSecret, testRefreshSecret, NewEmailRoleResolver([]string{"admin@example.com"}))
	require.NoError(t, err)

	clock := newFakeClock()
	issuer.now = clock.Now
	store := NewRefreshStore(db, issuer, users, 5, nil)
	store.now = clock.Now

	return &testEnv{
		db:      db,
		users:   users,
		issuer:  issuer,
		store:   store,
		service: NewService(users, issuer, store, nil),
		clock:   clock,
	}
}

func (e *testEnv) login(t *testing.T) TokenPair {
	t.Helper()
	pair, err := e.service.Login(context.Background(), alice.subject.Email, alice.password, ClientInfo{IP: "127.0.0.1"})
	require.NoError(t, err)
	return pair
}

func (e *testEnv) activeCount(t *testing.T, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).Count(&n).Error)
	return n
}
