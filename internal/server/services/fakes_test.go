package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/dbx"
	"github.com/deepesh-reddy/MegaBackend/internal/server/config"
	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
	usersrepo "github.com/deepesh-reddy/MegaBackend/internal/server/repositories/users"
)

// memUsers is an in-memory users.Repository. Every method holds the lock
// for its whole body, which makes each call a single atomic update.
type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	calls []string

	findErr   error
	createErr error
	updateErr error
	reloadErr error

	// createBlocks makes Create wait for its context to end.
	createBlocks bool
}

var _ usersrepo.Repository = (*memUsers)(nil)

func newMemUsers(seed ...*models.User) *memUsers {
	m := &memUsers{byID: map[string]*models.User{}}
	for _, u := range seed {
		c := *u
		m.byID[u.ID] = &c
	}
	return m
}

func (m *memUsers) record(name string) {
	m.calls = append(m.calls, name)
}

func (m *memUsers) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func project(u *models.User, p models.Projection) *models.User {
	c := *u
	if p != models.WithSecrets {
		c.PasswordHash = ""
		c.RefreshToken = ""
	}
	return &c
}

func (m *memUsers) FindByEmailOrUsername(_ context.Context, email, username string, p models.Projection) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindByEmailOrUsername")
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.byID {
		if (email != "" && u.Email == email) || (username != "" && strings.EqualFold(u.Username, username)) {
			return project(u, p), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string, p models.Projection) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindByID")
	if m.reloadErr != nil {
		return nil, m.reloadErr
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return project(u, p), nil
}

func (m *memUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.createBlocks {
		<-ctx.Done()
		m.mu.Lock()
		m.record("Create")
		m.mu.Unlock()
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create")
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, u := range m.byID {
		if u.Email == user.Email || strings.EqualFold(u.Username, user.Username) {
			return nil, common.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = fmt.Sprintf("u-%d", len(m.byID)+1)
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if user.WatchHistory == nil {
		user.WatchHistory = []string{}
	}
	c := *user
	m.byID[user.ID] = &c
	return user, nil
}

func (m *memUsers) UpdateRefreshToken(_ context.Context, id, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateRefreshToken")
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken = value
	return nil
}

func (m *memUsers) ReplaceRefreshToken(_ context.Context, id, current, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ReplaceRefreshToken")
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.byID[id]
	if !ok || u.RefreshToken == "" || u.RefreshToken != current {
		return common.ErrorNotFound
	}
	u.RefreshToken = next
	return nil
}

func (m *memUsers) UpdateProfileFields(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateProfileFields")
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.Email != nil {
		for oid, o := range m.byID {
			if oid != id && o.Email == *upd.Email {
				return nil, common.ErrConflict
			}
		}
		u.Email = *upd.Email
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.CoverImage != nil {
		u.CoverImage = *upd.CoverImage
	}
	return project(u, models.Sanitized), nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdatePassword")
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) ChannelProfile(_ context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ChannelProfile")
	for _, u := range m.byID {
		if strings.EqualFold(u.Username, username) {
			return &models.ChannelProfile{ID: u.ID, Username: u.Username, FullName: u.FullName, Avatar: u.Avatar}, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) WatchHistory(_ context.Context, userID string) ([]models.WatchedVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("WatchHistory")
	u, ok := m.byID[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := []models.WatchedVideo{}
	for _, id := range u.WatchHistory {
		out = append(out, models.WatchedVideo{ID: id})
	}
	return out, nil
}

func (m *memUsers) stored(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.byID[id]
	return &c
}

// fakeStore is an in-memory assets.Store.
type fakeStore struct {
	mu      sync.Mutex
	n       int
	uploads []string
	deleted []string
	failOn  map[string]error
	delErr  error
	objects map[string]bool

	// slow paths finish storing only after the upload context ends.
	slow map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{failOn: map[string]error{}, objects: map[string]bool{}, slow: map[string]bool{}}
}

func (f *fakeStore) Upload(ctx context.Context, localPath string) (models.AssetReference, error) {
	f.mu.Lock()
	slow := f.slow[localPath]
	f.mu.Unlock()
	if slow {
		<-ctx.Done()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, localPath)
	if err := f.failOn[localPath]; err != nil {
		return models.AssetReference{}, err
	}
	f.n++
	id := fmt.Sprintf("users/obj-%d", f.n)
	f.objects[id] = true
	return models.AssetReference{ExternalID: id, URL: "http://cdn.local/media/" + id}, nil
}

func (f *fakeStore) Delete(_ context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, externalID)
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.objects, externalID)
	return nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads) + len(f.deleted)
}

// plainHasher stands in for bcrypt so tests stay fast.
type plainHasher struct{ err error }

func (h plainHasher) Hash(p string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + p, nil
}

func (h plainHasher) Verify(p, hash string) bool { return hash == "hashed:"+p }

// fakeRepoManager returns the same repository for every DBTX.
type fakeRepoManager struct{ u *memUsers }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.u }

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:            "access-k",
		RefreshTokenSecret:           "refresh-k",
		AccessTokenValidityDuration:  time.Minute,
		RefreshTokenValidityDuration: time.Hour,
		UploadTimeout:                time.Second,
		StoreTimeout:                 time.Second,
	}
}

func seedUser() *models.User {
	return &models.User{
		ID:           "u-1",
		Username:     "janedoe",
		Email:        "jane@x.com",
		FullName:     "Jane Doe",
		PasswordHash: "hashed:Secret123!",
		Avatar:       models.AssetReference{ExternalID: "users/old-avatar", URL: "http://cdn.local/media/users/old-avatar"},
		WatchHistory: []string{"v-1", "v-2"},
	}
}
