package settings

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"seller-portal/internal/auth"
	"seller-portal/internal/logger"
	"seller-portal/internal/models"
)

const secret = "settings-test-secret"

func setupStore(t *testing.T) *Store {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = bunDB.NewCreateTable().Model((*models.AdminSetting)(nil)).Exec(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	return &Store{Bun: bunDB}
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func strPtr(s string) *string { return &s }

func TestStore_PutAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	v, err := store.Get(ctx, models.SettingPublicationID)
	require.NoError(t, err)
	assert.Nil(t, v)

	at := time.Date(2024, 6, 7, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, models.SettingPublicationID, strPtr("gid://shopify/Publication/1"), "ops-1", at))
	require.NoError(t, store.Put(ctx, models.SettingPublicationID, strPtr("gid://shopify/Publication/2"), "ops-2", at.Add(time.Hour)))

	v, err = store.Get(ctx, models.SettingPublicationID)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Publication/2", *v)

	var row models.AdminSetting
	require.NoError(t, store.Bun.NewSelect().Model(&row).Where("? = ?", bun.Ident("key"), models.SettingPublicationID).Scan(ctx))
	assert.Equal(t, "ops-2", row.UpdatedBy)

	require.NoError(t, store.Put(ctx, models.SettingPublicationID, nil, "ops-1", at))
	v, err = store.Get(ctx, models.SettingPublicationID)
	require.NoError(t, err)
	assert.Nil(t, v)
}

type recordingNotifier struct{ keys []string }

func (n *recordingNotifier) Notify(ctx context.Context, key string) error {
	n.keys = append(n.keys, key)
	return nil
}

func TestPublicationSettings_Set(t *testing.T) {
	store := setupStore(t)
	notifier := &recordingNotifier{}
	p := NewPublicationSettings(store, 0, notifier, logger.Discard())
	ctx := context.Background()

	v, err := p.Set(ctx, strPtr("  gid://shopify/Publication/9  "), "ops-1")
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Publication/9", *v)
	assert.Equal(t, []string{models.SettingPublicationID}, notifier.keys)

	stored, err := store.Get(ctx, models.SettingPublicationID)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Publication/9", *stored)

	v, err = p.Set(ctx, strPtr("   "), "ops-1")
	require.NoError(t, err)
	assert.Nil(t, v)
	got, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = p.Set(ctx, strPtr(strings.Repeat("x", MaxPublicationID+1)), "ops-1")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPublicationSettings_InvalidateReloads(t *testing.T) {
	store := setupStore(t)
	p := NewPublicationSettings(store, 0, nil, logger.Discard())
	ctx := context.Background()

	_, err := p.Set(ctx, strPtr("first"), "ops-1")
	require.NoError(t, err)

	// another instance writes directly
	require.NoError(t, store.Put(ctx, models.SettingPublicationID, strPtr("second"), "ops-2", time.Now()))
	v, _ := p.Get(ctx)
	assert.Equal(t, "first", *v)

	p.Invalidate("some.other.key")
	v, _ = p.Get(ctx)
	assert.Equal(t, "first", *v)

	p.Invalidate(models.SettingPublicationID)
	v, _ = p.Get(ctx)
	assert.Equal(t, "second", *v)
}

func TestWatch_InvalidatesAcrossInstances(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	ready, err := Watch(ctx, client, logger.Discard(), func(key string) { got <- key })
	require.NoError(t, err)
	<-ready

	n := &RedisNotifier{Client: client}
	require.NoError(t, n.Notify(ctx, models.SettingPublicationID))

	select {
	case key := <-got:
		assert.Equal(t, models.SettingPublicationID, key)
	case <-time.After(2 * time.Second):
		t.Fatal("invalidation not delivered")
	}
}

func TestHandler(t *testing.T) {
	log := logger.Discard()
	p := NewPublicationSettings(setupStore(t), time.Minute, nil, log)
	verifier, err := auth.NewHMACVerifier(secret)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))
		NewHandler(p, log).RegisterRoutes(r)
	})

	call := func(method, tokUser string, admin bool, body string) *httptest.ResponseRecorder {
		tok, err := auth.IssueHMACToken(secret, tokUser, admin, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(method, "/api/admin/settings/publication-id", bytes.NewBufferString(body))
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := call(http.MethodGet, "m1", false, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(http.MethodGet, "ops-1", true, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"publicationId":null}`, rec.Body.String())

	rec = call(http.MethodPut, "ops-1", true, `{"publicationId":" gid://shopify/Publication/3 "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"publicationId":"gid://shopify/Publication/3"}`, rec.Body.String())

	rec = call(http.MethodGet, "ops-1", true, "")
	assert.JSONEq(t, `{"ok":true,"publicationId":"gid://shopify/Publication/3"}`, rec.Body.String())

	rec = call(http.MethodPut, "ops-1", true, `{"publicationId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long, _ := json.Marshal(map[string]string{"publicationId": strings.Repeat("p", MaxPublicationID+1)})
	rec = call(http.MethodPut, "ops-1", true, string(long))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"publicationId"`)
}
