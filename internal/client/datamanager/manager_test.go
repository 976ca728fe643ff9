package datamanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/entitysync/internal/client/api"
	"github.com/iudanet/entitysync/internal/client/local"
	"github.com/iudanet/entitysync/internal/client/memory"
	"github.com/iudanet/entitysync/internal/client/repository"
	"github.com/iudanet/entitysync/internal/client/storage"
	"github.com/iudanet/entitysync/internal/client/storage/memstore"
	"github.com/iudanet/entitysync/internal/models"
	pkgapi "github.com/iudanet/entitysync/pkg/api"
)

var testTypes = []string{"TestEntity", "Parent", "Child", "Note"}

type testEnv struct {
	manager *Manager
	local   *local.Provider
	memory  *memory.Provider
	repo    *repository.Store
}

type envOption func(*Config, *[]Option)

func withPolicy(p PushPolicy, retries uint64) envOption {
	return func(c *Config, _ *[]Option) {
		c.PushPolicy = p
		c.PushRetries = retries
	}
}

func withManagerOptions(opts ...Option) envOption {
	return func(_ *Config, o *[]Option) {
		*o = append(*o, opts...)
	}
}

func newTestEnv(t *testing.T, remote api.Remote, online bool, envOpts ...envOption) *testEnv {
	t.Helper()

	repo := repository.New(memstore.New())
	ids := local.NewIDAllocatorWithClock(func() time.Time { return time.UnixMilli(1_000) })
	localProvider := local.NewProvider(repo, ids, nil)
	memoryProvider := memory.NewProvider()

	cfg := Config{Types: testTypes, RetryBackoff: time.Millisecond}
	opts := []Option{WithOnline(online)}
	for _, o := range envOpts {
		o(&cfg, &opts)
	}

	m, err := New(cfg, localProvider, memoryProvider, remote, opts...)
	require.NoError(t, err)

	// Хранилище инициализируется напрямую, чтобы тесты могли стартовать offline
	require.NoError(t, localProvider.Init(context.Background(), testTypes))

	return &testEnv{manager: m, local: localProvider, memory: memoryProvider, repo: repo}
}

func (e *testEnv) list(t *testing.T, name string) []models.Entity {
	t.Helper()
	list, err := e.repo.GetList(context.Background(), name)
	require.NoError(t, err)
	return list
}

func ids(list []models.Entity) []int64 {
	out := make([]int64, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID())
	}
	return out
}

func TestNew(t *testing.T) {
	repo := repository.New(memstore.New())
	lp := local.NewProvider(repo, nil, nil)

	_, err := New(Config{}, lp, memory.NewProvider(), newFakeServer())
	assert.Error(t, err)

	_, err = New(Config{Types: []string{"Bad|Type"}}, lp, memory.NewProvider(), newFakeServer())
	assert.Error(t, err)

	m, err := New(Config{Types: []string{"B", "A"}}, lp, memory.NewProvider(), newFakeServer())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, m.Types())
	assert.False(t, m.IsOnline())

	m.SetOnline(true)
	assert.True(t, m.IsOnline())
}

func TestParsePushPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    PushPolicy
		wantErr bool
	}{
		{in: "", want: PushPolicyRetain},
		{in: "retain", want: PushPolicyRetain},
		{in: "DROP", want: PushPolicyDrop},
		{in: "sometimes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePushPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) PushPolicy {
	p, err := ParsePushPolicy(s)
	require.NoError(t, err)
	return p
}

func TestManager_Init(t *testing.T) {
	ctx := context.Background()

	newManager := func(online bool) (*Manager, *repository.Store) {
		repo := repository.New(memstore.New())
		m, err := New(Config{Types: testTypes}, local.NewProvider(repo, nil, nil), memory.NewProvider(), newFakeServer(), WithOnline(online))
		require.NoError(t, err)
		return m, repo
	}

	t.Run("offline without local store is fatal", func(t *testing.T) {
		m, _ := newManager(false)
		assert.ErrorIs(t, m.Init(ctx), ErrBootstrapOffline)
	})

	t.Run("online creates stores", func(t *testing.T) {
		m, repo := newManager(true)
		require.NoError(t, m.Init(ctx))

		ok, err := repo.IsInitialised(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		// Повторная инициализация offline допустима: хранилище уже есть
		m.SetOnline(false)
		require.NoError(t, m.Init(ctx))
	})
}

// онлайн сохранение новой сущности
func TestManager_SaveEntityOnline(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	env := newTestEnv(t, server, true)

	res, err := env.manager.SaveEntity(ctx, "TestEntity", models.Entity{"ID": int64(0), "Name": "Name 1"})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, int64(0), res.ClientID)
	assert.Equal(t, int64(101), res.ID)

	list := env.list(t, "TestEntity")
	require.Len(t, list, 1)
	assert.Greater(t, list[0].ID(), int64(0))
	assert.Equal(t, "Name 1", list[0]["Name"])

	assert.Empty(t, env.list(t, storage.UnsavedStore("TestEntity")))

	cached, ok := env.manager.GetEntity("TestEntity", 101)
	require.True(t, ok)
	assert.Equal(t, "Name 1", cached["Name"])
	assert.Equal(t, 1, server.count("TestEntity"))
}

// то же сохранение offline
func TestManager_SaveEntityOffline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.RemoteMock{}, false)

	res, err := env.manager.SaveEntity(ctx, "TestEntity", models.Entity{"ID": int64(0), "Name": "Name 1"})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, int64(-1_000), res.ID)

	list := env.list(t, "TestEntity")
	require.Len(t, list, 1)
	assert.Less(t, list[0].ID(), int64(0))

	unsaved := env.list(t, storage.UnsavedStore("TestEntity"))
	require.Len(t, unsaved, 1)
	assert.Equal(t, list[0], unsaved[0])

	assert.Len(t, env.manager.GetEntities("TestEntity"), 1)
}

func TestManager_SaveEntityUnreachable(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	server.setReachable(false)
	env := newTestEnv(t, server, true)

	res, err := env.manager.SaveEntity(ctx, "TestEntity", models.Entity{"Name": "queued"})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Less(t, res.ID, int64(0))
	assert.Len(t, env.list(t, storage.UnsavedStore("TestEntity")), 1)
}

// онлайн удаление подтвержденной сущности
func TestManager_DeleteEntityOnline(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	env := newTestEnv(t, server, true)

	saved, err := env.manager.SaveEntity(ctx, "TestEntity", models.Entity{"ID": int64(0), "Name": "Name 1"})
	require.NoError(t, err)

	res, err := env.manager.DeleteEntity(ctx, "TestEntity", saved.ID)
	require.NoError(t, err)
	assert.True(t, res.OK())

	assert.Empty(t, env.list(t, "TestEntity"))
	assert.Empty(t, env.list(t, storage.DeletedStore("TestEntity")))
	assert.Empty(t, env.manager.GetEntities("TestEntity"))
	assert.Equal(t, 0, server.count("TestEntity"))
}

// offline удаление серверной сущности
func TestManager_DeleteEntityOffline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.RemoteMock{}, false)

	require.NoError(t, env.local.UpdateLocalData(ctx, "TestEntity", models.Append{Entities: []models.Entity{{"ID": int64(5)}}}))
	require.NoError(t, env.manager.LoadFromLocal(ctx))

	res, err := env.manager.DeleteEntity(ctx, "TestEntity", 5)
	require.NoError(t, err)
	assert.True(t, res.OK())

	assert.Empty(t, env.list(t, "TestEntity"))
	assert.Equal(t, []int64{5}, ids(env.list(t, storage.DeletedStore("TestEntity"))))
	assert.Empty(t, env.manager.GetEntities("TestEntity"))
}

func TestManager_DeleteLocalOnlyEntity(t *testing.T) {
	ctx := context.Background()
	// Сервер не должен вызываться: RemoteMock без функций паникует
	env := newTestEnv(t, &api.RemoteMock{}, false)

	saved, err := env.manager.SaveEntity(ctx, "TestEntity", models.Entity{"Name": "draft"})
	require.NoError(t, err)

	env.manager.SetOnline(true)
	res, err := env.manager.DeleteEntity(ctx, "TestEntity", saved.ID)
	require.NoError(t, err)
	assert.True(t, res.OK())

	assert.Empty(t, env.list(t, "TestEntity"))
	assert.Empty(t, env.list(t, storage.UnsavedStore("TestEntity")))
	assert.Empty(t, env.list(t, storage.DeletedStore("TestEntity")))
}

// отправка одной несохраненной сущности и одного удаления
func TestManager_UpdateServerWithLocalChanges(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	server.put("TestEntity", models.Entity{"ID": int64(5), "Name": "server"})
	env := newTestEnv(t, server, false)

	require.NoError(t, env.local.UpdateLocalData(ctx, "TestEntity", models.Append{Entities: []models.Entity{{"ID": int64(5), "Name": "server"}}}))
	_, err := env.manager.SaveEntity(ctx, "TestEntity", models.Entity{"Name": "offline"})
	require.NoError(t, err)
	_, err = env.manager.DeleteEntity(ctx, "TestEntity", 5)
	require.NoError(t, err)

	env.manager.SetOnline(true)
	res, err := env.manager.UpdateServerWithLocalChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PushedEntities)
	assert.Equal(t, 1, res.PushedDeletes)

	for _, typ := range testTypes {
		assert.Empty(t, env.list(t, storage.UnsavedStore(typ)), typ)
		assert.Empty(t, env.list(t, storage.DeletedStore(typ)), typ)
	}

	// Локальная запись с отрицательным ID заменена записью с серверным ID
	list := env.list(t, "TestEntity")
	for _, e := range list {
		assert.Greater(t, e.ID(), int64(0))
	}
	require.Len(t, list, 1)
	assert.Equal(t, "offline", list[0]["Name"])

	_, onServer := server.get("TestEntity", 5)
	assert.False(t, onServer)
	require.Equal(t, 1, server.pushCount())
	assert.NotEmpty(t, server.pushes[0].PushID)
}

func TestManager_PushNothingSkipsNetwork(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.RemoteMock{}, true)

	res, err := env.manager.UpdateServerWithLocalChanges(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.PushedEntities)
}

// временные ID уникальны даже в пределах одной миллисекунды
func TestManager_OfflineIDsUnique(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.RemoteMock{}, false)

	const n = 100
	seen := make(map[int64]struct{}, n)
	for i := 0; i < n; i++ {
		res, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"ID": int64(0)})
		require.NoError(t, err)
		assert.Less(t, res.ID, int64(0))
		_, dup := seen[res.ID]
		require.False(t, dup)
		seen[res.ID] = struct{}{}
	}
	assert.Len(t, env.manager.GetEntities("Parent"), n)
}

// после отправки сущность доступна по серверному ID, старого ID нет
func TestManager_PromotionAfterSync(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	env := newTestEnv(t, server, false)

	saved, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"Name": "created offline"})
	require.NoError(t, err)
	tempID := saved.ID

	env.manager.SetOnline(true)
	_, err = env.manager.Synchronize(ctx, false)
	require.NoError(t, err)

	_, stillThere := env.manager.GetEntity("Parent", tempID)
	assert.False(t, stillThere)
	_, err = env.local.GetEntity(ctx, "Parent", tempID)
	assert.ErrorIs(t, err, storage.ErrItemNotFound)

	e, ok := env.manager.GetEntity("Parent", 101)
	require.True(t, ok)
	assert.Equal(t, "created offline", e["Name"])

	stored, err := env.local.GetEntity(ctx, "Parent", 101)
	require.NoError(t, err)
	assert.Equal(t, "created offline", stored["Name"])
}

// внешние ключи внутри пакета переписываются на серверные ID
func TestManager_SaveEntitiesCrossTypeReferences(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	env := newTestEnv(t, server, true)

	batch := models.Batch{
		"Parent": {{"ID": int64(-1), "Name": "p"}},
		"Child":  {{"ID": int64(-2), "ParentID": int64(-1)}, {"ID": int64(0), "ParentID": int64(-1)}},
	}
	results, err := env.manager.SaveEntities(ctx, batch)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.OK())
		assert.Greater(t, r.ID, int64(0))
		assert.Less(t, r.ClientID, int64(0))
	}

	parents := env.list(t, "Parent")
	require.Len(t, parents, 1)
	parentID := parents[0].ID()
	assert.Greater(t, parentID, int64(0))

	children := env.list(t, "Child")
	require.Len(t, children, 2)
	for _, c := range children {
		ref, _ := c.Int64("ParentID")
		assert.Equal(t, parentID, ref)
		assert.Greater(t, c.ID(), int64(0))
	}

	for _, c := range env.manager.GetEntities("Child") {
		ref, _ := c.Int64("ParentID")
		assert.Equal(t, parentID, ref)
	}

	// Исходный пакет вызывающей стороны не изменен
	assert.Equal(t, int64(-1), batch["Parent"][0].ID())
}

func TestManager_SaveEntitiesExplicitRelation(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	env := newTestEnv(t, server, true)

	schema := models.NewSchema(testTypes).Relate("Note", "Owner", "Parent")
	env.manager.schema = schema

	results, err := env.manager.SaveEntities(ctx, models.Batch{
		"Parent": {{"ID": int64(-1)}},
		"Note":   {{"ID": int64(-2), "Owner": int64(-1)}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	notes := env.list(t, "Note")
	require.Len(t, notes, 1)
	owner, _ := notes[0].Int64("Owner")
	assert.Equal(t, env.list(t, "Parent")[0].ID(), owner)
}

func TestManager_SaveEntitiesIntegrityError(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	env := newTestEnv(t, server, true)

	_, err := env.manager.SaveEntities(ctx, models.Batch{
		"Child": {{"ID": int64(-2), "ParentID": int64(-7)}},
		"Note":  {{"ID": int64(-3)}},
	})
	assert.ErrorIs(t, err, ErrCrossEntityIntegrity)
}

func TestManager_SaveEntitiesSingleTypeKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	env := newTestEnv(t, server, true)

	// Один тип в пакете: внешние ключи не проверяются
	_, err := env.manager.SaveEntities(ctx, models.Batch{
		"Child": {{"ID": int64(0), "ParentID": int64(-7)}},
	})
	require.NoError(t, err)

	children := env.list(t, "Child")
	require.Len(t, children, 1)
	ref, _ := children[0].Int64("ParentID")
	assert.Equal(t, int64(-7), ref)
}

func TestManager_SaveEntitiesOffline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.RemoteMock{}, false)

	results, err := env.manager.SaveEntities(ctx, models.Batch{
		"Parent": {{"ID": int64(0)}, {"ID": int64(0)}},
		"Child":  {{"ID": int64(0), "ParentID": int64(-1)}},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// ClientID каждой сущности уникален в пределах пакета
	seen := map[int64]bool{}
	for _, r := range results {
		assert.Less(t, r.ClientID, int64(0))
		assert.Equal(t, r.ClientID, r.ID)
		assert.False(t, seen[r.ClientID])
		seen[r.ClientID] = true
	}

	assert.Len(t, env.list(t, storage.UnsavedStore("Parent")), 2)
	assert.Len(t, env.list(t, storage.UnsavedStore("Child")), 1)
	assert.Len(t, env.manager.GetEntities("Parent"), 2)
}

// отказ сервера не меняет локальное состояние
func TestManager_ServerRejectionLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	env := newTestEnv(t, server, true)

	_, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"Name": "kept"})
	require.NoError(t, err)

	server.reject = func(typ string, e models.Entity) []string {
		return []string{"rejected by server"}
	}

	snapshot := func() (map[string][]models.Entity, map[string][]models.Entity) {
		lists, err := env.local.GetAllEntities(ctx, testTypes)
		require.NoError(t, err)
		mem := make(map[string][]models.Entity)
		for _, typ := range testTypes {
			mem[typ] = env.manager.GetEntities(typ)
		}
		return lists, mem
	}
	beforeLocal, beforeMem := snapshot()

	t.Run("single save", func(t *testing.T) {
		res, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"ID": int64(101), "Name": "changed"})
		require.NoError(t, err)
		assert.Equal(t, []string{"rejected by server"}, res.Errors)
	})

	t.Run("bulk save", func(t *testing.T) {
		results, err := env.manager.SaveEntities(ctx, models.Batch{
			"Parent": {{"ID": int64(0)}},
			"Child":  {{"ID": int64(0), "ParentID": int64(101)}},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, models.CollectErrors(results))
	})

	t.Run("delete", func(t *testing.T) {
		res, err := env.manager.DeleteEntity(ctx, "Parent", 101)
		require.NoError(t, err)
		assert.False(t, res.OK())

		results, err := env.manager.DeleteEntities(ctx, "Parent", []int64{101, 102})
		require.NoError(t, err)
		assert.NotEmpty(t, models.CollectErrors(results))
	})

	afterLocal, afterMem := snapshot()
	assert.Equal(t, beforeLocal, afterLocal)
	assert.Equal(t, beforeMem, afterMem)
	for _, typ := range testTypes {
		assert.Empty(t, env.list(t, storage.UnsavedStore(typ)))
		assert.Empty(t, env.list(t, storage.DeletedStore(typ)))
	}
}

// отправка выполняется до получения изменений
func TestManager_SynchronizePushesBeforePull(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	server.put("Parent", models.Entity{"ID": int64(5), "Name": "v1"})
	env := newTestEnv(t, server, true)

	_, err := env.manager.Synchronize(ctx, true)
	require.NoError(t, err)

	// Offline правка, затем другой клиент меняет ту же запись
	env.manager.SetOnline(false)
	_, err = env.manager.SaveEntity(ctx, "Parent", models.Entity{"ID": int64(5), "Name": "local edit"})
	require.NoError(t, err)
	server.put("Parent", models.Entity{"ID": int64(5), "Name": "other client"})

	env.manager.SetOnline(true)
	res, err := env.manager.Synchronize(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PushedEntities)

	onServer, ok := server.get("Parent", 5)
	require.True(t, ok)
	assert.Equal(t, "local edit", onServer["Name"])

	stored, err := env.local.GetEntity(ctx, "Parent", 5)
	require.NoError(t, err)
	assert.Equal(t, "local edit", stored["Name"])

	cached, ok := env.manager.GetEntity("Parent", 5)
	require.True(t, ok)
	assert.Equal(t, "local edit", cached["Name"])
}

func TestManager_SynchronizeRetainsChangesOnPushFailure(t *testing.T) {
	ctx := context.Background()

	var calls int
	remote := &api.RemoteMock{
		UpdateServerFunc: func(ctx context.Context, req pkgapi.UpdateServerRequest) (api.Outcome, error) {
			calls++
			return api.Unreachable(), nil
		},
	}
	env := newTestEnv(t, remote, false, withPolicy(PushPolicyRetain, 2))

	_, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"Name": "pending"})
	require.NoError(t, err)

	env.manager.SetOnline(true)
	_, err = env.manager.Synchronize(ctx, false)
	assert.ErrorIs(t, err, ErrPushFailed)
	assert.Equal(t, 3, calls)

	// Повторы используют один и тот же ключ идемпотентности
	pushIDs := map[string]bool{}
	for _, c := range remote.UpdateServerCalls() {
		pushIDs[c.Req.PushID] = true
	}
	assert.Len(t, pushIDs, 1)

	assert.Len(t, env.list(t, storage.UnsavedStore("Parent")), 1)
	assert.Len(t, env.manager.GetEntities("Parent"), 1)
	assert.Empty(t, remote.GetChangesSinceCalls())
}

func TestManager_SynchronizeDropPolicy(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	server.setReachable(false)
	env := newTestEnv(t, server, false, withPolicy(PushPolicyDrop, 0))

	_, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"Name": "lost"})
	require.NoError(t, err)

	env.manager.SetOnline(true)
	res, err := env.manager.Synchronize(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.Offline)

	assert.Empty(t, env.list(t, storage.UnsavedStore("Parent")))
	assert.Empty(t, env.list(t, "Parent"))
	assert.Empty(t, env.manager.GetEntities("Parent"))
}

func TestManager_SynchronizeOffline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.RemoteMock{}, false)

	require.NoError(t, env.local.UpdateLocalData(ctx, "Parent", models.Replace{Entities: []models.Entity{{"ID": int64(1)}, {"ID": int64(2)}}}))

	res, err := env.manager.Synchronize(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.Offline)
	assert.Equal(t, []int64{1, 2}, ids(env.manager.GetEntities("Parent")))
}

func TestManager_PullAppliesChanges(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	server.put("Parent", models.Entity{"ID": int64(1), "Name": "one"})
	server.put("Parent", models.Entity{"ID": int64(2), "Name": "two"})
	env := newTestEnv(t, server, true)

	t.Run("initial sync fills memory", func(t *testing.T) {
		res, err := env.manager.Synchronize(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 2, res.PulledEntities)
		assert.Equal(t, []int64{1, 2}, ids(env.manager.GetEntities("Parent")))

		watermark, err := storage.LastSyncTime(ctx, env.local.Settings())
		require.NoError(t, err)
		assert.Equal(t, "2", watermark)
	})

	t.Run("incremental sync applies deletes", func(t *testing.T) {
		_, err := server.DeleteEntity(ctx, "Parent", 1)
		require.NoError(t, err)
		server.put("Parent", models.Entity{"ID": int64(3), "Name": "three"})

		res, err := env.manager.UpdateClientWithLatestServerChanges(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, res.PulledEntities)
		assert.Equal(t, 1, res.PulledDeletes)

		assert.Equal(t, []int64{2, 3}, ids(env.list(t, "Parent")))
		assert.Equal(t, []int64{2, 3}, ids(env.manager.GetEntities("Parent")))
	})

	t.Run("unreachable pull serves local data", func(t *testing.T) {
		server.setReachable(false)
		defer server.setReachable(true)

		res, err := env.manager.UpdateClientWithLatestServerChanges(ctx, false)
		require.NoError(t, err)
		assert.True(t, res.Offline)
		assert.Equal(t, []int64{2, 3}, ids(env.manager.GetEntities("Parent")))
	})
}

func TestManager_PullSkipsUnknownAndMalformed(t *testing.T) {
	ctx := context.Background()
	remote := &api.RemoteMock{
		GetChangesSinceFunc: func(ctx context.Context, token string) (*pkgapi.Changes, error) {
			return &pkgapi.Changes{
				Entities: map[string][]models.Entity{
					"Parent":  {{"ID": int64(1)}},
					"Unknown": {{"ID": int64(1)}},
				},
				DeletedIDs: []string{"garbage", "Unknown_4", "Parent_9"},
				ServerTime: "77",
			}, nil
		},
	}
	env := newTestEnv(t, remote, true)

	res, err := env.manager.UpdateClientWithLatestServerChanges(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PulledEntities)
	assert.Equal(t, 1, res.PulledDeletes)

	watermark, err := storage.LastSyncTime(ctx, env.local.Settings())
	require.NoError(t, err)
	assert.Equal(t, "77", watermark)
	require.Len(t, remote.GetChangesSinceCalls(), 1)
	assert.Equal(t, storage.NeverSynced, remote.GetChangesSinceCalls()[0].Token)
}

func TestManager_OnlineSaveOfOfflineEntityRemapsReferences(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	env := newTestEnv(t, server, false)

	parent, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"Name": "p"})
	require.NoError(t, err)
	child, err := env.manager.SaveEntity(ctx, "Child", models.Entity{"ParentID": parent.ID})
	require.NoError(t, err)

	env.manager.SetOnline(true)
	stored, ok := env.manager.GetEntity("Parent", parent.ID)
	require.True(t, ok)
	res, err := env.manager.SaveEntity(ctx, "Parent", stored)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, res.ClientID)
	assert.Equal(t, int64(101), res.ID)

	// Старая локальная запись и ее теневая копия удалены
	assert.Equal(t, []int64{101}, ids(env.list(t, "Parent")))
	assert.Empty(t, env.list(t, storage.UnsavedStore("Parent")))
	_, ok = env.manager.GetEntity("Parent", parent.ID)
	assert.False(t, ok)

	// Ссылка несохраненного ребенка переписана на серверный ID
	unsavedChild, err := env.repo.GetItem(ctx, storage.UnsavedStore("Child"), child.ID)
	require.NoError(t, err)
	ref, _ := unsavedChild.Int64("ParentID")
	assert.Equal(t, int64(101), ref)

	cachedChild, ok := env.manager.GetEntity("Child", child.ID)
	require.True(t, ok)
	ref, _ = cachedChild.Int64("ParentID")
	assert.Equal(t, int64(101), ref)
}

// после сброса теневые списки пусты
func TestManager_DiscardLocalChanges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.RemoteMock{}, false)

	require.NoError(t, env.local.UpdateLocalData(ctx, "Parent", models.Append{Entities: []models.Entity{{"ID": int64(8)}}}))
	_, err := env.manager.SaveEntity(ctx, "Child", models.Entity{"Name": "pending"})
	require.NoError(t, err)
	_, err = env.manager.DeleteEntity(ctx, "Parent", 8)
	require.NoError(t, err)

	require.NoError(t, env.manager.DiscardLocalChanges(ctx))

	unsaved, err := env.local.GetAllUnsavedEntities(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsaved)
	deleted, err := env.local.GetAllDeletedEntities(ctx)
	require.NoError(t, err)
	assert.Empty(t, deleted)
	assert.Empty(t, env.manager.GetEntities("Child"))
}

func TestManager_Hooks(t *testing.T) {
	ctx := context.Background()

	hooks := Hooks{
		OnPreSave: func(typ string, e models.Entity) bool {
			return e["Locked"] != true
		},
		OnValidateEntity: func(typ string, e models.Entity) []string {
			if e["Name"] == "" {
				return []string{"Name is required"}
			}
			return nil
		},
	}
	// RemoteMock без функций: любое обращение к серверу - ошибка теста
	env := newTestEnv(t, &api.RemoteMock{}, true, withManagerOptions(WithHooks(hooks)))

	t.Run("veto returns cancelled result", func(t *testing.T) {
		res, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"Locked": true, "Name": "x"})
		require.NoError(t, err)
		assert.True(t, res.Cancelled)
		assert.Equal(t, []string{VetoMessage}, res.Errors)
	})

	t.Run("validation errors", func(t *testing.T) {
		res, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"Name": ""})
		require.NoError(t, err)
		assert.False(t, res.Cancelled)
		assert.Equal(t, []string{"Name is required"}, res.Errors)
	})

	t.Run("one invalid entity cancels the batch", func(t *testing.T) {
		results, err := env.manager.SaveEntities(ctx, models.Batch{
			"Parent": {{"Name": "ok"}, {"Name": ""}},
			"Child":  {{"Name": "ok"}},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, []string{"Name is required"}, results[0].Errors)
	})

	t.Run("one veto cancels the batch", func(t *testing.T) {
		results, err := env.manager.SaveEntities(ctx, models.Batch{
			"Parent": {{"Name": "ok"}, {"Name": "x", "Locked": true}},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Cancelled)
	})

	for _, typ := range testTypes {
		assert.Empty(t, env.list(t, typ))
	}
}

func TestManager_UnknownType(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &api.RemoteMock{}, true)

	_, err := env.manager.SaveEntity(ctx, "Nope", models.Entity{})
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = env.manager.SaveEntities(ctx, models.Batch{"Nope": {{}}})
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = env.manager.DeleteEntity(ctx, "Nope", 1)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestManager_StatusAndMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, &api.RemoteMock{}, false, withManagerOptions(WithRegisterer(reg)))

	require.NoError(t, env.local.UpdateLocalData(ctx, "Parent", models.Append{Entities: []models.Entity{{"ID": int64(3)}}}))
	_, err := env.manager.SaveEntity(ctx, "Parent", models.Entity{"Name": "a"})
	require.NoError(t, err)
	_, err = env.manager.SaveEntity(ctx, "Parent", models.Entity{"Name": "b"})
	require.NoError(t, err)
	_, err = env.manager.DeleteEntity(ctx, "Parent", 3)
	require.NoError(t, err)

	status, err := env.manager.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Online)
	assert.Equal(t, storage.NeverSynced, status.LastSync)
	assert.Equal(t, 2, status.Unsaved)
	assert.Equal(t, 1, status.Deleted)
	assert.Equal(t, 2, status.Cached["Parent"])

	m := env.manager.metrics
	assert.Equal(t, float64(2), testutil.ToFloat64(m.writes.WithLabelValues("save", pathLocal)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.writes.WithLabelValues("delete", pathLocal)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.pending.WithLabelValues("unsaved")))

	// Повторная регистрация тех же метрик - ошибка
	_, err = New(Config{Types: testTypes}, env.local, env.memory, &api.RemoteMock{}, WithRegisterer(reg))
	assert.Error(t, err)
}

func TestManager_ClearLocalData(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	server.put("Parent", models.Entity{"ID": int64(1)})
	env := newTestEnv(t, server, true)

	_, err := env.manager.Synchronize(ctx, true)
	require.NoError(t, err)
	require.Len(t, env.manager.GetEntities("Parent"), 1)

	require.NoError(t, env.manager.ClearLocalData(ctx))
	assert.Empty(t, env.manager.GetEntities("Parent"))
	assert.Empty(t, env.list(t, "Parent"))

	watermark, err := storage.LastSyncTime(ctx, env.local.Settings())
	require.NoError(t, err)
	assert.Equal(t, storage.NeverSynced, watermark)

	// Следующая синхронизация снова получает все
	_, err = env.manager.Synchronize(ctx, true)
	require.NoError(t, err)
	assert.Len(t, env.manager.GetEntities("Parent"), 1)
}

func TestManager_ConcurrentSynchronize(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	server.put("Parent", models.Entity{"ID": int64(1)})
	env := newTestEnv(t, server, true)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := env.manager.Synchronize(ctx, false)
				errs <- err
				return
			}
			_, err := env.manager.SaveEntity(ctx, "Child", models.Entity{"Name": "c"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, env.list(t, "Child"), 5)
	assert.Equal(t, 5, server.count("Child"))
}

func TestManager_OnlineSaveSupersedesOfflineEdit(t *testing.T) {
	tests := []struct {
		name string
		save func(ctx context.Context, m *Manager, e models.Entity) ([]models.TransactionResult, error)
	}{
		{
			name: "single",
			save: func(ctx context.Context, m *Manager, e models.Entity) ([]models.TransactionResult, error) {
				res, err := m.SaveEntity(ctx, "TestEntity", e)
				return []models.TransactionResult{res}, err
			},
		},
		{
			name: "batch",
			save: func(ctx context.Context, m *Manager, e models.Entity) ([]models.TransactionResult, error) {
				return m.SaveEntities(ctx, models.Batch{"TestEntity": {e}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			server := newFakeServer()
			server.put("TestEntity", models.Entity{"ID": int64(5), "Name": "v0"})
			env := newTestEnv(t, server, true)

			_, err := env.manager.Synchronize(ctx, true)
			require.NoError(t, err)

			env.manager.SetOnline(false)
			_, err = env.manager.SaveEntity(ctx, "TestEntity", models.Entity{"ID": int64(5), "Name": "offline-edit"})
			require.NoError(t, err)
			require.Equal(t, []int64{5}, ids(env.list(t, storage.UnsavedStore("TestEntity"))))

			env.manager.SetOnline(true)
			results, err := tt.save(ctx, env.manager, models.Entity{"ID": int64(5), "Name": "online-edit"})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.True(t, results[0].OK())

			// Теневой список больше не держит устаревшую offline версию
			assert.Empty(t, env.list(t, storage.UnsavedStore("TestEntity")))

			_, err = env.manager.Synchronize(ctx, false)
			require.NoError(t, err)

			onServer, ok := server.get("TestEntity", 5)
			require.True(t, ok)
			assert.Equal(t, "online-edit", onServer["Name"])

			cached, ok := env.manager.GetEntity("TestEntity", 5)
			require.True(t, ok)
			assert.Equal(t, "online-edit", cached["Name"])

			stored, err := env.repo.GetItem(ctx, "TestEntity", 5)
			require.NoError(t, err)
			assert.Equal(t, "online-edit", stored["Name"])
		})
	}
}

func TestManager_PullWithPendingChanges(t *testing.T) {
	t.Run("retain refuses to discard pending work", func(t *testing.T) {
		ctx := context.Background()
		server := newFakeServer()
		env := newTestEnv(t, server, false)

		_, err := env.manager.SaveEntity(ctx, "Note", models.Entity{"Title": "draft"})
		require.NoError(t, err)

		env.manager.SetOnline(true)
		_, err = env.manager.UpdateClientWithLatestServerChanges(ctx, false)
		assert.ErrorIs(t, err, ErrPendingChanges)

		assert.Len(t, env.list(t, storage.UnsavedStore("Note")), 1)
		assert.Len(t, env.list(t, "Note"), 1)

		// Полная синхронизация сначала отправляет изменения
		_, err = env.manager.Synchronize(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, server.count("Note"))

		_, err = env.manager.UpdateClientWithLatestServerChanges(ctx, false)
		require.NoError(t, err)
	})

	t.Run("drop policy pulls anyway", func(t *testing.T) {
		ctx := context.Background()
		env := newTestEnv(t, newFakeServer(), false, withPolicy(PushPolicyDrop, 0))

		_, err := env.manager.SaveEntity(ctx, "Note", models.Entity{"Title": "draft"})
		require.NoError(t, err)

		env.manager.SetOnline(true)
		_, err = env.manager.UpdateClientWithLatestServerChanges(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, env.list(t, storage.UnsavedStore("Note")))
	})
}

func TestManager_SynchronizeOutlivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	remote := &api.RemoteMock{
		GetChangesSinceFunc: func(ctx context.Context, token string) (*pkgapi.Changes, error) {
			once.Do(func() { close(started) })
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &pkgapi.Changes{
				Entities:   map[string][]models.Entity{"Parent": {{"ID": int64(1)}}},
				ServerTime: "5",
			}, nil
		},
	}
	env := newTestEnv(t, remote, true)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := env.manager.Synchronize(ctx, false)
		firstErr <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	secondErr := make(chan error, 1)
	go func() {
		_, err := env.manager.Synchronize(context.Background(), false)
		secondErr <- err
	}()
	close(release)
	require.NoError(t, <-secondErr)

	watermark, err := storage.LastSyncTime(context.Background(), env.local.Settings())
	require.NoError(t, err)
	assert.Equal(t, "5", watermark)
	assert.Equal(t, []int64{1}, ids(env.list(t, "Parent")))
}
