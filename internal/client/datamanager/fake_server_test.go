package datamanager

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/iudanet/entitysync/internal/client/api"
	"github.com/iudanet/entitysync/internal/models"
	pkgapi "github.com/iudanet/entitysync/pkg/api"
)

// fakeServer is an in-process server that keeps versioned tables and
// serves change feeds, so scenario tests can run full push/pull cycles.
type fakeServer struct {
	tables    map[string]map[int64]models.Entity
	versions  map[string]map[int64]int64
	reject    func(typ string, e models.Entity) []string
	deletes   []fakeDelete
	pushes    []pkgapi.UpdateServerRequest
	version   int64
	nextID    int64
	mu        sync.Mutex
	reachable bool
}

type fakeDelete struct {
	key     string
	version int64
}

var _ api.Remote = (*fakeServer)(nil)

func newFakeServer() *fakeServer {
	return &fakeServer{
		tables:    make(map[string]map[int64]models.Entity),
		versions:  make(map[string]map[int64]int64),
		nextID:    100,
		reachable: true,
	}
}

func (s *fakeServer) setReachable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachable = v
}

// put stores an entity as if another client had written it.
func (s *fakeServer) put(typ string, e models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(typ, e)
}

func (s *fakeServer) get(typ string, id int64) (models.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tables[typ][id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (s *fakeServer) count(typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[typ])
}

func (s *fakeServer) pushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pushes)
}

func (s *fakeServer) store(typ string, e models.Entity) {
	if s.tables[typ] == nil {
		s.tables[typ] = make(map[int64]models.Entity)
		s.versions[typ] = make(map[int64]int64)
	}
	s.version++
	s.tables[typ][e.ID()] = e.Clone()
	s.versions[typ][e.ID()] = s.version
}

func (s *fakeServer) remove(typ string, id int64) {
	if _, ok := s.tables[typ][id]; !ok {
		return
	}
	s.version++
	delete(s.tables[typ], id)
	delete(s.versions[typ], id)
	s.deletes = append(s.deletes, fakeDelete{key: pkgapi.DeletedKey(typ, id), version: s.version})
}

// commit validates and stores a batch atomically, resolving temporary IDs
// and references between entities of the batch the way a real server would.
func (s *fakeServer) commit(batch models.Batch) []models.TransactionResult {
	var results []models.TransactionResult
	rejected := false
	for _, typ := range batch.Types() {
		for _, e := range batch[typ] {
			var errs []string
			if s.reject != nil {
				errs = s.reject(typ, e)
			}
			if len(errs) > 0 {
				rejected = true
			}
			results = append(results, models.TransactionResult{ClientID: e.ID(), ID: e.ID(), Type: typ, Errors: errs})
		}
	}
	if rejected {
		return results
	}

	assigned := make(map[string]int64)
	for i, r := range results {
		if r.ClientID <= 0 {
			s.nextID++
			results[i].ID = s.nextID
			assigned[r.Type+"|"+strconv.FormatInt(r.ClientID, 10)] = s.nextID
		}
	}

	for _, typ := range batch.Types() {
		for _, e := range batch[typ] {
			stored := e.Clone()
			if id, ok := assigned[typ+"|"+strconv.FormatInt(e.ID(), 10)]; ok {
				stored.SetID(id)
			}
			for _, field := range stored.ForeignKeys() {
				ref, _ := stored.Int64(field)
				related := strings.TrimSuffix(field, models.FieldID)
				if id, ok := assigned[related+"|"+strconv.FormatInt(ref, 10)]; ok && ref < 0 {
					stored[field] = id
				}
			}
			s.store(typ, stored)
		}
	}
	return results
}

func (s *fakeServer) SaveEntity(ctx context.Context, typ string, e models.Entity) (api.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reachable {
		return api.Unreachable(), nil
	}
	return api.OutcomeFromResults(s.commit(models.Batch{typ: {e}})), nil
}

func (s *fakeServer) SaveEntities(ctx context.Context, batch models.Batch) (api.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reachable {
		return api.Unreachable(), nil
	}
	return api.OutcomeFromResults(s.commit(batch)), nil
}

func (s *fakeServer) DeleteEntity(ctx context.Context, typ string, id int64) (api.Outcome, error) {
	return s.DeleteEntities(ctx, typ, []int64{id})
}

func (s *fakeServer) DeleteEntities(ctx context.Context, typ string, ids []int64) (api.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reachable {
		return api.Unreachable(), nil
	}

	results := make([]models.TransactionResult, 0, len(ids))
	for _, id := range ids {
		if s.reject != nil {
			if errs := s.reject(typ, models.Entity{models.FieldID: id}); len(errs) > 0 {
				results = append(results, models.ErrorResult(typ, id, errs...))
			}
		}
	}
	if len(results) > 0 {
		return api.OutcomeFromResults(results), nil
	}

	for _, id := range ids {
		s.remove(typ, id)
		results = append(results, models.TransactionResult{ClientID: id, ID: id, Type: typ})
	}
	return api.OutcomeFromResults(results), nil
}

func (s *fakeServer) UpdateServer(ctx context.Context, req pkgapi.UpdateServerRequest) (api.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reachable {
		return api.Unreachable(), nil
	}

	s.pushes = append(s.pushes, req)
	results := s.commit(models.Batch(req.Unsaved))
	for typ, ids := range req.DeletedIDs {
		for _, id := range ids {
			s.remove(typ, id)
		}
	}
	return api.OutcomeFromResults(results), nil
}

func (s *fakeServer) GetChangesSince(ctx context.Context, token string) (*pkgapi.Changes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reachable {
		return nil, fmt.Errorf("get changes: %w", api.ErrUnreachable)
	}

	since, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad token %q", token)
	}

	changes := &pkgapi.Changes{
		Entities:   make(map[string][]models.Entity),
		ServerTime: strconv.FormatInt(s.version, 10),
	}
	for typ, versions := range s.versions {
		var list []models.Entity
		for id, v := range versions {
			if v > since {
				list = append(list, s.tables[typ][id].Clone())
			}
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
		if len(list) > 0 {
			changes.Entities[typ] = list
		}
	}
	for _, d := range s.deletes {
		if d.version > since {
			changes.DeletedIDs = append(changes.DeletedIDs, d.key)
		}
	}
	return changes, nil
}
