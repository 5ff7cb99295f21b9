package usecase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
)

// memStore is an in-memory relational store with real transaction
// semantics: a unit of work writes to a private copy that replaces the
// committed state only on Commit.
type memStore struct {
	mu        sync.Mutex
	videos    map[uuid.UUID]*model.Video
	live      map[model.Relation]map[uuid.UUID]bool
	genreCats map[uuid.UUID][]uuid.UUID

	beginErr  error
	createErr error
	updateErr error
	commitErr error
	syncErr   map[model.Relation]error

	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{
		videos: make(map[uuid.UUID]*model.Video),
		live: map[model.Relation]map[uuid.UUID]bool{
			model.RelationCategories:  {},
			model.RelationGenres:      {},
			model.RelationCastMembers: {},
		},
		genreCats: make(map[uuid.UUID][]uuid.UUID),
		syncErr:   make(map[model.Relation]error),
	}
}

// addGenre registers a live genre and its live categories.
func (s *memStore) addGenre(genreID uuid.UUID, categoryIDs ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[model.RelationGenres][genreID] = true
	for _, id := range categoryIDs {
		s.live[model.RelationCategories][id] = true
	}
	s.genreCats[genreID] = append(s.genreCats[genreID], categoryIDs...)
}

func (s *memStore) addReference(rel model.Relation, ids ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.live[rel][id] = true
	}
}

// put stores a committed video directly.
func (s *memStore) put(video *model.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = cloneVideo(video)
}

// committed returns a copy of the committed row, if any.
func (s *memStore) committed(id uuid.UUID) (*model.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, false
	}
	return cloneVideo(v), true
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.videos)
}

// Videos returns a repository over the committed state.
func (s *memStore) Videos() repository.VideoRepository {
	return &memVideoRepo{store: s, videos: func() map[uuid.UUID]*model.Video { return s.videos }}
}

func (s *memStore) References() repository.ReferenceRepository {
	return &memRefs{store: s}
}

func (s *memStore) Begin(ctx context.Context) (repository.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.beginErr != nil {
		return nil, s.beginErr
	}

	s.mu.Lock()
	staged := make(map[uuid.UUID]*model.Video, len(s.videos))
	for id, v := range s.videos {
		staged[id] = cloneVideo(v)
	}
	s.mu.Unlock()

	return &memUnitOfWork{store: s, staged: staged}, nil
}

type memUnitOfWork struct {
	store  *memStore
	staged map[uuid.UUID]*model.Video
	done   bool
}

func (u *memUnitOfWork) Videos() repository.VideoRepository {
	return &memVideoRepo{store: u.store, videos: func() map[uuid.UUID]*model.Video { return u.staged }}
}

func (u *memUnitOfWork) References() repository.ReferenceRepository {
	return &memRefs{store: u.store}
}

func (u *memUnitOfWork) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.done {
		return repository.ErrTxDone
	}
	if u.store.commitErr != nil {
		return u.store.commitErr
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.videos = u.staged
	u.store.commits++
	u.done = true
	return nil
}

func (u *memUnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.rollbacks++
	u.done = true
	return nil
}

type memVideoRepo struct {
	store  *memStore
	videos func() map[uuid.UUID]*model.Video
}

func (r *memVideoRepo) Create(ctx context.Context, video *model.Video) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.store.createErr != nil {
		return r.store.createErr
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	videos := r.videos()
	if _, ok := videos[video.ID]; ok {
		return repository.ErrDuplicateVideo
	}
	v := cloneVideo(video)
	for _, rel := range model.Relations {
		v.SetRelation(rel, nil)
	}
	videos[video.ID] = v
	return nil
}

func (r *memVideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.videos()[id]
	if !ok {
		return nil, repository.ErrVideoNotFound
	}
	return cloneVideo(v), nil
}

func (r *memVideoRepo) Update(ctx context.Context, video *model.Video) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.store.updateErr != nil {
		return r.store.updateErr
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	videos := r.videos()
	old, ok := videos[video.ID]
	if !ok || old.IsDeleted() {
		return repository.ErrVideoNotFound
	}
	v := cloneVideo(video)
	for _, rel := range model.Relations {
		v.SetRelation(rel, old.Relation(rel))
	}
	videos[video.ID] = v
	return nil
}

func (r *memVideoRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.videos()[id]
	if !ok || v.IsDeleted() {
		return repository.ErrVideoNotFound
	}
	v.SoftDelete()
	return nil
}

func (r *memVideoRepo) Restore(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.videos()[id]
	if !ok || !v.IsDeleted() {
		return repository.ErrVideoNotFound
	}
	v.Restore()
	return nil
}

func (r *memVideoRepo) SyncRelation(ctx context.Context, videoID uuid.UUID, rel model.Relation, ids []uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.store.syncErr[rel]; err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.videos()[videoID]
	if !ok {
		return repository.ErrVideoNotFound
	}
	v.SetRelation(rel, ids)
	return nil
}

func (r *memVideoRepo) RelationIDs(ctx context.Context, videoID uuid.UUID, rel model.Relation) ([]uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.videos()[videoID]
	if !ok {
		return []uuid.UUID{}, nil
	}
	return append([]uuid.UUID{}, v.Relation(rel)...), nil
}

type memRefs struct {
	store *memStore
}

func (r *memRefs) ExistingIDs(ctx context.Context, rel model.Relation, ids []uuid.UUID) ([]uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	found := []uuid.UUID{}
	for _, id := range ids {
		if r.store.live[rel][id] {
			found = append(found, id)
		}
	}
	return found, nil
}

func (r *memRefs) GenreCategories(ctx context.Context, genreIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make(map[uuid.UUID][]uuid.UUID, len(genreIDs))
	for _, id := range genreIDs {
		if cats, ok := r.store.genreCats[id]; ok {
			out[id] = append([]uuid.UUID{}, cats...)
		}
	}
	return out, nil
}

func cloneVideo(v *model.Video) *model.Video {
	c := *v
	c.CategoryIDs = append([]uuid.UUID(nil), v.CategoryIDs...)
	c.GenreIDs = append([]uuid.UUID(nil), v.GenreIDs...)
	c.CastMemberIDs = append([]uuid.UUID(nil), v.CastMemberIDs...)
	if v.DeletedAt != nil {
		t := *v.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// memObjectStorage is an in-memory object store with failure injection.
type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	// putHook runs before a put is stored; a non-nil error fails the put.
	putHook    func(ctx context.Context, key string) error
	deleteHook func(key string) error
	urlHook    func(key string) error
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (m *memObjectStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.putHook != nil {
		if err := m.putHook(ctx, key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjectStorage) Delete(ctx context.Context, key string) error {
	if m.deleteHook != nil {
		if err := m.deleteHook(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memObjectStorage) FileURL(ctx context.Context, key string) (string, error) {
	if m.urlHook != nil {
		if err := m.urlHook(key); err != nil {
			return "", err
		}
	}
	return "http://storage.test/" + key, nil
}

func (m *memObjectStorage) has(key string) bool {
	ok, _ := m.Exists(context.Background(), key)
	return ok
}

func (m *memObjectStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *memObjectStorage) seed(key, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte(content)
}

// sequentialNames returns a NameGenerator producing name-1.ext, name-2.ext, ...
func sequentialNames() NameGenerator {
	var mu sync.Mutex
	n := 0
	return func(u *model.Upload) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		ext := ""
		if i := strings.LastIndex(u.Filename, "."); i >= 0 {
			ext = u.Filename[i:]
		}
		return fmt.Sprintf("name-%d%s", n, ext)
	}
}

func upload(filename, contentType, content string) model.FileValue {
	return model.NewUploadValue(&model.Upload{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(content)),
		Content:     strings.NewReader(content),
	})
}

func ptr[T any](v T) *T {
	return &v
}

// Relation ids used by createAttrs. addDefaultReferences registers them.
var (
	defaultCategoryID   = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	defaultGenreID      = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	defaultCastMemberID = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
)

// createAttrs returns a complete create payload without files. Its relations
// satisfy the coverage rule once addDefaultReferences has run.
func createAttrs() model.VideoAttributes {
	return model.VideoAttributes{
		Title:        ptr("The Movie"),
		Description:  ptr("A description"),
		YearLaunched: ptr(2010),
		Opened:       ptr(false),
		Rating:       ptr(model.Rating12),
		Duration:     ptr(90),
		Relations: map[model.Relation][]uuid.UUID{
			model.RelationCategories:  {defaultCategoryID},
			model.RelationGenres:      {defaultGenreID},
			model.RelationCastMembers: {defaultCastMemberID},
		},
	}
}

func (s *memStore) addDefaultReferences() {
	s.addGenre(defaultGenreID, defaultCategoryID)
	s.addReference(model.RelationCastMembers, defaultCastMemberID)
}
