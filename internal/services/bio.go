package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/chinmay4o/superlinks/internal/cache"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/mutation"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// BlockPatch is a partial block update. Nil fields are left unchanged.
type BlockPatch struct {
	Title    *string
	URL      *string
	ImageURL *string
	Visible  *bool
}

func (p BlockPatch) apply(b models.Block) models.Block {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.URL != nil {
		b.URL = *p.URL
	}
	if p.ImageURL != nil {
		b.ImageURL = *p.ImageURL
	}
	if p.Visible != nil {
		b.Visible = *p.Visible
	}
	return b
}

func (p BlockPatch) fields() map[string]interface{} {
	out := make(map[string]interface{})
	if p.Title != nil {
		out["title"] = *p.Title
	}
	if p.URL != nil {
		out["url"] = *p.URL
	}
	if p.ImageURL != nil {
		out["imageUrl"] = *p.ImageURL
	}
	if p.Visible != nil {
		out["visible"] = *p.Visible
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p BlockPatch) IsEmpty() bool { return len(p.fields()) == 0 }

// mergeBlock overlays the fields a (possibly partial) server answer carries.
func mergeBlock(local, server models.Block) models.Block {
	if server.ID == "" {
		return local
	}
	if server.Title != "" {
		local.Title = server.Title
	}
	if server.URL != "" {
		local.URL = server.URL
	}
	if server.ImageURL != "" {
		local.ImageURL = server.ImageURL
	}
	if server.Type != "" {
		local.Type = server.Type
	}
	return local
}

// ProfileField names an editable profile field.
type ProfileField string

const (
	FieldUsername    ProfileField = "username"
	FieldDisplayName ProfileField = "displayName"
	FieldBio         ProfileField = "bio"
	FieldAvatarURL   ProfileField = "avatarUrl"
	FieldTheme       ProfileField = "theme"
)

// ProfileFields lists the editable fields.
var ProfileFields = []ProfileField{FieldUsername, FieldDisplayName, FieldBio, FieldAvatarURL, FieldTheme}

// ParseProfileField validates a field name.
func ParseProfileField(s string) (ProfileField, error) {
	for _, f := range ProfileFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown profile field %q (want one of %v)", s, ProfileFields)
}

// Value reads the field from p.
func (f ProfileField) Value(p models.Profile) string {
	switch f {
	case FieldUsername:
		return p.Username
	case FieldDisplayName:
		return p.DisplayName
	case FieldBio:
		return p.Bio
	case FieldAvatarURL:
		return p.AvatarURL
	case FieldTheme:
		return p.Theme
	}
	return ""
}

func (f ProfileField) set(p models.Profile, v string) models.Profile {
	switch f {
	case FieldUsername:
		p.Username = v
	case FieldDisplayName:
		p.DisplayName = v
	case FieldBio:
		p.Bio = v
	case FieldAvatarURL:
		p.AvatarURL = v
	case FieldTheme:
		p.Theme = v
	}
	return p
}

// draft is an unsaved burst of edits to one profile field.
type draft struct {
	ctx      context.Context
	original string
	value    string
}

// BioService manages the bio page: its blocks and the creator profile.
type BioService struct {
	api    BioAPI
	deps   Deps
	blocks *mutation.Collection[models.Block]

	// At most one entity: the authenticated creator.
	profile *mutation.Collection[models.Profile]

	mu     sync.Mutex
	drafts map[ProfileField]*draft
}

// NewBioService creates a BioService.
func NewBioService(client BioAPI, deps Deps) *BioService {
	return &BioService{
		api:     client,
		deps:    deps.withDefaults(),
		blocks:  mutation.NewCollection[models.Block]("blocks"),
		profile: mutation.NewCollection[models.Profile]("profile"),
		drafts:  make(map[ProfileField]*draft),
	}
}

// Blocks returns the local view of the blocks, including speculative changes.
func (s *BioService) Blocks() []models.Block { return s.blocks.All() }

// LoadBlocks reads the blocks through the cache and replaces the local view.
func (s *BioService) LoadBlocks(ctx context.Context) ([]models.Block, error) {
	blocks, err := cache.Fetch(ctx, s.deps.Cache, KeyBlocks, s.deps.Policy.TTL(cache.ClassList), s.api.ListBlocks)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}
	s.blocks.Replace(blocks)
	return s.blocks.All(), nil
}

// AddBlock shows block at the end of the page immediately under a temporary
// id and creates it on the server in the background.
func (s *BioService) AddBlock(ctx context.Context, block models.Block) *mutation.Handle[models.Block] {
	block.Position = s.blocks.Len()
	m := mutation.Create(s.blocks, mutation.NewTempID(), block, func(ctx context.Context, b models.Block) (models.Block, error) {
		return deref(func() (*models.Block, error) { return s.api.CreateBlock(ctx, b) })
	})
	m.FailureTitle = "Could not add block"
	m.Cache.Patch = []mutation.CachePatch[models.Block]{{
		Key: KeyBlocks,
		Apply: func(old any, created models.Block) any {
			list, _ := old.([]models.Block)
			return append(append([]models.Block(nil), list...), created)
		},
	}}
	return mutation.Go(ctx, s.deps.Engine, m)
}

// UpdateBlock applies patch locally and saves it.
func (s *BioService) UpdateBlock(ctx context.Context, id string, patch BlockPatch) *mutation.Handle[models.Block] {
	m := mutation.Update(s.blocks, id, patch.apply,
		func(ctx context.Context) (models.Block, error) {
			return deref(func() (*models.Block, error) { return s.api.UpdateBlock(ctx, id, patch.fields()) })
		},
		mergeBlock,
	)
	m.FailureTitle = "Could not update block"
	m.Cache.Patch = []mutation.CachePatch[models.Block]{{
		Key: KeyBlocks,
		Apply: func(old any, _ models.Block) any {
			merged, ok := s.blocks.Get(id)
			if !ok {
				return old
			}
			return replaceByID(old, merged)
		},
	}}
	return mutation.Go(ctx, s.deps.Engine, m)
}

// RemoveBlock hides the block immediately and deletes it on the server.
func (s *BioService) RemoveBlock(ctx context.Context, id string) *mutation.Handle[struct{}] {
	m := mutation.Delete(s.blocks, id, func(ctx context.Context) error {
		return s.api.DeleteBlock(ctx, id)
	})
	m.FailureTitle = "Could not delete block"
	m.Cache.Patch = []mutation.CachePatch[struct{}]{{
		Key: KeyBlocks,
		Apply: func(old any, _ struct{}) any {
			return removeByID[models.Block](old, id)
		},
	}}
	return mutation.Go(ctx, s.deps.Engine, m)
}

// ReorderBlocks moves blocks into the order of ids. A failure reloads the
// order from the server rather than guessing the previous one.
func (s *BioService) ReorderBlocks(ctx context.Context, ids []string) *mutation.Handle[struct{}] {
	m := mutation.Mutation[struct{}]{
		Target: s.blocks.Target("order"),
		Apply: func() {
			s.blocks.Reorder(ids)
			for i, b := range s.blocks.All() {
				pos := i
				s.blocks.Update(b.ID, func(b models.Block) models.Block { b.Position = pos; return b })
			}
		},
		Commit: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.api.ReorderBlocks(ctx, ids)
		},
		Cache:        mutation.CacheEffects[struct{}]{Invalidate: []string{KeyBlocks}},
		FailureTitle: "Could not reorder blocks",
	}
	m = mutation.WithRefetch(m, func(ctx context.Context) error {
		s.deps.Cache.Delete(KeyBlocks)
		_, err := s.LoadBlocks(ctx)
		return err
	})
	return mutation.Go(ctx, s.deps.Engine, m)
}

// Profile returns the local profile, including unsaved edits.
func (s *BioService) Profile() (models.Profile, bool) {
	all := s.profile.All()
	if len(all) == 0 {
		return models.Profile{}, false
	}
	return all[0], true
}

// LoadProfile reads the profile through the cache.
func (s *BioService) LoadProfile(ctx context.Context) (models.Profile, error) {
	p, err := cache.Fetch(ctx, s.deps.Cache, KeyProfile, s.deps.Policy.TTL(cache.ClassProfile), func(ctx context.Context) (models.Profile, error) {
		return deref(func() (*models.Profile, error) { return s.api.GetProfile(ctx) })
	})
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	s.profile.Replace([]models.Profile{p})
	return p, nil
}

// EditProfile changes field locally at once and saves it after the quiet
// window. A burst of edits to one field produces a single save carrying the
// last value; a failed save restores the value from before the burst.
func (s *BioService) EditProfile(ctx context.Context, field ProfileField, value string) error {
	current, ok := s.Profile()
	if !ok {
		return fmt.Errorf("profile not loaded")
	}

	s.mu.Lock()
	d, ok := s.drafts[field]
	if !ok {
		d = &draft{original: field.Value(current)}
		s.drafts[field] = d
	}
	d.ctx = ctx
	d.value = value
	s.mu.Unlock()

	s.profile.Update(current.ID, func(p models.Profile) models.Profile { return field.set(p, value) })
	s.deps.Debouncer.Schedule(debounceKey(field), func() { s.commitDraft(field) })
	return nil
}

func debounceKey(field ProfileField) string { return "profile." + string(field) }

func (s *BioService) commitDraft(field ProfileField) {
	s.mu.Lock()
	d := s.drafts[field]
	delete(s.drafts, field)
	s.mu.Unlock()
	if d == nil {
		return
	}
	s.saveField(d.ctx, field, d.value, d.original)
}

// FlushProfile saves pending profile edits now and waits for every
// in-flight mutation to settle.
func (s *BioService) FlushProfile() {
	for _, f := range ProfileFields {
		s.deps.Debouncer.Flush(debounceKey(f))
	}
	s.deps.Engine.Wait()
}

// PendingEdits reports whether any profile field has an unsaved burst.
func (s *BioService) PendingEdits() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts) > 0
}

// saveField commits value for field. The field was already applied locally.
func (s *BioService) saveField(ctx context.Context, field ProfileField, value, original string) *mutation.Handle[models.Profile] {
	current, _ := s.Profile()
	id := current.ID

	m := mutation.Mutation[models.Profile]{
		Target: s.profile.Target(id) + "/" + string(field),
		Snapshot: func() func() {
			return func() {
				s.profile.Update(id, func(p models.Profile) models.Profile { return field.set(p, original) })
			}
		},
		Commit: func(ctx context.Context) (models.Profile, error) {
			return deref(func() (*models.Profile, error) {
				return s.api.UpdateProfile(ctx, map[string]interface{}{string(field): value})
			})
		},
		Reconcile: func(server models.Profile) {
			if v := field.Value(server); v != "" {
				s.profile.Update(id, func(p models.Profile) models.Profile { return field.set(p, v) })
			}
		},
		Cache: mutation.CacheEffects[models.Profile]{
			Patch: []mutation.CachePatch[models.Profile]{{
				Key: KeyProfile,
				Apply: func(old any, _ models.Profile) any {
					if p, ok := s.Profile(); ok {
						return p
					}
					return old
				},
			}},
		},
		FailureTitle: "Could not save profile",
	}
	return mutation.Go(ctx, s.deps.Engine, m)
}

// SetAvatar uploads file and points the profile at it once the upload
// completes. It returns the upload task id.
func (s *BioService) SetAvatar(ctx context.Context, file transfer.File) (string, error) {
	if s.deps.Uploader == nil {
		return "", fmt.Errorf("no uploader configured")
	}
	if _, ok := s.Profile(); !ok {
		return "", fmt.Errorf("profile not loaded")
	}
	return s.deps.Uploader.Enqueue(ctx, file, transfer.Options{
		UploadType: models.UploadTypeAvatar,
		OnComplete: func(_ string, fd *models.FileDescriptor) {
			current, _ := s.Profile()
			original := current.AvatarURL
			s.profile.Update(current.ID, func(p models.Profile) models.Profile { return FieldAvatarURL.set(p, fd.URL) })
			s.saveField(ctx, FieldAvatarURL, fd.URL, original)
		},
	})
}

// Close drops pending debounced edits. In-flight saves still settle.
func (s *BioService) Close() {
	s.deps.Debouncer.Stop()
}

func replaceByID[T mutation.Entity[T]](old any, item T) any {
	list, ok := old.([]T)
	if !ok {
		return old
	}
	out := make([]T, len(list))
	for i, it := range list {
		if it.GetID() == item.GetID() {
			it = item
		}
		out[i] = it
	}
	return out
}

func removeByID[T mutation.Entity[T]](old any, id string) any {
	list, ok := old.([]T)
	if !ok {
		return old
	}
	out := make([]T, 0, len(list))
	for _, it := range list {
		if it.GetID() != id {
			out = append(out, it)
		}
	}
	return out
}
