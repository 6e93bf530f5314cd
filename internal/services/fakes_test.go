package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/cache"
	"github.com/chinmay4o/superlinks/internal/clock"
	"github.com/chinmay4o/superlinks/internal/events"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/mutation"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// fakeStore is an in-memory storefront backend counting its calls.
type fakeStore struct {
	mu sync.Mutex

	blocks    []models.Block
	profile   models.Profile
	products  []models.Product
	purchases []models.Purchase

	calls         map[string]int
	profilePatch  []map[string]interface{}
	failNext      map[string]error
	gates         map[string]chan struct{}
	failField     string // UpdateProfile fails when the patch carries this field
	nextCreatedID string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blocks: []models.Block{
			{ID: "blk-1", Type: models.BlockTypeLink, Title: "Shop", Position: 0, Visible: true},
			{ID: "blk-2", Type: models.BlockTypeText, Title: "About", Position: 1, Visible: true},
		},
		profile:  models.Profile{ID: "usr-1", Username: "maya", DisplayName: "Maya", Bio: "hello"},
		products: []models.Product{{ID: "prd-1", Title: "Presets", Price: 1500, Currency: "USD"}},
		purchases: []models.Purchase{
			{ID: "pur-1", ProductID: "prd-1", Amount: 1500, Currency: "USD", Status: models.PurchaseStatusPaid},
			{ID: "pur-2", ProductID: "prd-1", Amount: 1500, Currency: "USD", Status: models.PurchaseStatusPaid},
		},
		calls:    make(map[string]int),
		failNext: make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
}

// hold makes the next calls of op block until the returned func is called.
func (f *fakeStore) hold(op string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[op] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeStore) wait(op string) {
	f.mu.Lock()
	ch := f.gates[op]
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

// enter counts op and returns a queued failure for it, if any.
func (f *fakeStore) enter(op string) error {
	f.calls[op]++
	if err, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return err
	}
	return nil
}

func (f *fakeStore) fail(op string, err error) {
	f.mu.Lock()
	f.failNext[op] = err
	f.mu.Unlock()
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func serverErr(op string) error {
	return &api.ServerError{Op: op, StatusCode: 500, Body: "boom"}
}

func (f *fakeStore) ListBlocks(ctx context.Context) ([]models.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListBlocks"); err != nil {
		return nil, err
	}
	return append([]models.Block(nil), f.blocks...), nil
}

func (f *fakeStore) CreateBlock(ctx context.Context, b models.Block) (*models.Block, error) {
	f.wait("CreateBlock")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateBlock"); err != nil {
		return nil, err
	}
	b.ID = f.nextCreatedID
	if b.ID == "" {
		b.ID = fmt.Sprintf("blk-%d", 100+len(f.blocks))
	}
	f.blocks = append(f.blocks, b)
	return &b, nil
}

func (f *fakeStore) UpdateBlock(ctx context.Context, id string, patch map[string]interface{}) (*models.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateBlock"); err != nil {
		return nil, err
	}
	for i, b := range f.blocks {
		if b.ID != id {
			continue
		}
		if v, ok := patch["title"].(string); ok {
			b.Title = v
		}
		if v, ok := patch["visible"].(bool); ok {
			b.Visible = v
		}
		f.blocks[i] = b
		// Partial answer: only the id and changed title.
		return &models.Block{ID: id, Title: b.Title}, nil
	}
	return nil, &api.ServerError{Op: "update block", StatusCode: 404}
}

func (f *fakeStore) DeleteBlock(ctx context.Context, id string) error {
	f.wait("DeleteBlock")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteBlock"); err != nil {
		return err
	}
	for i, b := range f.blocks {
		if b.ID == id {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
			return nil
		}
	}
	return &api.ServerError{Op: "delete block", StatusCode: 404}
}

func (f *fakeStore) ReorderBlocks(ctx context.Context, ids []string) error {
	f.wait("ReorderBlocks")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ReorderBlocks"); err != nil {
		return err
	}
	ordered := make([]models.Block, 0, len(f.blocks))
	for _, id := range ids {
		for _, b := range f.blocks {
			if b.ID == id {
				ordered = append(ordered, b)
			}
		}
	}
	f.blocks = ordered
	return nil
}

func (f *fakeStore) GetProfile(ctx context.Context) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetProfile"); err != nil {
		return nil, err
	}
	p := f.profile
	return &p, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, patch map[string]interface{}) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateProfile"); err != nil {
		return nil, err
	}
	if _, ok := patch[f.failField]; ok {
		return nil, serverErr("update profile")
	}
	f.profilePatch = append(f.profilePatch, patch)
	for k, v := range patch {
		s, _ := v.(string)
		f.profile = ProfileField(k).set(f.profile, s)
	}
	p := f.profile
	return &p, nil
}

func (f *fakeStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListProducts"); err != nil {
		return nil, err
	}
	return append([]models.Product(nil), f.products...), nil
}

func (f *fakeStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetProduct"); err != nil {
		return nil, err
	}
	for _, p := range f.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &api.ServerError{Op: "get product", StatusCode: 404}
}

func (f *fakeStore) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	f.wait("CreateProduct")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateProduct"); err != nil {
		return nil, err
	}
	p.ID = fmt.Sprintf("prd-%d", 100+len(f.products))
	f.products = append(f.products, p)
	return &p, nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, id string, patch map[string]interface{}) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateProduct"); err != nil {
		return nil, err
	}
	for i, p := range f.products {
		if p.ID != id {
			continue
		}
		if v, ok := patch["title"].(string); ok {
			p.Title = v
		}
		if v, ok := patch["price"].(int64); ok {
			p.Price = v
		}
		f.products[i] = p
		return &p, nil
	}
	return nil, &api.ServerError{Op: "update product", StatusCode: 404}
}

func (f *fakeStore) DeleteProduct(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("DeleteProduct")
}

func (f *fakeStore) AttachProductFile(ctx context.Context, productID, fileID string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AttachProductFile"); err != nil {
		return nil, err
	}
	for i, p := range f.products {
		if p.ID == productID {
			p.FileIDs = append(p.FileIDs, fileID)
			f.products[i] = p
			return &p, nil
		}
	}
	return nil, &api.ServerError{Op: "attach file", StatusCode: 404}
}

func (f *fakeStore) ListPurchases(ctx context.Context, filter api.PurchaseFilter) ([]models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListPurchases"); err != nil {
		return nil, err
	}
	var out []models.Purchase
	for _, p := range f.purchases {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetPurchase"); err != nil {
		return nil, err
	}
	for _, p := range f.purchases {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &api.ServerError{Op: "get purchase", StatusCode: 404}
}

func (f *fakeStore) RefundPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	f.wait("RefundPurchase")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RefundPurchase"); err != nil {
		return nil, err
	}
	for i, p := range f.purchases {
		if p.ID == id {
			p.Status = models.PurchaseStatusRefunded
			f.purchases[i] = p
			return &p, nil
		}
	}
	return nil, &api.ServerError{Op: "refund purchase", StatusCode: 404}
}

// fakeUploader completes every upload synchronously with a fixed descriptor.
type fakeUploader struct {
	mu    sync.Mutex
	opts  []transfer.Options
	files []transfer.File
	err   error
}

func (u *fakeUploader) Enqueue(ctx context.Context, file transfer.File, opts transfer.Options) (string, error) {
	u.mu.Lock()
	if u.err != nil {
		u.mu.Unlock()
		return "", u.err
	}
	u.opts = append(u.opts, opts)
	u.files = append(u.files, file)
	id := fmt.Sprintf("task-%d", len(u.files))
	u.mu.Unlock()

	if opts.OnComplete != nil {
		opts.OnComplete(id, &models.FileDescriptor{
			ID:           "file-" + file.Name,
			URL:          "https://cdn.example.com/" + file.Name,
			OriginalName: file.Name,
		})
	}
	return id, nil
}

type testEnv struct {
	store *fakeStore
	clk   *clock.Fake
	bus   *events.EventBus
	deps  Deps
}

func newTestEnv() *testEnv {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	c := cache.New(cache.WithClock(clk))
	bus := events.NewEventBus(256)
	return &testEnv{
		store: newFakeStore(),
		clk:   clk,
		bus:   bus,
		deps: Deps{
			Cache:     c,
			Engine:    mutation.NewEngine(c, bus, nil),
			Policy:    cache.DefaultPolicy(),
			Uploader:  &fakeUploader{},
			Debouncer: mutation.NewDebouncer(clk, 500*time.Millisecond),
		},
	}
}
