package kit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bakeshop-backend/internal/cart"
	"github.com/angelmondragon/bakeshop-backend/internal/catalog"
	"github.com/angelmondragon/bakeshop-backend/internal/notifications"
	"github.com/angelmondragon/bakeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
	"github.com/angelmondragon/bakeshop-backend/pkg/metrics"
)

type stubCatalog map[uuid.UUID]catalog.Product

func (s stubCatalog) GetProduct(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	p, ok := s[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &p, nil
}

type recordingSink struct{ got []notifications.Notification }

func (r *recordingSink) Notify(_ context.Context, n notifications.Notification) {
	r.got = append(r.got, n)
}

type recorderStub struct {
	outcomes []string
	valid    int
	invalid  int
}

func (r *recorderStub) ObserveResolution(_ string, valid bool) {
	if valid {
		r.valid++
		return
	}
	r.invalid++
}

func (r *recorderStub) IncKitSession(outcome string) { r.outcomes = append(r.outcomes, outcome) }

type failingCarts struct{ err error }

func (f failingCarts) Mutate(_ context.Context, _, _ string, fn func(*cart.Store) error) (*cart.View, error) {
	if err := fn(cart.NewStore(nil)); err != nil {
		return nil, err
	}
	return nil, f.err
}

type kitFixture struct {
	svc     Service
	carts   cart.Service
	sink    *recordingSink
	metrics *recorderStub
}

func newKitFixture(t *testing.T, carts cartMutator) kitFixture {
	t.Helper()
	products := stubCatalog{cookies().ID: cookies(), bread().ID: bread()}
	cartSvc, err := cart.NewService(cart.ServiceParams{
		Snapshots: cart.NewMemorySnapshotRepository(),
		Catalog:   products,
	})
	require.NoError(t, err)
	if carts == nil {
		carts = cartSvc
	}
	sink := &recordingSink{}
	rec := &recorderStub{}
	svc, err := NewService(ServiceParams{
		Registry: NewRegistry(RegistryConfig{MaxItems: 12}),
		Catalog:  products,
		Carts:    carts,
		Sink:     sink,
		Metrics:  rec,
	})
	require.NoError(t, err)
	return kitFixture{svc: svc, carts: cartSvc, sink: sink, metrics: rec}
}

func (f kitFixture) start(t *testing.T) Snapshot {
	t.Helper()
	snap, err := f.svc.Start(context.Background())
	require.NoError(t, err)
	return snap
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	t.Parallel()
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Registry: NewRegistry(RegistryConfig{}), Catalog: stubCatalog{}})
	require.Error(t, err)
}

func TestServiceCompleteMergesIntoPersistedCart(t *testing.T) {
	t.Parallel()
	f := newKitFixture(t, nil)
	ctx := context.Background()

	_, err := f.carts.AddProduct(ctx, "c-1", cart.AddProductInput{ProductID: cookies().ID, Quantity: 2})
	require.NoError(t, err)

	snap := f.start(t)
	_, err = f.svc.SelectItem(ctx, snap.ID, cookies().ID, false)
	require.NoError(t, err)
	_, err = f.svc.SelectItem(ctx, snap.ID, bread().ID, false)
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, snap.ID)
	require.NoError(t, err)
	_, err = f.svc.ChangeQuantity(ctx, snap.ID, 1, 3)
	require.NoError(t, err)
	snap, err = f.svc.Next(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.KitStepConfirming, snap.Step)

	view, err := f.svc.Complete(ctx, snap.ID, "c-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	// 2 from the cart plus 2 from the kit lands in the 4..6 bracket.
	assert.Equal(t, 4, view.Items[0].Quantity)
	assert.True(t, view.Items[0].UnitPrice.Equal(dec("20")))
	assert.Equal(t, 3, view.Items[1].Quantity)
	assert.True(t, view.Total.Equal(dec("90.50")))

	persisted, err := f.carts.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, persisted.Total.Equal(dec("90.50")))

	_, err = f.svc.Get(ctx, snap.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, []string{metrics.OutcomeCompleted}, f.metrics.outcomes)
	require.NotEmpty(t, f.sink.got)
	last := f.sink.got[len(f.sink.got)-1]
	assert.Equal(t, enums.NotificationLevelSuccess, last.Level)
	assert.Equal(t, "c-1", last.CartID)
	assert.Equal(t, snap.ID.String(), last.KitID)
}

func TestServiceCompleteFailureKeepsSessionOpen(t *testing.T) {
	t.Parallel()
	f := newKitFixture(t, failingCarts{err: pkgerrors.New(pkgerrors.CodeDependency, "save cart")})
	ctx := context.Background()

	snap := f.start(t)
	_, err := f.svc.SelectItem(ctx, snap.ID, bread().ID, false)
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, snap.ID)
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, snap.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, snap.ID, "c-1")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	got, err := f.svc.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.False(t, got.Closed)
	assert.Equal(t, enums.KitStepConfirming, got.Step)
	assert.Len(t, got.Items, 1)
	assert.Empty(t, f.metrics.outcomes)
}

func TestServiceCompleteOutsideConfirmingIsConflict(t *testing.T) {
	t.Parallel()
	f := newKitFixture(t, nil)
	ctx := context.Background()
	snap := f.start(t)

	_, err := f.svc.Complete(ctx, snap.ID, "c-1")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	view, err := f.carts.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestServiceInvalidQuantityNotifiesFailure(t *testing.T) {
	t.Parallel()
	f := newKitFixture(t, nil)
	ctx := context.Background()
	snap := f.start(t)
	_, err := f.svc.SelectItem(ctx, snap.ID, cookies().ID, false)
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, snap.ID)
	require.NoError(t, err)

	_, err = f.svc.ChangeQuantity(ctx, snap.ID, 0, 1)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity))

	require.Len(t, f.sink.got, 1)
	assert.Equal(t, enums.NotificationLevelFailure, f.sink.got[0].Level)
	assert.Equal(t, "minimum quantity is 2 units", f.sink.got[0].Message)
	assert.Equal(t, 1, f.metrics.invalid)
	assert.Equal(t, 1, f.metrics.valid)
}

func TestServiceCancel(t *testing.T) {
	t.Parallel()
	f := newKitFixture(t, nil)
	ctx := context.Background()
	_, err := f.carts.AddProduct(ctx, "c-1", cart.AddProductInput{ProductID: bread().ID, Quantity: 1})
	require.NoError(t, err)

	snap := f.start(t)
	_, err = f.svc.SelectItem(ctx, snap.ID, cookies().ID, false)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, snap.ID))

	view, err := f.carts.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Total.Equal(dec("3.50")))
	assert.Equal(t, []string{metrics.OutcomeCancelled}, f.metrics.outcomes)

	err = f.svc.Cancel(ctx, snap.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestServiceSelectUnknownProduct(t *testing.T) {
	t.Parallel()
	f := newKitFixture(t, nil)
	ctx := context.Background()
	snap := f.start(t)

	_, err := f.svc.SelectItem(ctx, snap.ID, uuid.New(), false)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestServiceChangeItemIsAtomic(t *testing.T) {
	t.Parallel()
	f := newKitFixture(t, nil)
	ctx := context.Background()
	snap := f.start(t)
	_, err := f.svc.SelectItem(ctx, snap.ID, cookies().ID, false)
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, snap.ID)
	require.NoError(t, err)

	qty, unit := 5, 0
	_, err = f.svc.ChangeItem(ctx, snap.ID, 0, &qty, &unit)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity))

	got, err := f.svc.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, 1, got.Items[0].UnitQuantity)

	unit = 2
	got, err = f.svc.ChangeItem(ctx, snap.ID, 0, &qty, &unit)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Items[0].Quantity)
	assert.Equal(t, 2, got.Items[0].UnitQuantity)
	assert.True(t, got.Items[0].UnitPrice.Equal(dec("20")))
}

func TestServiceSelectChocolateVariant(t *testing.T) {
	t.Parallel()
	f := newKitFixture(t, nil)
	ctx := context.Background()
	snap := f.start(t)

	_, err := f.svc.SelectItem(ctx, snap.ID, bread().ID, true)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	got, err := f.svc.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestServiceStartRefusedAtCapacity(t *testing.T) {
	t.Parallel()
	svc, err := NewService(ServiceParams{
		Registry: NewRegistry(RegistryConfig{MaxSessions: 1}),
		Catalog:  stubCatalog{},
		Carts:    failingCarts{},
	})
	require.NoError(t, err)

	_, err = svc.Start(context.Background())
	require.NoError(t, err)
	_, err = svc.Start(context.Background())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeRateLimit))
}
