package employees_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/roles"
	"github.com/odyssey-erp/employee-console/internal/shared"
)

type fakeAPI struct {
	list    []employees.Employee
	listErr error
	get     map[string]employees.Employee
	me      *employees.Employee
	meErr   error
	created employees.Employee
	updated employees.Employee
	err     error
	deleted []string
	// onList runs while a list call is in flight.
	onList func()
}

func (f *fakeAPI) ListEmployees(context.Context) ([]employees.Employee, error) {
	if f.onList != nil {
		hook := f.onList
		f.onList = nil
		hook()
	}
	return f.list, f.listErr
}

func (f *fakeAPI) GetEmployee(_ context.Context, id string) (employees.Employee, error) {
	if e, ok := f.get[id]; ok {
		return e, nil
	}
	return employees.Employee{}, shared.ErrNotFound
}

func (f *fakeAPI) GetEmployeeByEmail(_ context.Context, email string) (employees.Employee, error) {
	for _, e := range f.get {
		if e.Email == email {
			return e, nil
		}
	}
	return employees.Employee{}, shared.ErrNotFound
}

func (f *fakeAPI) Me(context.Context) (employees.Employee, error) {
	if f.me != nil {
		return *f.me, nil
	}
	if f.meErr != nil {
		return employees.Employee{}, f.meErr
	}
	return employees.Employee{}, shared.ErrNotFound
}

func (f *fakeAPI) CreateEmployee(context.Context, employees.CreatePayload) (employees.Employee, error) {
	return f.created, f.err
}

func (f *fakeAPI) UpdateEmployee(context.Context, string, employees.UpdatePayload) (employees.Employee, error) {
	return f.updated, f.err
}

func (f *fakeAPI) DeleteEmployee(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type notice struct{ kind, message string }

type notices struct {
	mu   sync.Mutex
	seen []notice
}

func (n *notices) Notify(_ context.Context, kind, message string) {
	n.mu.Lock()
	n.seen = append(n.seen, notice{kind, message})
	n.mu.Unlock()
}

func (n *notices) last() notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.seen) == 0 {
		return notice{}
	}
	return n.seen[len(n.seen)-1]
}

func emp(id string) employees.Employee {
	return employees.Employee{ID: id, FirstName: "E" + id, Email: id + "@example.com", Role: roles.Employee}
}

func loadedStore(t *testing.T, api *fakeAPI, items ...employees.Employee) (*employees.Store, *notices) {
	t.Helper()
	n := &notices{}
	store := employees.NewStore(api, employees.WithNotifier(n))
	api.list = items
	require.NoError(t, store.List(context.Background()))
	return store, n
}

func ids(items []employees.Employee) []string {
	out := make([]string, 0, len(items))
	for _, e := range items {
		out = append(out, e.ID)
	}
	return out
}

func TestListReplacesItemsWholesale(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"), emp("2"))

	state := store.Snapshot()
	assert.True(t, state.Loaded)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
	assert.Equal(t, []string{"1", "2"}, ids(state.Items))

	api.list = []employees.Employee{emp("3")}
	require.NoError(t, store.List(context.Background()))
	assert.Equal(t, []string{"3"}, ids(store.Snapshot().Items))
}

func TestListFailureKeepsLastKnownGood(t *testing.T) {
	api := &fakeAPI{}
	store, n := loadedStore(t, api, emp("1"), emp("2"))

	api.listErr = shared.ErrUnavailable
	err := store.List(context.Background())
	require.ErrorIs(t, err, shared.ErrUnavailable)

	state := store.Snapshot()
	assert.Equal(t, []string{"1", "2"}, ids(state.Items))
	assert.ErrorIs(t, state.Err, shared.ErrUnavailable)
	assert.False(t, state.Loading)
	assert.Equal(t, employees.NoticeError, n.last().kind)

	api.listErr = nil
	require.NoError(t, store.List(context.Background()))
	assert.NoError(t, store.Snapshot().Err)
}

func TestGetByIDDoesNotTouchMirror(t *testing.T) {
	api := &fakeAPI{get: map[string]employees.Employee{"9": emp("9")}}
	store, _ := loadedStore(t, api, emp("1"))

	got, ok := store.GetByID(context.Background(), "9")
	require.True(t, ok)
	assert.Equal(t, "9", got.ID)

	_, ok = store.GetByID(context.Background(), "missing")
	assert.False(t, ok)

	state := store.Snapshot()
	assert.Equal(t, []string{"1"}, ids(state.Items))
	assert.NoError(t, state.Err, "a lookup miss is not a store error")
}

func TestCreatePrependsAndMarksStale(t *testing.T) {
	api := &fakeAPI{}
	store, n := loadedStore(t, api, emp("1"), emp("2"))

	api.created = emp("3")
	created, err := store.Create(context.Background(), employees.CreatePayload{})
	require.NoError(t, err)
	assert.Equal(t, "3", created.ID)

	state := store.Snapshot()
	assert.Equal(t, []string{"3", "1", "2"}, ids(state.Items))
	assert.True(t, state.Stale)
	assert.Equal(t, employees.NoticeSuccess, n.last().kind)
}

func TestCreateWithExistingIDAppearsOnce(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"), emp("2"))

	api.created = emp("2")
	_, err := store.Create(context.Background(), employees.CreatePayload{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(store.Snapshot().Items))
}

func TestCreateWithoutIDIsMalformed(t *testing.T) {
	api := &fakeAPI{}
	store, n := loadedStore(t, api, emp("1"))

	api.created = employees.Employee{FirstName: "Ghost"}
	_, err := store.Create(context.Background(), employees.CreatePayload{})
	require.ErrorIs(t, err, shared.ErrMalformedResponse)

	state := store.Snapshot()
	assert.Equal(t, []string{"1"}, ids(state.Items))
	assert.False(t, state.Stale)
	assert.Equal(t, employees.NoticeError, n.last().kind)
}

func TestCreateFailurePropagates(t *testing.T) {
	api := &fakeAPI{err: errors.New("boom")}
	store, _ := loadedStore(t, api, emp("1"))

	_, err := store.Create(context.Background(), employees.CreatePayload{})
	require.Error(t, err)
	assert.Equal(t, []string{"1"}, ids(store.Snapshot().Items))
	assert.False(t, store.Snapshot().Stale)
}

func TestUpdateReplacesInPlace(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"), emp("2"), emp("3"))

	changed := emp("2")
	changed.FirstName = "Changed"
	api.updated = changed
	_, err := store.Update(context.Background(), "2", employees.UpdatePayload{})
	require.NoError(t, err)

	state := store.Snapshot()
	require.Len(t, state.Items, 3)
	assert.Equal(t, []string{"1", "2", "3"}, ids(state.Items))
	assert.Equal(t, "Changed", state.Items[1].FirstName)
	assert.True(t, state.Stale)
}

func TestUpdateFailureLeavesItems(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"))

	api.updated = employees.Employee{}
	_, err := store.Update(context.Background(), "1", employees.UpdatePayload{})
	require.ErrorIs(t, err, shared.ErrMalformedResponse)

	api.err = shared.ErrForbidden
	_, err = store.Update(context.Background(), "1", employees.UpdatePayload{})
	require.ErrorIs(t, err, shared.ErrForbidden)

	state := store.Snapshot()
	assert.Equal(t, "E1", state.Items[0].FirstName)
	assert.False(t, state.Stale)
}

func TestRemoveFiltersAndMarksStale(t *testing.T) {
	api := &fakeAPI{}
	store, n := loadedStore(t, api, emp("1"), emp("2"))

	require.NoError(t, store.Remove(context.Background(), "1"))
	state := store.Snapshot()
	assert.Equal(t, []string{"2"}, ids(state.Items))
	assert.True(t, state.Stale)
	assert.Equal(t, []string{"1"}, api.deleted)
	assert.Equal(t, notice{employees.NoticeSuccess, "Employee deleted"}, n.last())
}

func TestRemoveFailureLeavesItems(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"), emp("2"))

	api.err = shared.ErrUnavailable
	require.ErrorIs(t, store.Remove(context.Background(), "1"), shared.ErrUnavailable)
	assert.Equal(t, []string{"1", "2"}, ids(store.Snapshot().Items))
	assert.False(t, store.Snapshot().Stale)
}

func TestClearStaleAndNeedsRefresh(t *testing.T) {
	api := &fakeAPI{}
	store := employees.NewStore(api)
	assert.True(t, store.NeedsRefresh())

	api.list = []employees.Employee{emp("1")}
	require.NoError(t, store.List(context.Background()))
	assert.False(t, store.NeedsRefresh())

	require.NoError(t, store.Remove(context.Background(), "1"))
	assert.True(t, store.NeedsRefresh())
	store.ClearStale()
	assert.False(t, store.NeedsRefresh())
}

func TestSnapshotIsACopy(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"))

	state := store.Snapshot()
	state.Items[0].FirstName = "mutated"
	got, ok := store.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "E1", got.FirstName)
	_, ok = store.Lookup("nope")
	assert.False(t, ok)
}

func TestMeFallsBackToEmail(t *testing.T) {
	api := &fakeAPI{get: map[string]employees.Employee{"5": emp("5")}}
	store := employees.NewStore(api)

	got, ok := store.Me(context.Background(), "5@example.com")
	require.True(t, ok)
	assert.Equal(t, "5", got.ID)

	me := emp("7")
	api.me = &me
	got, ok = store.Me(context.Background(), "5@example.com")
	require.True(t, ok)
	assert.Equal(t, "7", got.ID)

	api.me, api.meErr = nil, shared.ErrUnauthorized
	_, ok = store.Me(context.Background(), "5@example.com")
	assert.False(t, ok)
}

type countingRecorder struct {
	mu  sync.Mutex
	ops map[string]int
}

func (r *countingRecorder) RecordStoreOp(op string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = map[string]int{}
	}
	key := op + ":fail"
	if ok {
		key = op + ":ok"
	}
	r.ops[key]++
}

func TestRecorderSeesOperations(t *testing.T) {
	api := &fakeAPI{list: []employees.Employee{emp("1")}}
	rec := &countingRecorder{}
	store := employees.NewStore(api, employees.WithRecorder(rec))

	require.NoError(t, store.List(context.Background()))
	require.NoError(t, store.Remove(context.Background(), "1"))
	api.err = errors.New("down")
	require.Error(t, store.Remove(context.Background(), "1"))

	assert.Equal(t, 1, rec.ops["list:ok"])
	assert.Equal(t, 1, rec.ops["remove:ok"])
	assert.Equal(t, 1, rec.ops["remove:fail"])
}

func TestRefreshClearsStale(t *testing.T) {
	api := &fakeAPI{created: emp("3")}
	store, _ := loadedStore(t, api, emp("1"))
	_, err := store.Create(context.Background(), employees.CreatePayload{})
	require.NoError(t, err)
	require.True(t, store.NeedsRefresh())

	api.list = []employees.Employee{emp("3"), emp("1")}
	require.NoError(t, store.Refresh(context.Background()))
	assert.False(t, store.Snapshot().Stale)
	assert.False(t, store.NeedsRefresh())
}

func TestRefreshKeepsStaleWhenMutationLandsMidList(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"))
	api.onList = func() {
		api.updated = emp("1")
		_, err := store.Update(context.Background(), "1", employees.UpdatePayload{})
		require.NoError(t, err)
	}

	require.NoError(t, store.Refresh(context.Background()))
	assert.True(t, store.Snapshot().Stale)
	assert.True(t, store.NeedsRefresh())
}

func TestRefreshFailureKeepsStale(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"))
	require.NoError(t, store.Remove(context.Background(), "1"))

	api.listErr = shared.ErrUnavailable
	require.Error(t, store.Refresh(context.Background()))
	assert.True(t, store.Snapshot().Stale)
}

func TestResetForgetsMirror(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"), emp("2"))
	require.NoError(t, store.Remove(context.Background(), "2"))

	store.Reset()
	snap := store.Snapshot()
	assert.Empty(t, snap.Items)
	assert.False(t, snap.Loaded)
	assert.False(t, snap.Stale)
	assert.True(t, store.NeedsRefresh())
}

func TestResetDropsResultsInFlight(t *testing.T) {
	api := &fakeAPI{}
	store, _ := loadedStore(t, api, emp("1"))
	api.list = []employees.Employee{emp("1"), emp("2")}
	api.onList = store.Reset

	require.NoError(t, store.List(context.Background()))
	snap := store.Snapshot()
	assert.Empty(t, snap.Items)
	assert.False(t, snap.Loaded)
}
