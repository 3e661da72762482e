package screen

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/facility-workbench/internal/confirm"
	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/form"
	"github.com/rflorenc/facility-workbench/internal/listing"
	"github.com/rflorenc/facility-workbench/internal/models"
	"github.com/rflorenc/facility-workbench/internal/notify"
	"github.com/rflorenc/facility-workbench/internal/resources"
)

func account(id int, first, last, role string) models.Item {
	return models.Item{
		"id":         float64(id),
		"first_name": first,
		"last_name":  last,
		"email":      fmt.Sprintf("%s@club.test", strings.ToLower(first)),
		"phone":      "0612345678",
		"role":       role,
	}
}

func mounted(t *testing.T, schema *models.Schema, items ...models.Item) (*Screen, *datasource.Fake, *notify.Center) {
	t.Helper()
	fake := datasource.NewFake("id", items...)
	notes := notify.NewCenter(time.Minute)
	t.Cleanup(notes.Close)
	sc := New(schema, fake, notes, Options{StageDir: t.TempDir()})
	t.Cleanup(sc.Close)
	require.NoError(t, sc.Mount(context.Background()))
	return sc, fake, notes
}

func lastNote(t *testing.T, notes *notify.Center) models.Notification {
	t.Helper()
	all := notes.List()
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func TestMountFetchesDefaultQuery(t *testing.T) {
	sc, fake, _ := mounted(t, resources.Accounts(), account(1, "Jane", "Smith", "user"))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].Query.Page)
	assert.Empty(t, calls[0].Query.Filters)
	assert.Empty(t, calls[0].Query.SearchText)

	v := sc.View()
	assert.Equal(t, StateReady, v.State)
	assert.Len(t, v.Items, 1)
	assert.Equal(t, "accounts", v.Resource)
	assert.Nil(t, v.Form)
	assert.Nil(t, v.Confirmation)
}

func TestSearchWithNoMatchesIsEmptyNotError(t *testing.T) {
	schema := resources.Accounts()
	schema.ServerFiltering = false
	sc, fake, _ := mounted(t, schema, account(1, "Jane", "Doe", "user"), account(2, "Omar", "Alaoui", "admin"))

	require.NoError(t, sc.SetSearchText(context.Background(), "smith"))
	v := sc.View()
	assert.Equal(t, StateEmpty, v.State)
	assert.Empty(t, v.Error)
	assert.True(t, v.Narrowed)
	assert.Equal(t, listing.ScopeCurrentPage, v.SearchScope)
	assert.Equal(t, 1, fake.CallCount("list"), "client-side search on page 1 needs no refetch")

	require.NoError(t, sc.ClearFilters(context.Background()))
	v = sc.View()
	assert.Equal(t, StateReady, v.State)
	assert.Len(t, v.Items, 2)
}

func TestServerSideMutationsRefetchFromFirstPage(t *testing.T) {
	var items []models.Item
	for i := 1; i <= 25; i++ {
		items = append(items, account(i, fmt.Sprintf("P%02d", i), "Player", "user"))
	}
	sc, fake, _ := mounted(t, resources.Accounts(), items...)

	require.NoError(t, sc.SetPage(context.Background(), 3))
	assert.Equal(t, 3, sc.View().Page)
	require.NoError(t, sc.SetFilter(context.Background(), "role", "admin"))
	assert.Equal(t, 1, sc.View().Page)
	require.NoError(t, sc.SetSort(context.Background(), "email"))

	calls := fake.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, 1, last.Query.Page)
	assert.Equal(t, "admin", last.Query.Filters["role"])
	assert.Equal(t, "email", last.Query.SortField)
}

func TestEditRoleShowsSuccessWithoutReload(t *testing.T) {
	sc, fake, notes := mounted(t, resources.Accounts(), account(1, "Jane", "Smith", "user"), account(2, "Omar", "Alaoui", "user"))
	listCalls := fake.CallCount("list")

	require.NoError(t, sc.OpenEdit(context.Background(), "1"))
	require.NoError(t, sc.SetField("role", "admin"))
	item, errs, err := sc.Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, "admin", item.Text("role"))

	var update *datasource.Call
	for _, c := range fake.Calls() {
		if c.Method == "update" {
			c := c
			update = &c
		}
	}
	require.NotNil(t, update)
	assert.Equal(t, "1", update.ID)
	assert.Equal(t, "admin", update.Fields.Text("role"))

	n := lastNote(t, notes)
	assert.Equal(t, models.NotifySuccess, n.Kind)
	assert.Contains(t, n.Message, "admin")

	v := sc.View()
	assert.Nil(t, v.Form)
	for _, it := range v.Items {
		if it.Key("id") == "1" {
			assert.Equal(t, "admin", it.Text("role"))
		}
	}
	assert.Equal(t, listCalls, fake.CallCount("list"), "row is patched in place")
}

func TestCreateWithoutEmailNeverCallsCreate(t *testing.T) {
	sc, fake, _ := mounted(t, resources.Accounts())
	require.NoError(t, sc.OpenCreate())
	require.NoError(t, sc.SetField("first_name", "Jane"))
	require.NoError(t, sc.SetField("last_name", "Smith"))
	require.NoError(t, sc.SetField("phone", "0612345678"))
	require.NoError(t, sc.SetField("password", "longenough"))

	_, errs, err := sc.Submit(context.Background())
	assert.ErrorIs(t, err, form.ErrInvalid)
	assert.Contains(t, errs, "email")
	assert.Equal(t, 0, fake.CallCount("create"))
	assert.Contains(t, sc.View().Form.Errors, "email")
}

func TestCreatePrependsRow(t *testing.T) {
	sc, _, notes := mounted(t, resources.Accounts(), account(1, "Jane", "Smith", "user"))
	require.NoError(t, sc.OpenCreate())
	for k, v := range map[string]string{
		"first_name": "Nadia", "last_name": "Benali", "email": "nadia@club.test",
		"phone": "0611111111", "password": "longenough",
	} {
		require.NoError(t, sc.SetField(k, v))
	}
	_, _, err := sc.Submit(context.Background())
	require.NoError(t, err)

	v := sc.View()
	require.Len(t, v.Items, 2)
	assert.Equal(t, "Nadia", v.Items[0].Text("first_name"))
	assert.Equal(t, 2, v.Total)
	assert.Equal(t, "Account Nadia Benali created.", lastNote(t, notes).Message)
}

func TestCancelDeleteMakesNoCall(t *testing.T) {
	sc, fake, _ := mounted(t, resources.Accounts(), account(1, "Jane", "Smith", "user"))
	require.NoError(t, sc.RequestAction(models.ActionDelete, "1", nil))
	require.NotNil(t, sc.View().Confirmation)

	assert.True(t, sc.CancelConfirmation())
	assert.Nil(t, sc.View().Confirmation)
	assert.Equal(t, 0, fake.CallCount("remove"))
}

func TestFormAndConfirmationAreExclusive(t *testing.T) {
	sc, _, _ := mounted(t, resources.Accounts(), account(1, "Jane", "Smith", "user"))

	require.NoError(t, sc.OpenCreate())
	assert.ErrorIs(t, sc.RequestAction(models.ActionDelete, "1", nil), ErrModalOpen)
	sc.CloseForm()

	require.NoError(t, sc.RequestAction(models.ActionDelete, "1", nil))
	assert.ErrorIs(t, sc.OpenCreate(), ErrModalOpen)
	assert.ErrorIs(t, sc.OpenEdit(context.Background(), "1"), ErrModalOpen)

	v := sc.View()
	assert.False(t, v.Form != nil && v.Confirmation != nil)
}

func TestConfirmDeleteRemovesRowAndRefreshes(t *testing.T) {
	sc, fake, notes := mounted(t, resources.Accounts(), account(1, "Jane", "Smith", "user"), account(2, "Omar", "Alaoui", "user"))
	require.NoError(t, sc.RequestAction(models.ActionDelete, "1", nil))
	out, err := sc.Confirm(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Gone)

	assert.Equal(t, 1, fake.CallCount("remove"))
	assert.Equal(t, 2, fake.CallCount("list"))
	v := sc.View()
	assert.Len(t, v.Items, 1)
	assert.Nil(t, v.Confirmation)
	n := lastNote(t, notes)
	assert.Equal(t, models.NotifySuccess, n.Kind)
	assert.Equal(t, "Account Jane Smith deleted.", n.Message)
}

func TestDeleteAlreadyDeletedIsInformational(t *testing.T) {
	sc, fake, notes := mounted(t, resources.Accounts(), account(1, "Jane", "Smith", "user"))
	require.NoError(t, fake.Remove(context.Background(), "1"))

	require.NoError(t, sc.RequestAction(models.ActionDelete, "1", nil))
	out, err := sc.Confirm(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Gone)
	assert.Equal(t, models.NotifyInfo, lastNote(t, notes).Kind)
	assert.Equal(t, StateEmpty, sc.View().State)
}

func TestToggleRole(t *testing.T) {
	sc, fake, notes := mounted(t, resources.Accounts(), account(1, "Jane", "Smith", "user"))
	require.NoError(t, sc.RequestAction(models.ActionToggleRole, "1", nil))
	p := sc.View().Confirmation
	require.NotNil(t, p)
	assert.Equal(t, "admin", p.Payload["role"])

	_, err := sc.Confirm(context.Background())
	require.NoError(t, err)
	calls := fake.Calls()
	var action datasource.Call
	for _, c := range calls {
		if c.Method == "action" {
			action = c
		}
	}
	assert.Equal(t, "role", action.Action)
	assert.Equal(t, "admin", action.Body["role"])
	assert.Equal(t, "admin", sc.View().Items[0].Text("role"))
	assert.Contains(t, lastNote(t, notes).Message, "admin")

	assert.ErrorIs(t, sc.RequestAction(models.ActionToggleRole, "99", nil), ErrNoTarget)
}

func TestResetCredentialKeepsDialogOnShortPassword(t *testing.T) {
	sc, fake, notes := mounted(t, resources.Accounts(), account(1, "Jane", "Smith", "user"))
	require.NoError(t, sc.RequestAction(models.ActionResetCredential, "1", map[string]interface{}{"password": "abc"}))

	_, err := sc.Confirm(context.Background())
	var pe *confirm.PrecheckError
	require.ErrorAs(t, err, &pe)
	v := sc.View()
	require.NotNil(t, v.Confirmation)
	assert.NotEmpty(t, v.Confirmation.Error)
	assert.Equal(t, models.NotifyError, lastNote(t, notes).Kind)
	assert.Equal(t, 0, fake.CallCount("action"))

	require.NoError(t, sc.SetConfirmationValue("password", "a-much-longer-one"))
	_, err = sc.Confirm(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sc.View().Confirmation)
	assert.Equal(t, 1, fake.CallCount("action"))
}

func TestUnsupportedActionRejected(t *testing.T) {
	sc, _, _ := mounted(t, resources.Settings(), models.Item{"id": float64(1), "key": "site_name", "value": "Club"})
	assert.ErrorIs(t, sc.RequestAction(models.ActionToggleRole, "1", nil), confirm.ErrUnsupported)
}

func TestFetchFailureIsErrorState(t *testing.T) {
	fake := datasource.NewFake("id")
	fake.ListErr = &datasource.FetchError{Method: "GET", Path: "/users", Status: 500, Message: "Database unavailable"}
	notes := notify.NewCenter(time.Minute)
	defer notes.Close()
	sc := New(resources.Accounts(), fake, notes, Options{})
	defer sc.Close()

	require.Error(t, sc.Mount(context.Background()))
	v := sc.View()
	assert.Equal(t, StateError, v.State)
	assert.Equal(t, "Database unavailable", v.Error)
	assert.Equal(t, models.NotifyError, lastNote(t, notes).Kind)

	fake.ListErr = nil
	require.NoError(t, sc.Refresh(context.Background()))
	assert.Equal(t, StateEmpty, sc.View().State)
}

func TestCloseReleasesEverything(t *testing.T) {
	sc, _, _ := mounted(t, resources.Terrains(), models.Item{"id": float64(1), "name": "Pitch A"})
	require.NoError(t, sc.OpenEdit(context.Background(), "1"))
	_, err := sc.Form().AttachImage("image", "pitch.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	staged := sc.Form().StagedPaths()
	require.Len(t, staged, 1)

	sc.Close()
	assert.Nil(t, sc.View().Form)
	assert.Empty(t, sc.Form().StagedPaths())
	assert.ErrorIs(t, sc.Refresh(context.Background()), ErrClosed)
	assert.ErrorIs(t, sc.OpenCreate(), ErrClosed)
	sc.Close()
}

func TestStore(t *testing.T) {
	notes := notify.NewCenter(time.Minute)
	defer notes.Close()
	st := NewStore()
	sc := New(resources.Accounts(), datasource.NewFake("id"), notes, Options{})
	id := st.Add(sc)
	assert.NotEmpty(t, id)
	assert.Same(t, sc, st.Get(id))
	assert.Len(t, st.List(), 1)

	assert.Equal(t, 0, st.Sweep(time.Hour))
	assert.Equal(t, 1, st.Sweep(-time.Second))
	assert.Nil(t, st.Get(id))
	assert.ErrorIs(t, sc.Refresh(context.Background()), ErrClosed)
	assert.False(t, st.Delete(id))
}
