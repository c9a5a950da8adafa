package orm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	goMormot "github.com/MrEthical07/goMormot"
	"github.com/MrEthical07/goMormot/internal/testutil/fakeserver"
	"github.com/MrEthical07/goMormot/transport"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	ID   int64  `json:"ID"`
	Name string `json:"Name"`
	City string `json:"City"`
}

func newTables(t *testing.T) (*Tables, *fakeserver.Server) {
	t.Helper()
	srv := fakeserver.New().User("alice", "secret").Table("People").Start(t)

	cfg := goMormot.DefaultConfig()
	cfg.Server.Host = srv.Host()
	cfg.Server.Port = srv.Port()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := goMormot.New().WithConfig(cfg).WithLogger(logger).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Login(context.Background(), "alice", "secret", false)
	require.NoError(t, err)

	return New(client), srv
}

func TestInsertReturnsLocationID(t *testing.T) {
	tables, srv := newTables(t)
	ctx := context.Background()

	id, err := tables.Insert(ctx, "People", map[string]any{"Name": "Ada", "City": "London"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = tables.Insert(ctx, "People", map[string]any{"Name": "Alan", "City": "Wilmslow"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	row, ok := srv.Row("People", 2)
	require.True(t, ok)
	assert.Equal(t, "Alan", row["Name"])
}

func TestSelectFirstRowAndAll(t *testing.T) {
	tables, srv := newTables(t)
	srv.PutRow("People", 1, fakeserver.Row{"ID": 1, "Name": "Ada", "City": "London"})
	srv.PutRow("People", 2, fakeserver.Row{"ID": 2, "Name": "Alan", "City": "London"})
	ctx := context.Background()

	raw, err := tables.Select(ctx, "People", "ID,Name", "City='London'")
	require.NoError(t, err)
	var first person
	require.NoError(t, json.Unmarshal(raw, &first))
	assert.Equal(t, person{ID: 1, Name: "Ada"}, first)

	rows, err := tables.SelectAll(ctx, "People", "", "City='London'")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	last := srv.Last()
	assert.Equal(t, "City='London'", last.Query.Get("where"))
	assert.Contains(t, last.RequestURI, "session_signature=")

	_, err = tables.Select(ctx, "People", "", "City='Paris'")
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestGetDecodesRow(t *testing.T) {
	tables, srv := newTables(t)
	srv.PutRow("People", 7, fakeserver.Row{"ID": 7, "Name": "Grace", "City": "Arlington"})

	var p person
	require.NoError(t, tables.Get(context.Background(), "People", 7, "", &p))
	assert.Equal(t, "Grace", p.Name)

	err := tables.Get(context.Background(), "People", 8, "", &p)
	var rej *transport.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, http.StatusNotFound, rej.StatusCode)
}

func TestUpdateByID(t *testing.T) {
	tables, srv := newTables(t)
	srv.PutRow("People", 1, fakeserver.Row{"ID": 1, "Name": "Ada", "City": "London"})

	require.NoError(t, tables.Update(context.Background(), "People", 1, map[string]any{"City": "Paris"}))
	row, _ := srv.Row("People", 1)
	assert.Equal(t, "Paris", row["City"])
	assert.Equal(t, "Ada", row["Name"])
}

func TestUpdateWhereSendsSetAndWherePairs(t *testing.T) {
	tables, srv := newTables(t)
	srv.PutRow("People", 1, fakeserver.Row{"ID": 1, "Name": "Ada", "City": "London"})
	srv.PutRow("People", 2, fakeserver.Row{"ID": 2, "Name": "Alan", "City": "Manchester"})

	err := tables.UpdateWhere(context.Background(), "People",
		goMormot.NewParams("Name", "Ada"),
		goMormot.NewParams("City", "Cambridge"),
	)
	require.NoError(t, err)

	last := srv.Last()
	assert.Equal(t, http.MethodPut, last.Method)
	assert.Equal(t, []string{"City"}, last.Query["setname"])
	assert.Equal(t, []string{"Cambridge"}, last.Query["set"])
	assert.Equal(t, []string{"Name"}, last.Query["wherename"])
	assert.Equal(t, []string{"Ada"}, last.Query["where"])

	row, _ := srv.Row("People", 1)
	assert.Equal(t, "Cambridge", row["City"])
	row, _ = srv.Row("People", 2)
	assert.Equal(t, "Manchester", row["City"])
}

func TestUpdateWhereRequiresSet(t *testing.T) {
	tables, _ := newTables(t)
	err := tables.UpdateWhere(context.Background(), "People", goMormot.NewParams("ID", 1), nil)
	assert.ErrorIs(t, err, ErrEmptySet)
}

func TestDeleteAndDeleteWhere(t *testing.T) {
	tables, srv := newTables(t)
	srv.PutRow("People", 1, fakeserver.Row{"ID": 1, "Name": "Ada", "City": "London"})
	srv.PutRow("People", 2, fakeserver.Row{"ID": 2, "Name": "Alan", "City": "London"})
	srv.PutRow("People", 3, fakeserver.Row{"ID": 3, "Name": "Grace", "City": "Arlington"})
	ctx := context.Background()

	require.NoError(t, tables.Delete(ctx, "People", 3))
	_, ok := srv.Row("People", 3)
	assert.False(t, ok)

	require.NoError(t, tables.DeleteWhere(ctx, "People", "City='London'"))
	_, ok = srv.Row("People", 1)
	assert.False(t, ok)
	assert.Equal(t, http.MethodDelete, srv.Last().Method)
}

func TestEmptyTableRejected(t *testing.T) {
	tables := New(nil)
	ctx := context.Background()

	_, err := tables.Select(ctx, "", "", "")
	assert.ErrorIs(t, err, ErrEmptyTable)
	_, err = tables.Insert(ctx, "", nil)
	assert.ErrorIs(t, err, ErrEmptyTable)
	assert.ErrorIs(t, tables.Delete(ctx, "", 1), ErrEmptyTable)
	assert.ErrorIs(t, tables.DeleteWhere(ctx, "", "x"), ErrEmptyTable)
}

func TestIDFromLocation(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"People/12", 12, false},
		{"root/People/5", 5, false},
		{"", 0, true},
		{"People/", 0, true},
		{"People/x", 0, true},
	}
	for _, tc := range cases {
		got, err := idFromLocation(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrMissingLocation, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}
