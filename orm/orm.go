package orm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goMormot "github.com/MrEthical07/goMormot"
	"github.com/MrEthical07/goMormot/transport"
)

var (
	// ErrEmptyTable is returned for an empty table name.
	ErrEmptyTable = errors.New("orm: table name must not be empty")
	// ErrNoRows is returned by Select when the result array is empty.
	ErrNoRows = errors.New("orm: no rows")
	// ErrMissingLocation is returned by Insert when the server omits or
	// garbles the Location header.
	ErrMissingLocation = errors.New("orm: response has no Table/ID Location header")
	// ErrEmptySet is returned by UpdateWhere without fields to set.
	ErrEmptySet = errors.New("orm: update needs at least one field")
)

// Requester sends one mORMot request. *goMormot.Client satisfies it.
type Requester interface {
	Request(ctx context.Context, verb, path string, header http.Header, paramsOrBody any, sign bool) (*transport.Response, error)
}

// Tables issues ORM requests through a Requester.
type Tables struct {
	client Requester
}

// New returns Tables bound to client.
func New(client Requester) *Tables {
	return &Tables{client: client}
}

func (t *Tables) do(ctx context.Context, verb, path string, paramsOrBody any) (*transport.Response, error) {
	return t.client.Request(ctx, verb, path, nil, paramsOrBody, true)
}

func selectParams(fields, where string) goMormot.Params {
	var p goMormot.Params
	if fields != "" {
		p = p.Add("select", fields)
	}
	if where != "" {
		p = p.Add("where", where)
	}
	return p
}

// SelectAll returns every row of the "result" array. A response that is a
// single object is returned as one row.
func (t *Tables) SelectAll(ctx context.Context, table, fields, where string) ([]json.RawMessage, error) {
	if table == "" {
		return nil, ErrEmptyTable
	}
	resp, err := t.do(ctx, http.MethodGet, table, selectParams(fields, where))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}

	raw, ok := resp.Result()
	if !ok {
		if len(resp.Body) == 0 {
			return nil, nil
		}
		return []json.RawMessage{json.RawMessage(resp.Body)}, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return []json.RawMessage{raw}, nil
	}
	return rows, nil
}

// Select returns the first row matching where.
func (t *Tables) Select(ctx context.Context, table, fields, where string) (json.RawMessage, error) {
	rows, err := t.SelectAll(ctx, table, fields, where)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

// Get decodes row id of table into out.
func (t *Tables) Get(ctx context.Context, table string, id int64, fields string, out any) error {
	if table == "" {
		return ErrEmptyTable
	}
	resp, err := t.do(ctx, http.MethodGet, recordPath(table, id), selectParams(fields, ""))
	if err != nil {
		return fmt.Errorf("get %s/%d: %w", table, id, err)
	}
	return resp.Decode(out)
}

// Insert posts data as a new row and returns the ID the server assigned.
func (t *Tables) Insert(ctx context.Context, table string, data any) (int64, error) {
	if table == "" {
		return 0, ErrEmptyTable
	}
	resp, err := t.do(ctx, http.MethodPost, table, data)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return idFromLocation(resp.Location())
}

// idFromLocation parses "Table/ID", optionally with a leading root path.
func idFromLocation(loc string) (int64, error) {
	i := strings.LastIndexByte(loc, '/')
	if i < 0 {
		return 0, ErrMissingLocation
	}
	id, err := strconv.ParseInt(loc[i+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMissingLocation, loc)
	}
	return id, nil
}

// Update sends data as the new field values of row id.
func (t *Tables) Update(ctx context.Context, table string, id int64, data any) error {
	if table == "" {
		return ErrEmptyTable
	}
	if _, err := t.do(ctx, http.MethodPut, recordPath(table, id), data); err != nil {
		return fmt.Errorf("update %s/%d: %w", table, id, err)
	}
	return nil
}

// UpdateWhere sets the fields in set on every row whose fields equal where.
// Both lists keep their order on the wire.
func (t *Tables) UpdateWhere(ctx context.Context, table string, where, set goMormot.Params) error {
	if table == "" {
		return ErrEmptyTable
	}
	if len(set) == 0 {
		return ErrEmptySet
	}

	q := make(goMormot.Params, 0, 2*(len(set)+len(where)))
	for _, kv := range set {
		q = q.Add("setname", kv.Key).Add("set", kv.Value)
	}
	for _, kv := range where {
		q = q.Add("wherename", kv.Key).Add("where", kv.Value)
	}

	// PUT carries a body, so the query is encoded into the path.
	if _, err := t.do(ctx, http.MethodPut, table+"?"+q.Encode(), nil); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// Delete removes row id.
func (t *Tables) Delete(ctx context.Context, table string, id int64) error {
	if table == "" {
		return ErrEmptyTable
	}
	if _, err := t.do(ctx, http.MethodDelete, recordPath(table, id), nil); err != nil {
		return fmt.Errorf("delete %s/%d: %w", table, id, err)
	}
	return nil
}

// DeleteWhere removes every row matching where.
func (t *Tables) DeleteWhere(ctx context.Context, table, where string) error {
	if table == "" {
		return ErrEmptyTable
	}
	path := table + "?" + goMormot.NewParams("where", where).Encode()
	if _, err := t.do(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func recordPath(table string, id int64) string {
	return table + "/" + strconv.FormatInt(id, 10)
}
