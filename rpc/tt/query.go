package tt

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/tycoon-kv/tycoon/lib/blob"
	"github.com/tycoon-kv/tycoon/rpc/common"
)

// --------------------------------------------------------------------------
// Table index and query constants
// --------------------------------------------------------------------------

// Index types for SetIndex.
const (
	IndexStr   = 0
	IndexNum   = 1
	IndexToken = 2
	IndexQGram = 3

	indexOptimize = 9998
	indexDelete   = 9999
	indexKeep     = 1 << 24
)

// Condition operators for QueryBuilder.Filter. Combine with OpNegate or
// OpNoIndex as needed.
const (
	OpStrEq         = 0
	OpStrContains   = 1
	OpStrStartsWith = 2
	OpStrEndsWith   = 3
	OpStrAll        = 4
	OpStrAny        = 5
	OpStrAnyExact   = 6
	OpStrRegex      = 7
	OpNumEq         = 8
	OpNumGt         = 9
	OpNumGe         = 10
	OpNumLt         = 11
	OpNumLe         = 12
	OpNumBetween    = 13
	OpNumAnyExact   = 14
	OpFtsPhrase     = 15
	OpFtsAll        = 16
	OpFtsAny        = 17
	OpFtsExpression = 18

	OpNegate  = 1 << 24
	OpNoIndex = 1 << 25
)

// Result orderings for QueryBuilder.OrderBy.
const (
	OrderStrAsc  = 0
	OrderStrDesc = 1
	OrderNumAsc  = 2
	OrderNumDesc = 3
)

// --------------------------------------------------------------------------
// Index management
// --------------------------------------------------------------------------

// SetIndex creates an index on a table column. With keepExisting the call
// does not apply when the index already exists; the bool result reports
// whether it did.
func (c *Client) SetIndex(column string, indexType int, keepExisting bool) (bool, error) {
	if keepExisting {
		indexType |= indexKeep
	}
	return c.setIndex(column, indexType)
}

// OptimizeIndex rebuilds the index on a table column.
func (c *Client) OptimizeIndex(column string) (bool, error) {
	return c.setIndex(column, indexOptimize)
}

// DeleteIndex drops the index on a table column.
func (c *Client) DeleteIndex(column string) (bool, error) {
	return c.setIndex(column, indexDelete)
}

func (c *Client) setIndex(column string, op int) (bool, error) {
	args := [][]byte{[]byte(column), []byte(strconv.Itoa(op))}
	_, ok, err := c.Misc("setindex", args, true)
	return ok, err
}

// --------------------------------------------------------------------------
// Search expressions
// --------------------------------------------------------------------------

// packSearchCmd joins expression tokens with NUL bytes, the encoding the
// search channel expects for one condition.
func packSearchCmd(tokens ...string) []byte {
	return []byte(strings.Join(tokens, "\x00"))
}

// SearchResult is one record returned by a content-fetching search: the
// primary key and its table columns.
type SearchResult struct {
	Key     string
	Columns map[string]string
}

// search runs the raw search channel with an optional trailing command.
func (c *Client) search(expressions [][]byte, cmd string) ([][]byte, bool, error) {
	if cmd != "" {
		expressions = append(expressions, packSearchCmd(cmd))
	}
	return c.Misc("search", expressions, true)
}

// --------------------------------------------------------------------------
// Query builder
// --------------------------------------------------------------------------

type condition struct {
	column string
	op     int
	value  string
}

type ordering struct {
	column string
	order  int
}

// QueryBuilder accumulates conditions, orderings and paging for a table
// search. Builder methods return a clone, so partial queries can be shared
// and extended safely.
type QueryBuilder struct {
	conditions []condition
	orderings  []ordering
	limit      int
	offset     int
}

// NewQuery creates an empty query.
func NewQuery() *QueryBuilder {
	return &QueryBuilder{limit: -1, offset: -1}
}

// clone copies the builder so modifier methods never mutate their receiver
func (q *QueryBuilder) clone() *QueryBuilder {
	obj := &QueryBuilder{
		conditions: append([]condition(nil), q.conditions...),
		orderings:  append([]ordering(nil), q.orderings...),
		limit:      q.limit,
		offset:     q.offset,
	}
	return obj
}

// Filter adds a condition on a column.
func (q *QueryBuilder) Filter(column string, op int, value string) *QueryBuilder {
	obj := q.clone()
	obj.conditions = append(obj.conditions, condition{column, op, value})
	return obj
}

// OrderBy adds a result ordering.
func (q *QueryBuilder) OrderBy(column string, order int) *QueryBuilder {
	obj := q.clone()
	obj.orderings = append(obj.orderings, ordering{column, order})
	return obj
}

// Limit caps the number of results.
func (q *QueryBuilder) Limit(limit int) *QueryBuilder {
	obj := q.clone()
	obj.limit = limit
	return obj
}

// Offset skips the first results.
func (q *QueryBuilder) Offset(offset int) *QueryBuilder {
	obj := q.clone()
	obj.offset = offset
	return obj
}

// buildSearch compiles the query into search channel expressions
func (q *QueryBuilder) buildSearch() [][]byte {
	var cmds [][]byte
	for _, cond := range q.conditions {
		cmds = append(cmds, packSearchCmd("addcond", cond.column, strconv.Itoa(cond.op), cond.value))
	}
	for _, ord := range q.orderings {
		cmds = append(cmds, packSearchCmd("setorder", ord.column, strconv.Itoa(ord.order)))
	}
	if q.limit >= 0 || q.offset >= 0 {
		limit := q.limit
		if limit < 0 {
			limit = 1 << 31
		}
		offset := q.offset
		if offset < 0 {
			offset = 0
		}
		cmds = append(cmds, packSearchCmd("setlimit", strconv.Itoa(limit), strconv.Itoa(offset)))
	}
	return cmds
}

// Execute runs the query and returns matching primary keys.
func (q *QueryBuilder) Execute(c *Client) ([]string, error) {
	results, _, err := c.search(q.buildSearch(), "")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(results))
	for _, item := range results {
		keys = append(keys, string(item))
	}
	return keys, nil
}

// Count runs the query and returns the number of matching records.
func (q *QueryBuilder) Count(c *Client) (int64, error) {
	results, ok, err := c.search(q.buildSearch(), "count")
	if err != nil {
		return 0, err
	}
	if !ok || len(results) == 0 {
		return 0, nil
	}
	count, err := strconv.ParseInt(string(results[0]), 10, 64)
	if err != nil {
		return 0, common.NewError(common.ErrProtocol, "search count returned %q", results[0])
	}
	return count, nil
}

// Delete runs the query and removes every matching record.
func (q *QueryBuilder) Delete(c *Client) error {
	_, _, err := c.search(q.buildSearch(), "out")
	return err
}

// Get runs the query and fetches matching records with their columns.
//
// Each returned item carries a leading NUL, then the key, a NUL separator
// and the column bytes; the split is on the first NUL after skipping the
// leading byte, and the remainder is the column table.
func (q *QueryBuilder) Get(c *Client) ([]SearchResult, error) {
	results, ok, err := c.search(q.buildSearch(), "get")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	records := make([]SearchResult, 0, len(results))
	for _, item := range results {
		if len(item) < 1 {
			return nil, common.NewError(common.ErrProtocol, "search get returned an empty item")
		}
		key, rest, found := bytes.Cut(item[1:], []byte{0})
		if !found {
			return nil, common.NewError(common.ErrProtocol, "search get item has no key separator")
		}
		records = append(records, SearchResult{
			Key:     string(key),
			Columns: blob.DecodeTable(rest),
		})
	}
	return records, nil
}
