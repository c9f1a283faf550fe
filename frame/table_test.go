package frame

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsDuplicateColumns(t *testing.T) {
	_, err := New([]string{"a", "b", "a"})
	require.Error(t, err)
}

func TestReindex(t *testing.T) {
	tbl := MustNew("notes", "age", "category_code")
	require.NoError(t, tbl.AppendRow([]Cell{Str("hello"), Str("5"), Str("bio")}))
	require.NoError(t, tbl.AppendRow([]Cell{Null(), Str("7"), Str("web")}))

	out, err := tbl.Reindex([]string{"age", "category_code", "closed_year"})
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "category_code", "closed_year"}, out.Columns())
	want := [][]Cell{
		{Str("5"), Str("bio"), Null()},
		{Str("7"), Str("web"), Null()},
	}
	got := [][]Cell{out.Row(0), out.Row(1)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("reindexed rows mismatch (-want +got):\n%s", diff)
	}
	// source untouched
	assert.Equal(t, []string{"notes", "age", "category_code"}, tbl.Columns())
}

func TestReindexEmptyTable(t *testing.T) {
	out, err := MustNew("x").Reindex([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, []string{"a", "b"}, out.Columns())
}

func TestSetColumnReplacesOrAppends(t *testing.T) {
	tbl := MustNew("a")
	require.NoError(t, tbl.AppendRow([]Cell{Str("1")}))

	require.NoError(t, tbl.SetColumn("b", []Cell{Str("x")}))
	require.NoError(t, tbl.SetColumn("a", []Cell{Str("2")}))
	require.Error(t, tbl.SetColumn("c", nil))

	assert.Equal(t, []string{"a", "b"}, tbl.Columns())
	assert.Equal(t, []Cell{Str("2"), Str("x")}, tbl.Row(0))
}

func TestCloneIsDeep(t *testing.T) {
	tbl := MustNew("a")
	require.NoError(t, tbl.AppendRow([]Cell{Str("1")}))
	c := tbl.Clone()
	c.FillColumn("a", Str("9"))
	c.FillColumn("b", Str("0"))

	assert.Equal(t, []string{"a"}, tbl.Columns())
	cell, _ := tbl.Get(0, "a")
	assert.Equal(t, Str("1"), cell)
}

func TestHead(t *testing.T) {
	tbl := MustNew("a")
	for _, v := range []string{"1", "2", "3"} {
		require.NoError(t, tbl.AppendRow([]Cell{Str(v)}))
	}
	assert.Equal(t, 2, tbl.Head(2).Len())
	assert.Equal(t, 3, tbl.Head(10).Len())
	assert.Equal(t, 3, tbl.Len())
}

func TestMarshalJSON(t *testing.T) {
	tbl := MustNew("a", "b")
	require.NoError(t, tbl.AppendRow([]Cell{Str("1"), Null()}))

	payload, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["a","b"],"rows":[["1",null]]}`, string(payload))
}

func TestReadCSV(t *testing.T) {
	input := "\xef\xbb\xbfage,category_code,,age\n5,bio,x,6\n7\n"
	tbl, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "category_code", "Unnamed: 2", "age.1"}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []Cell{Str("5"), Str("bio"), Str("x"), Str("6")}, tbl.Row(0))
	assert.Equal(t, []Cell{Str("7"), Null(), Null(), Null()}, tbl.Row(1))
}

func TestReadCSVUTF16(t *testing.T) {
	// "a,b\n1,2\n" as UTF-16LE with BOM
	input := []byte{0xff, 0xfe, 'a', 0, ',', 0, 'b', 0, '\n', 0, '1', 0, ',', 0, '2', 0, '\n', 0}
	tbl, err := ReadCSV(bytes.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns())
	assert.Equal(t, []Cell{Str("1"), Str("2")}, tbl.Row(0))
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoColumns)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	tbl := MustNew("name", "Prediction")
	require.NoError(t, tbl.AppendRow([]Cell{Str("Acme, Inc."), Str("operating")}))
	require.NoError(t, tbl.AppendRow([]Cell{Null(), Str("closed")}))

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	assert.Equal(t, "name,Prediction\n\"Acme, Inc.\",operating\n,closed\n", buf.String())
}

func TestFromRecordKeepsKeyOrder(t *testing.T) {
	tbl, err := FromRecord(json.RawMessage(`{"zeta": 5, "alpha": "bio", "flag": true, "gone": null, "f": 1.50}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "flag", "gone", "f"}, tbl.Columns())
	assert.Equal(t, []Cell{Str("5"), Str("bio"), Str("true"), Null(), Str("1.50")}, tbl.Row(0))
}

func TestFromRecordRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `"x"`, `{"a": {"b": 1}}`, `{"a": 1, "a": 2}`, `{`} {
		_, err := FromRecord(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}
