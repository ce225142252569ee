package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pgschema/pgreconcile/internal/connector"
	"github.com/pgschema/pgreconcile/internal/ir"
)

type fakeQuerier struct {
	calls   []string
	results []*connector.ResultSet
}

func (f *fakeQuerier) PreparedQuery(_ context.Context, sql string, params ...any) (*connector.ResultSet, error) {
	f.calls = append(f.calls, strings.Join(strings.Fields(sql), " "))
	if len(f.results) == 0 {
		return &connector.ResultSet{}, nil
	}
	rs := f.results[0]
	f.results = f.results[1:]
	return rs, nil
}

func TestApplyType(t *testing.T) {
	tests := []struct {
		typ  string
		want ir.LiveColumn
	}{
		{"integer", ir.LiveColumn{Type: "integer", BaseType: "integer"}},
		{"character varying(255)", ir.LiveColumn{Type: "character varying(255)", BaseType: "character varying", Length: 255}},
		{"character varying(50)[]", ir.LiveColumn{Type: "character varying(50)[]", BaseType: "character varying", Length: 50, Array: true}},
		{"numeric(9,2)", ir.LiveColumn{Type: "numeric(9,2)", BaseType: "numeric", Precision: 9, Scale: 2}},
		{"timestamp(3) without time zone", ir.LiveColumn{Type: "timestamp(3) without time zone", BaseType: "timestamp without time zone", Precision: 3}},
		{"bigint[]", ir.LiveColumn{Type: "bigint[]", BaseType: "bigint", Array: true}},
		{"tsvector", ir.LiveColumn{Type: "tsvector", BaseType: "tsvector"}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			var got ir.LiveColumn
			applyType(&got, tt.typ)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("applyType(%q) mismatch (-want +got):\n%s", tt.typ, diff)
			}
		})
	}
}

func TestFillFactor(t *testing.T) {
	tests := []struct {
		options string
		want    int
	}{
		{"", 0},
		{"fillfactor=70", 70},
		{"deduplicate_items=off,fillfactor=90", 90},
		{"fastupdate=on", 0},
	}
	for _, tt := range tests {
		if got := fillFactor(tt.options); got != tt.want {
			t.Errorf("fillFactor(%q) = %d; want %d", tt.options, got, tt.want)
		}
	}
}

func TestDecodeTriggerArgs(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"nil", nil, nil},
		{"raw bytes", []byte("ts_Content\x00pg_catalog.english\x00Title\x00Body\x00"), []string{"ts_Content", "pg_catalog.english", "Title", "Body"}},
		{"escape text", `ts_Content\000pg_catalog.english\000Title\000`, []string{"ts_Content", "pg_catalog.english", "Title"}},
		{"hex text", `\x74735f7800656e00410000`, []string{"ts_x", "en", "A", ""}},
		{"escaped backslash", `a\\b\000c\000`, []string{`a\b`, "c"}},
		{"empty", []byte{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeTriggerArgs(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeTriggerArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIndexColumns(t *testing.T) {
	tests := []struct {
		name       string
		definition string
		want       []string
		wantErr    bool
	}{
		{
			name:       "quoted columns",
			definition: `CREATE UNIQUE INDEX "ix_abc" ON public."Page" USING btree ("URLSegment", "ParentID")`,
			want:       []string{"URLSegment", "ParentID"},
		},
		{
			name:       "lowercase column",
			definition: `CREATE INDEX ix ON public.page USING gin (ts_content)`,
			want:       []string{"ts_content"},
		},
		{
			name:       "expression key",
			definition: `CREATE INDEX ix ON public.page USING btree (lower(name))`,
			want:       []string{"lower(name)"},
		},
		{
			name:       "empty",
			definition: "",
			wantErr:    true,
		},
		{
			name:       "not an index",
			definition: "SELECT 1",
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := indexColumns(tt.definition)
			if (err != nil) != tt.wantErr {
				t.Fatalf("indexColumns() error = %v; wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("indexColumns() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestColumnsAreCachedUntilInvalidated(t *testing.T) {
	rs := &connector.ResultSet{
		Columns: []string{"column_name", "data_type", "not_null", "column_default"},
		Records: []connector.Record{
			{"column_name": "ID", "data_type": "bigint", "not_null": true, "column_default": `nextval('"Page_ID_seq"'::regclass)`},
			{"column_name": "Title", "data_type": "character varying(255)", "not_null": false, "column_default": nil},
		},
	}
	q := &fakeQuerier{results: []*connector.ResultSet{rs, rs}}
	in := New(q, "public")
	ctx := context.Background()

	for range 3 {
		cols, err := in.Columns(ctx, "Page")
		if err != nil {
			t.Fatalf("Columns: %v", err)
		}
		if len(cols) != 2 || !cols[0].HasSequenceDefault() || cols[1].Length != 255 {
			t.Fatalf("Columns = %+v", cols)
		}
	}
	if len(q.calls) != 1 {
		t.Errorf("queries = %d; want 1 while cached", len(q.calls))
	}

	in.Invalidate("Page")
	if _, err := in.Columns(ctx, "Page"); err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if len(q.calls) != 2 {
		t.Errorf("queries = %d; want 2 after invalidation", len(q.calls))
	}
}

func TestTableExistsCachesNegativeAnswers(t *testing.T) {
	q := &fakeQuerier{}
	in := New(q, "public")
	ctx := context.Background()

	for range 2 {
		exists, err := in.TableExists(ctx, "Missing")
		if err != nil {
			t.Fatalf("TableExists: %v", err)
		}
		if exists {
			t.Errorf("TableExists = true; want false")
		}
	}
	if len(q.calls) != 1 {
		t.Errorf("queries = %d; want 1", len(q.calls))
	}

	// A CREATE TABLE invalidates the entry and the next read hits the catalog.
	q.results = []*connector.ResultSet{{Columns: []string{"found"}, Records: []connector.Record{{"found": int64(1)}}}}
	in.Invalidate("Missing")
	exists, err := in.TableExists(ctx, "Missing")
	if err != nil || !exists {
		t.Errorf("TableExists after invalidation = %v, %v; want true", exists, err)
	}
}

func TestSetSchemaResetsCache(t *testing.T) {
	q := &fakeQuerier{}
	in := New(q, "public")
	ctx := context.Background()

	if _, err := in.TableExists(ctx, "Page"); err != nil {
		t.Fatal(err)
	}
	if in.cache.Len() != 1 {
		t.Fatalf("cache len = %d; want 1", in.cache.Len())
	}
	in.SetSchema("tenant_a")
	if in.cache.Len() != 0 {
		t.Errorf("cache len after SetSchema = %d; want 0", in.cache.Len())
	}
	if in.Schema() != "tenant_a" {
		t.Errorf("Schema() = %q; want tenant_a", in.Schema())
	}
}

func TestTriggerArgumentsDropsLeadingArguments(t *testing.T) {
	q := &fakeQuerier{results: []*connector.ResultSet{{
		Columns: []string{"tgargs"},
		Records: []connector.Record{{"tgargs": []byte("ts_Content\x00pg_catalog.english\x00Title\x00Body\x00")}},
	}}}
	in := New(q, "public")

	args, exists, err := in.TriggerArguments(context.Background(), "Page", "ts_abc")
	if err != nil {
		t.Fatalf("TriggerArguments: %v", err)
	}
	if !exists {
		t.Fatal("exists = false; want true")
	}
	if diff := cmp.Diff([]string{"Title", "Body"}, args); diff != "" {
		t.Errorf("TriggerArguments mismatch (-want +got):\n%s", diff)
	}

	args, exists, err = in.TriggerArguments(context.Background(), "Page", "ts_missing")
	if err != nil || exists || args != nil {
		t.Errorf("missing trigger = %v, %v, %v; want nil, false, nil", args, exists, err)
	}
}
