package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/kvlabel/internal/model"
)

func paths(pairs []model.ExtractedPair) []model.Path {
	out := make([]model.Path, len(pairs))
	for i, p := range pairs {
		out[i] = p.Path
	}
	return out
}

func TestExtractAll(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []model.ExtractedPair
	}{
		{
			name:    "nested object",
			payload: `{"a": {"b": 1}}`,
			want: []model.ExtractedPair{
				{Path: model.Path{"a", "b"}, Key: "b", Value: model.Number("1"), Source: model.SourceJSON},
			},
		},
		{
			name:    "namespace in header resets path",
			payload: `{"header": {"namespace": "N"}, "x": {"y": 2}}`,
			want: []model.ExtractedPair{
				{Path: model.Path{"<N>", "x", "y"}, Key: "y", Value: model.Number("2"), Source: model.SourceJSON},
			},
		},
		{
			name:    "namespace on object resets path",
			payload: `{"outer": {"namespace": "ns1", "k": "v"}}`,
			want: []model.ExtractedPair{
				{Path: model.Path{"<ns1>", "k"}, Key: "k", Value: model.String("v"), Source: model.SourceJSON},
			},
		},
		{
			name:    "list elements get a marker",
			payload: `{"ids": [1, "x"]}`,
			want: []model.ExtractedPair{
				{Path: model.Path{"ids", "[]"}, Key: "ids", Value: model.Number("1"), Source: model.SourceJSON},
				{Path: model.Path{"ids", "[]"}, Key: "ids", Value: model.String("x"), Source: model.SourceJSON},
			},
		},
		{
			name:    "assignment with json value",
			payload: `a=1&b={"c":2}`,
			want: []model.ExtractedPair{
				{Path: model.Path{"a"}, Key: "a", Value: model.String("1"), Source: model.SourceAmpersand},
				{Path: model.Path{"b"}, Key: "b", Value: model.String(`{"c":2}`), Source: model.SourceAmpersand},
				{Path: model.Path{"b", "c"}, Key: "c", Value: model.Number("2"), Source: model.SourceAmpersand},
			},
		},
		{
			name:    "json string leaf holding json",
			payload: `{"data":"{\"uid\":\"42\"}"}`,
			want: []model.ExtractedPair{
				{Path: model.Path{"data"}, Key: "data", Value: model.String(`{"uid":"42"}`), Source: model.SourceJSON},
				{Path: model.Path{"data", "~", "uid"}, Key: "uid", Value: model.String("42"), Source: model.SourceJSON},
			},
		},
		{
			name:    "json string leaf holding a query",
			payload: `{"url":"v=1&t=pageview"}`,
			want: []model.ExtractedPair{
				{Path: model.Path{"url"}, Key: "url", Value: model.String("v=1&t=pageview"), Source: model.SourceJSON},
				{Path: model.Path{"url", "~", "v"}, Key: "v", Value: model.String("1"), Source: model.SourceAmpersand},
				{Path: model.Path{"url", "~", "t"}, Key: "t", Value: model.String("pageview"), Source: model.SourceAmpersand},
			},
		},
		{
			name:    "leaf assignments follow every json pair",
			payload: `{"a":"x=1&y=2","b":3,"c":"s=1; t=2"}`,
			want: []model.ExtractedPair{
				{Path: model.Path{"a"}, Key: "a", Value: model.String("x=1&y=2"), Source: model.SourceJSON},
				{Path: model.Path{"b"}, Key: "b", Value: model.Number("3"), Source: model.SourceJSON},
				{Path: model.Path{"c"}, Key: "c", Value: model.String("s=1; t=2"), Source: model.SourceJSON},
				{Path: model.Path{"a", "~", "x"}, Key: "x", Value: model.String("1"), Source: model.SourceAmpersand},
				{Path: model.Path{"a", "~", "y"}, Key: "y", Value: model.String("2"), Source: model.SourceAmpersand},
				{Path: model.Path{"c", "~", "s"}, Key: "s", Value: model.String("1"), Source: model.SourceSemicolon},
				{Path: model.Path{"c", "~", "t"}, Key: "t", Value: model.String("2"), Source: model.SourceSemicolon},
			},
		},
		{
			name:    "padded tokens in leaves are not split",
			payload: `{"token":"dGVzdA==","sig":"YWJjZA="}`,
			want: []model.ExtractedPair{
				{Path: model.Path{"token"}, Key: "token", Value: model.String("dGVzdA=="), Source: model.SourceJSON},
				{Path: model.Path{"sig"}, Key: "sig", Value: model.String("YWJjZA="), Source: model.SourceJSON},
			},
		},
		{
			name:    "lone assignment at top level",
			payload: `a=1`,
			want: []model.ExtractedPair{
				{Path: model.Path{"a"}, Key: "a", Value: model.String("1"), Source: model.SourceAmpersand},
			},
		},
		{
			name:    "cookie header",
			payload: `sid=abc; theme=dark`,
			want: []model.ExtractedPair{
				{Path: model.Path{"sid"}, Key: "sid", Value: model.String("abc"), Source: model.SourceSemicolon},
				{Path: model.Path{"theme"}, Key: "theme", Value: model.String("dark"), Source: model.SourceSemicolon},
			},
		},
		{
			name:    "percent-encoded json in cookie",
			payload: `prefs=%7B%22lang%22%3A%22en%22%7D; sid=1`,
			want: []model.ExtractedPair{
				{Path: model.Path{"prefs"}, Key: "prefs", Value: model.String("%7B%22lang%22%3A%22en%22%7D"), Source: model.SourceSemicolon},
				{Path: model.Path{"prefs", "lang"}, Key: "lang", Value: model.String("en"), Source: model.SourceSemicolon},
				{Path: model.Path{"sid"}, Key: "sid", Value: model.String("1"), Source: model.SourceSemicolon},
			},
		},
		{
			name:    "url path before query string",
			payload: `/collect?v=2&tid=UA-1`,
			want: []model.ExtractedPair{
				{Path: model.Path{"v"}, Key: "v", Value: model.String("2"), Source: model.SourceAmpersand},
				{Path: model.Path{"tid"}, Key: "tid", Value: model.String("UA-1"), Source: model.SourceAmpersand},
			},
		},
		{
			name:    "key without value",
			payload: `a=1&flag`,
			want: []model.ExtractedPair{
				{Path: model.Path{"a"}, Key: "a", Value: model.String("1"), Source: model.SourceAmpersand},
				{Path: model.Path{"flag"}, Key: "flag", Value: model.String(""), Source: model.SourceAmpersand},
			},
		},
		{
			name:    "truncated json keeps decodable members",
			payload: `{"a": 1, "b": `,
			want: []model.ExtractedPair{
				{Path: model.Path{"a"}, Key: "a", Value: model.Number("1"), Source: model.SourceJSON},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAll(tt.payload)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractAll_NoStructure(t *testing.T) {
	for _, payload := range []string{"", "hello world", "   ", "}{][", `"unterminated`, "GET / HTTP/1.1"} {
		t.Run(payload, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Empty(t, ExtractAll(payload))
			})
		})
	}
}

func TestExtractAll_Deterministic(t *testing.T) {
	payload := `ev=click&ctx={"user":{"id":7,"tags":["a","b"]},"ref":"x=1;y=2"}&ts=1700000000`
	first := ExtractAll(payload)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ExtractAll(payload))
	}
}

func TestExtractAll_GroupOrder(t *testing.T) {
	rank := map[model.Source]int{model.SourceJSON: 0, model.SourceAmpersand: 1, model.SourceSemicolon: 2}
	payloads := []string{
		`{"q":"a=1&b={\"c\":\"d=1; e=2\"}","n":{"m":"k=v;w=z"},"last":true}`,
		`[{"u":"x=1&y=2"},{"v":1}]`,
		`ev=click&ctx={"user":{"id":7},"ref":"x=1;y=2"}&ts=1`,
	}

	for _, payload := range payloads {
		got := ExtractAll(payload)
		require.NotEmpty(t, got)
		for i := 1; i < len(got); i++ {
			assert.LessOrEqual(t, rank[got[i-1].Source], rank[got[i].Source],
				"%s pair %v before %s pair %v", got[i-1].Source, got[i-1].Path, got[i].Source, got[i].Path)
		}
	}
}

func TestExtractAll_DuplicateKeysAtDifferentPaths(t *testing.T) {
	got := ExtractAll(`{"id": 1, "device": {"id": "abc"}}`)
	require.Len(t, got, 2)
	assert.Equal(t, "id", got[0].Key)
	assert.Equal(t, "id", got[1].Key)
	assert.False(t, got[0].Path.Equal(got[1].Path))
}

func TestExtractAll_KeepsTrivialValues(t *testing.T) {
	got := ExtractAll(`{"a": "-", "b": [], "c": "x"}`)
	assert.Equal(t, []model.Path{{"a"}, {"c"}}, paths(got))
	assert.Equal(t, "-", got[0].Value.Str)
}

func TestFindJSONRegions(t *testing.T) {
	e := New(nil, Options{})

	t.Run("bare literal", func(t *testing.T) {
		regions := e.FindJSONRegions(`prefix {"a":1} suffix [2,3]`)
		require.Len(t, regions, 2)
		assert.False(t, regions[0].Keyed)
		assert.Equal(t, 7, regions[0].Start)
		assert.Equal(t, 14, regions[0].End)
		assert.Equal(t, model.KindArray, regions[1].Value.Kind)
	})

	t.Run("keyed literal", func(t *testing.T) {
		regions := e.FindJSONRegions(`garbage "token":"abc", more`)
		require.Len(t, regions, 1)
		assert.True(t, regions[0].Keyed)
		assert.Equal(t, "token", regions[0].Key)
		v, ok := regions[0].Value.Get("token")
		require.True(t, ok)
		assert.Equal(t, "abc", v.Str)
	})

	t.Run("decoded region suppresses inner candidates", func(t *testing.T) {
		regions := e.FindJSONRegions(`{"a":{"b":[1,2]}}`)
		require.Len(t, regions, 1)
		assert.Equal(t, model.KindObject, regions[0].Value.Kind)
	})

	t.Run("failed candidate does not abort scan", func(t *testing.T) {
		regions := e.FindJSONRegions(`{broken [1,2] {"ok":true}`)
		require.Len(t, regions, 2)
		assert.Equal(t, model.KindArray, regions[0].Value.Kind)
		v, ok := regions[1].Value.Get("ok")
		require.True(t, ok)
		assert.True(t, v.Bool)
	})
}

func TestDepthGuard(t *testing.T) {
	t.Run("default depth", func(t *testing.T) {
		payload := strings.Repeat("[", 200) + "1" + strings.Repeat("]", 200)
		var got []model.ExtractedPair
		require.NotPanics(t, func() { got = ExtractAll(payload) })
		require.Len(t, got, 1)
		assert.Len(t, got[0].Path, DefaultMaxDepth)
	})

	t.Run("custom depth", func(t *testing.T) {
		e := New(nil, Options{MaxDepth: 2})
		got := e.ExtractAll(`{"a":{"b":{"c":1}}}`)
		require.Len(t, got, 1)
		assert.Equal(t, model.Path{"a", "b", "c"}, got[0].Path)
	})
}

func TestSplitAssignments(t *testing.T) {
	e := New(nil, Options{})

	t.Run("no equals sign yields nothing", func(t *testing.T) {
		assert.Empty(t, e.SplitAssignments("just words & more", Ampersand))
	})

	t.Run("value keeps later equals signs", func(t *testing.T) {
		got := e.SplitAssignments("tok=abc==&x=1", Ampersand)
		require.Len(t, got, 2)
		assert.Equal(t, "abc==", got[0].Value.Str)
	})

	t.Run("semicolon not applied without semicolons", func(t *testing.T) {
		assert.Empty(t, e.SplitAssignments("a=1&b=2", Semicolon))
	})

	t.Run("nested list value", func(t *testing.T) {
		got := e.SplitAssignments(`ids=[{"k":1}]`, Ampersand)
		assert.Equal(t, []model.Path{{"ids"}, {"ids", "[]", "k"}}, paths(got))
	})
}

func TestExtractBatch(t *testing.T) {
	e := New(nil, Options{Workers: 3})
	payloads := []model.Payload{
		{ID: "1", Text: `{"a":1}`},
		{ID: "2", Text: `b=2`},
		{ID: "3", Text: `nothing`},
		{ID: "4", Text: `c=3; d=4`},
	}

	got, err := e.ExtractBatch(context.Background(), payloads)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, p := range payloads {
		assert.Equal(t, p.ID, got[i].PayloadID)
		assert.Equal(t, ExtractAll(p.Text), got[i].Pairs)
	}

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.ExtractBatch(ctx, payloads)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
