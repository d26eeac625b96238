package segmentation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery_ScopesToAccount(t *testing.T) {
	account := uuid.New()
	sql, args, err := NewQueryBuilder().SetAccountID(account).BuildQuery("eq(page_name,pricing)")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "SELECT DISTINCT e.visitor_id\nFROM behavioral_events e"))
	assert.Contains(t, sql, "e.account_id = $1")
	assert.Contains(t, sql, "e.page_name = $2")
	require.Len(t, args, 2)
	assert.Equal(t, account, args[0])
	assert.Equal(t, "pricing", args[1])
}

func TestBuildQuery_Operators(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		contains string
		args     []interface{}
	}{
		{"ne keeps nulls", "ne(location,Berlin)", "(e.location IS NULL OR e.location <> $2)", []interface{}{"Berlin"}},
		{"eq null", "eq(location,null())", "e.location IS NULL", nil},
		{"ne null", "ne(location,null())", "e.location IS NOT NULL", nil},
		{"gt number", "gt(time_stayed,30)", "e.time_stayed > $2", []interface{}{30.0}},
		{"le number", "le(latitude,-12.5)", "e.latitude <= $2", []interface{}{-12.5}},
		{"in", "in(button_clicked,(buy,subscribe))", "e.button_clicked IN ($2, $3)", []interface{}{"buy", "subscribe"}},
		{"out", "out(button_clicked,(buy))", "(e.button_clicked IS NULL OR e.button_clicked NOT IN ($2))", []interface{}{"buy"}},
		{"like", "like(page_url,*checkout*)", "e.page_url LIKE $2", []interface{}{"%checkout%"}},
		{"ilike escapes", `ilike(page_name,"50%_off*")`, "e.page_name ILIKE $2", []interface{}{`50\%\_off%`}},
		{"created date", "ge(created,2024-01-31)", "e.created_at >= $2", []interface{}{time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := NewQueryBuilder().SetAccountID(uuid.New()).BuildQuery(tt.query)
			require.NoError(t, err)
			assert.Contains(t, sql, tt.contains)
			assert.Equal(t, tt.args, args[1:])
		})
	}
}

func TestBuildQuery_Logical(t *testing.T) {
	sql, args, err := NewQueryBuilder().SetAccountID(uuid.New()).
		BuildQuery("and(eq(page_name,home),or(eq(location,Berlin),not(eq(device,mobile))))")
	require.NoError(t, err)

	assert.Contains(t, sql, "(e.page_name = $2) AND ((e.location = $3) OR (NOT (e.device = $4)))")
	assert.Len(t, args, 4)
}

func TestBuildQuery_ArgumentsResetBetweenBuilds(t *testing.T) {
	qb := NewQueryBuilder().SetAccountID(uuid.New())
	_, first, err := qb.BuildQuery("eq(page_name,a)")
	require.NoError(t, err)
	_, second, err := qb.BuildQuery("eq(page_name,b)")
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
	assert.Equal(t, "b", second[1])
}

func TestValidate(t *testing.T) {
	valid := []string{
		"eq(page_name,home)",
		"and(eq(page_name,home),gt(time_stayed,10))",
		"in(location,(Berlin,Paris))&lt(created,2025-01-01T00:00:00Z)",
	}
	for _, q := range valid {
		assert.NoError(t, Validate(q), q)
	}

	invalid := map[string]string{
		"syntax":          "eq(page_name,home",
		"unknown field":   "eq(password,secret)",
		"number expected": "gt(time_stayed,long)",
		"bad timestamp":   "gt(created,yesterday)",
		"boolean":         "eq(page_name,true())",
		"like on number":  "like(latitude,1*)",
		"null in list":    "in(location,(null(),Berlin))",
		"null compare":    "gt(time_stayed,null())",
	}
	for name, q := range invalid {
		t.Run(name, func(t *testing.T) {
			err := Validate(q)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestHashQuery(t *testing.T) {
	a := uuid.New()
	assert.Equal(t, HashQuery(a, "eq(page_name,home)"), HashQuery(a, " eq(page_name,home) "))
	assert.NotEqual(t, HashQuery(a, "eq(page_name,home)"), HashQuery(uuid.New(), "eq(page_name,home)"))
}
