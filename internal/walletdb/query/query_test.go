package query

import (
	"strings"
	"testing"
)

func TestCompileConstraintsEmpty(t *testing.T) {
	sql, args := CompileConstraints(nil)
	if sql != "" {
		t.Errorf("sql = %q, want empty", sql)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want empty", args)
	}
}

func TestCompileConstraintsEquality(t *testing.T) {
	sql, args := CompileConstraints(map[string]any{"is_reserved": 0})
	if sql != " AND is_reserved = :is_reserved" {
		t.Errorf("sql = %q", sql)
	}
	if args["is_reserved"] != 0 {
		t.Errorf("args = %v", args)
	}
}

func TestCompileConstraintsSuffixes(t *testing.T) {
	tests := []struct {
		key     string
		wantCol string
		wantOp  string
	}{
		{"height__not", "height", "!="},
		{"height__lt", "height", "<"},
		{"height__lte", "height", "<="},
		{"height__gt", "height", ">"},
		{"address__like", "address", "LIKE"},
	}
	for _, tc := range tests {
		sql, args := CompileConstraints(map[string]any{tc.key: 5})
		want := " AND " + tc.wantCol + " " + tc.wantOp + " :" + tc.key
		if sql != want {
			t.Errorf("CompileConstraints(%q) sql = %q, want %q", tc.key, sql, want)
		}
		if args[tc.key] != 5 {
			t.Errorf("CompileConstraints(%q) args = %v", tc.key, args)
		}
	}
}

func TestCompileConstraintsAny(t *testing.T) {
	sql, args := CompileConstraints(map[string]any{
		"account": "addr1",
		"height__any": map[string]any{
			"height__gt": 100,
			"height__lt": 200,
		},
	})
	if !strings.Contains(sql, "account = :account") {
		t.Errorf("sql = %q, want account equality clause", sql)
	}
	if !strings.Contains(sql, "(height > :height__any_height__gt OR height < :height__any_height__lt)") {
		t.Errorf("sql = %q, want parenthesized OR subgroup", sql)
	}
	if _, ok := args["account"]; !ok {
		t.Errorf("missing account arg: %v", args)
	}
	if _, ok := args["height__any_height__gt"]; !ok {
		t.Errorf("missing promoted __any subkey arg: %v", args)
	}
	if _, ok := args["height__any_height__lt"]; !ok {
		t.Errorf("missing promoted __any subkey arg: %v", args)
	}
}

func TestConstraintsBuilderMatchesMapForm(t *testing.T) {
	built := New().Eq("account", "addr1").Lt("height", 500).Map()
	sql, args := CompileConstraints(built)
	if sql == "" {
		t.Error("expected non-empty sql")
	}
	if args["account"] != "addr1" || args["height__lt"] != 500 {
		t.Errorf("args = %v", args)
	}
}
