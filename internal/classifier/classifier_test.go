package classifier

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  QueryType
	}{
		{"SELECT * FROM users", Read},
		{"  with cte as (select 1) select * from cte", Read},
		{"INSERT INTO users (id) VALUES (1)", Write},
		{"UPDATE users SET name = 'x' WHERE id = 1", Write},
		{"DELETE FROM users WHERE id = 1", Write},
		{"CREATE TABLE users (id INT)", DDL},
		{"ALTER TABLE users ADD COLUMN age INT", DDL},
		{"BEGIN", Txn},
		{"COMMIT", Txn},
		{"vacuum users", Unknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestRequiresPrimary(t *testing.T) {
	if !RequiresPrimary("SELECT * FROM accounts WHERE id = 1 FOR UPDATE") {
		t.Error("expected FOR UPDATE to require primary")
	}

	if !RequiresPrimary("INSERT INTO accounts (id) VALUES (1) RETURNING id") {
		t.Error("expected RETURNING to require primary")
	}

	if RequiresPrimary("SELECT * FROM accounts") {
		t.Error("expected plain select not to require primary")
	}
}

func TestIsCacheable(t *testing.T) {
	if !IsCacheable(Read, "SELECT * FROM accounts WHERE id = 1") {
		t.Error("expected plain read to be cacheable")
	}

	if IsCacheable(Write, "SELECT * FROM accounts") {
		t.Error("expected non-read classification not to be cacheable")
	}

	if IsCacheable(Read, "SELECT * FROM accounts WHERE id = 1 FOR UPDATE") {
		t.Error("expected FOR UPDATE read not to be cacheable")
	}

	if IsCacheable(Read, "SELECT NOW() FROM accounts") {
		t.Error("expected NOW() read not to be cacheable")
	}
}
