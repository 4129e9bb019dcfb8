package validate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knownTables(names ...string) map[string]struct{} {
	tables := make(map[string]struct{}, len(names))
	for _, n := range names {
		tables[strings.ToLower(n)] = struct{}{}
	}
	return tables
}

func TestValidate_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t  "} {
		result := Validate(q, knownTables("employees"))
		assert.False(t, result.IsValid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "empty query", result.Errors[0])
	}
}

func TestValidate_ValidSelect(t *testing.T) {
	result := Validate("SELECT id, first_name FROM employees WHERE salary > 50000", knownTables("employees"))
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidate_OnlySelectAllowed(t *testing.T) {
	cases := []string{
		"INSERT INTO employees VALUES (1)",
		"UPDATE employees SET salary = 0",
		"DELETE FROM employees",
		"WITH x AS (SELECT 1) SELECT * FROM x",
		"EXPLAIN SELECT * FROM employees",
	}
	for _, q := range cases {
		result := Validate(q, knownTables("employees"))
		assert.False(t, result.IsValid, q)
		assert.Contains(t, result.Errors, "only SELECT queries are allowed", q)
	}
}

func TestValidate_ForbiddenKeywords(t *testing.T) {
	tests := []struct {
		sql     string
		keyword string
	}{
		{"SELECT * FROM employees; DROP TABLE employees", "DROP"},
		{"SELECT * FROM employees WHERE id IN (DELETE FROM employees)", "DELETE"},
		{"SELECT * FROM employees UNION SELECT * FROM employees; TRUNCATE TABLE sales", "TRUNCATE"},
		{"SELECT name FROM employees; ALTER TABLE employees ADD col INT", "ALTER"},
		{"SELECT * FROM employees; CREATE TABLE evil (id INT)", "CREATE"},
		{"SELECT * FROM employees; INSERT INTO employees VALUES (1)", "INSERT"},
		{"SELECT * FROM employees; UPDATE employees SET x = 1", "UPDATE"},
		{"SELECT * FROM employees; GRANT ALL ON employees TO evil", "GRANT"},
		{"SELECT * FROM employees; REVOKE ALL ON employees FROM good", "REVOKE"},
		{"SELECT * FROM employees WHERE exec('x')", "EXEC"},
		{"SELECT execute FROM employees", "EXECUTE"},
	}
	for _, tc := range tests {
		result := Validate(tc.sql, knownTables("employees"))
		assert.False(t, result.IsValid, tc.sql)
		assert.Contains(t, result.Errors, fmt.Sprintf("forbidden keyword: %s", tc.keyword), tc.sql)
	}
}

func TestValidate_ForbiddenPrefixes(t *testing.T) {
	result := Validate("SELECT * FROM employees WHERE xp_cmdshell('dir')", knownTables("employees"))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "forbidden keyword: xp_")

	result = Validate("SELECT sp_helpdb FROM employees", knownTables("employees"))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "forbidden keyword: sp_")
}

func TestValidate_KeywordInsideIdentifierIsAllowed(t *testing.T) {
	// "created_at" contains CREATE but not as a whole word.
	result := Validate("SELECT created_at FROM employees", knownTables("employees"))
	assert.True(t, result.IsValid, result.Errors)
}

func TestValidate_Comments(t *testing.T) {
	cases := []string{
		"SELECT * FROM employees -- hidden",
		"SELECT * FROM employees /* hidden */",
		"SELECT * FROM employees # hidden",
	}
	for _, q := range cases {
		result := Validate(q, knownTables("employees"))
		assert.False(t, result.IsValid, q)
		assert.Contains(t, result.Errors, "comments are not allowed", q)
	}
}

func TestValidate_MultipleStatements(t *testing.T) {
	result := Validate("SELECT * FROM employees; SELECT * FROM employees", knownTables("employees"))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "multiple statements are not allowed")

	// A trailing semicolon with nothing after it is fine.
	result = Validate("SELECT * FROM employees;", knownTables("employees"))
	assert.NotContains(t, result.Errors, "multiple statements are not allowed")
}

func TestValidate_Balance(t *testing.T) {
	result := Validate("SELECT COUNT( FROM employees", knownTables("employees"))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "unmatched parentheses")

	result = Validate("SELECT * FROM employees WHERE name = 'O'Brien'", knownTables("employees"))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "unmatched single quotes")

	result = Validate(`SELECT * FROM employees WHERE name = "Ann`, knownTables("employees"))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "unmatched double quotes")
}

func TestValidate_UnknownTable(t *testing.T) {
	result := Validate("SELECT * FROM ghost_table", knownTables("employees"))
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "referenced tables not found: ghost_table", result.Errors[0])
}

func TestValidate_QualifiedAndJoinedTables(t *testing.T) {
	result := Validate(
		"SELECT e.id FROM employees e JOIN departments d ON e.department = d.name",
		knownTables("employees", "departments"),
	)
	assert.True(t, result.IsValid, result.Errors)

	// main.employees reduces to its leading segment.
	result = Validate("SELECT * FROM main.employees", knownTables("main"))
	assert.True(t, result.IsValid, result.Errors)
}

func TestValidate_MultipleUnknownTablesNamedTogether(t *testing.T) {
	result := Validate("SELECT * FROM ghost JOIN phantom ON ghost.id = phantom.id", knownTables("employees"))
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ghost")
	assert.Contains(t, result.Errors[0], "phantom")
}

func TestValidate_ErrorsAccumulate(t *testing.T) {
	result := Validate("SELECT * FROM ghost -- sneak; DROP TABLE ghost", knownTables("employees"))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "comments are not allowed")
	assert.Contains(t, result.Errors, "forbidden keyword: DROP")
	assert.Contains(t, result.Errors, "referenced tables not found: ghost")
}

func TestValidate_ComplexityWarnings(t *testing.T) {
	joins := "SELECT * FROM a" +
		" JOIN b ON a.id = b.id JOIN c ON a.id = c.id JOIN d ON a.id = d.id" +
		" JOIN e ON a.id = e.id JOIN f ON a.id = f.id JOIN g ON a.id = g.id"
	result := Validate(joins, knownTables("a", "b", "c", "d", "e", "f", "g"))
	assert.True(t, result.IsValid, result.Errors)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "6 JOINs")

	result = Validate("SELECT id FROM employees HAVING COUNT(id) > 1", knownTables("employees"))
	assert.True(t, result.IsValid, result.Errors)
	assert.Contains(t, result.Warnings, "HAVING clause without GROUP BY may not work as expected")
}

func TestValidate_WarningsDoNotAffectValidity(t *testing.T) {
	result := Validate(
		"SELECT * FROM employees WHERE id IN ((SELECT id FROM employees)) AND department IN ((SELECT name FROM departments))",
		knownTables("employees", "departments"),
	)
	assert.True(t, result.IsValid, result.Errors)
	assert.NotEmpty(t, result.Warnings)
}
