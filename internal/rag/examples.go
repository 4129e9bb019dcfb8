package rag

// exampleQueries seed the example collection with curated question/SQL
// pairs over the demo schema. They double as few-shot prompt material.
var exampleQueries = []struct {
	question    string
	sql         string
	explanation string
	complexity  string
}{
	{
		question:    "Show all employees in the engineering department",
		sql:         "SELECT * FROM employees WHERE department = 'Engineering'",
		explanation: "This query filters employees by department using a WHERE clause",
		complexity:  "simple",
	},
	{
		question:    "What is the average salary by department?",
		sql:         "SELECT department, AVG(salary) as avg_salary FROM employees GROUP BY department",
		explanation: "This query calculates average salary using GROUP BY and AVG aggregate function",
		complexity:  "medium",
	},
	{
		question: "Show top 5 highest paid employees with their department info",
		sql: "SELECT e.first_name, e.last_name, e.salary, d.name as department_name, d.location " +
			"FROM employees e JOIN departments d ON e.department = d.name " +
			"ORDER BY e.salary DESC LIMIT 5",
		explanation: "This query uses JOIN to combine employee and department data, with ORDER BY and LIMIT",
		complexity:  "complex",
	},
	{
		question:    "Which projects have budget exceeding 100000?",
		sql:         "SELECT name, budget, status FROM projects WHERE budget > 100000",
		explanation: "Simple comparison query filtering projects by budget threshold",
		complexity:  "simple",
	},
	{
		question: "Show sales performance by region for this year",
		sql: "SELECT region, COUNT(*) as total_sales, SUM(sale_amount) as total_revenue, AVG(sale_amount) as avg_sale " +
			"FROM sales WHERE strftime('%Y', sale_date) = strftime('%Y', 'now') " +
			"GROUP BY region ORDER BY total_revenue DESC",
		explanation: "Complex aggregation query with date filtering, multiple aggregate functions, and grouping",
		complexity:  "complex",
	},
	{
		question: "Find employees working on more than one active project",
		sql: "SELECT e.first_name, e.last_name, COUNT(ep.project_id) as project_count " +
			"FROM employees e " +
			"JOIN employee_projects ep ON e.id = ep.employee_id " +
			"JOIN projects p ON ep.project_id = p.id " +
			"WHERE p.status = 'active' " +
			"GROUP BY e.id, e.first_name, e.last_name " +
			"HAVING COUNT(ep.project_id) > 1",
		explanation: "Complex query with multiple JOINs, GROUP BY, and HAVING clause",
		complexity:  "complex",
	},
}
