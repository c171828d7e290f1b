package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// BuiltinTools returns the default tool set: a mock search tool, a calculator,
// and a clock.
func BuiltinTools() []Tool {
	return []Tool{
		&FuncTool{
			ToolName: "mock_search",
			ToolDesc: "Search for information. Returns mock search results.",
			ToolParams: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Search query"},
				},
				"required": []string{"query"},
			},
			Fn: func(ctx context.Context, args map[string]any) (string, error) {
				query, _ := args["query"].(string)
				return mockSearch(query)
			},
		},
		&FuncTool{
			ToolName: "calculate",
			ToolDesc: "Evaluate a mathematical expression. Supports basic arithmetic (+, -, *, /, ^, %, sqrt).",
			ToolParams: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expression": map[string]any{"type": "string", "description": "Mathematical expression to evaluate"},
				},
				"required": []string{"expression"},
			},
			Fn: func(ctx context.Context, args map[string]any) (string, error) {
				expr, _ := args["expression"].(string)
				if expr == "" {
					return "Error: expression is required", nil
				}
				return calculate(expr), nil
			},
		},
		&FuncTool{
			ToolName: "current_datetime",
			ToolDesc: "Get the current date and time in UTC and local timezone.",
			ToolParams: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			Fn: func(ctx context.Context, args map[string]any) (string, error) {
				now := time.Now()
				return fmt.Sprintf("UTC: %s\nLocal: %s",
					now.UTC().Format(time.RFC3339),
					now.Format(time.RFC3339),
				), nil
			},
		},
	}
}

// mockSearch returns a canned result. A query containing "error" fails, which
// exercises the tool-error path end to end.
func mockSearch(query string) (string, error) {
	if query == "" {
		return "Error: query is required", nil
	}
	if strings.Contains(strings.ToLower(query), "error") {
		return "", errors.New("this is a mock error")
	}
	return fmt.Sprintf("Search results for %q: Mock result.", query), nil
}

// calculate evaluates a sqrt call, a single binary operation, or a bare
// number. That covers what models actually emit for this tool; anything
// richer comes back as an unsupported-expression error.
func calculate(expr string) string {
	expr = strings.TrimSpace(expr)

	if inner, ok := strings.CutPrefix(expr, "sqrt("); ok && strings.HasSuffix(inner, ")") {
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(inner, ")")), 64)
		if err != nil {
			return "Error: sqrt expects a number"
		}
		if n < 0 {
			return "Error: sqrt of a negative number"
		}
		return formatNum(math.Sqrt(n))
	}

	if left, op, right, ok := splitExpr(expr); ok {
		return applyOp(left, op, right)
	}

	if n, err := strconv.ParseFloat(expr, 64); err == nil {
		return formatNum(n)
	}

	return "Error: unsupported expression: " + expr
}

// splitExpr finds an operator with a parseable number on each side. The scan
// starts at index 1 so a leading minus sign reads as a negative operand, and
// skips candidates inside exponents like 1e-5.
func splitExpr(expr string) (left float64, op byte, right float64, ok bool) {
	for i := 1; i < len(expr)-1; i++ {
		c := expr[i]
		if !strings.ContainsRune("+-*/^%", rune(c)) {
			continue
		}
		l, errL := strconv.ParseFloat(strings.TrimSpace(expr[:i]), 64)
		r, errR := strconv.ParseFloat(strings.TrimSpace(expr[i+1:]), 64)
		if errL != nil || errR != nil {
			continue
		}
		return l, c, r, true
	}
	return 0, 0, 0, false
}

func applyOp(left float64, op byte, right float64) string {
	switch op {
	case '+':
		return formatNum(left + right)
	case '-':
		return formatNum(left - right)
	case '*':
		return formatNum(left * right)
	case '/':
		if right == 0 {
			return "Error: cannot divide by zero"
		}
		return formatNum(left / right)
	case '^':
		return formatNum(math.Pow(left, right))
	case '%':
		return formatNum(math.Mod(left, right))
	}
	return fmt.Sprintf("Error: unknown operator %q", op)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
