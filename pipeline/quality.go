package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"companystatus/frame"
)

const (
	// SeverityHigh 预测将会失败
	SeverityHigh = "high"
	// SeverityLow 可以预测，但结果可能不可靠
	SeverityLow = "low"
)

// DefaultMaxIssues caps the issues a report lists; counts are never capped.
const DefaultMaxIssues = 50

// QualityRule 质量检查规则
type QualityRule interface {
	Check(t *frame.Table, schema *Schema) []QualityIssue
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Column   string `json:"column"`
	Row      int    `json:"row"` // -1 表示整列问题
	Message  string `json:"message"`
}

// QualityReport 输入数据质量报告
type QualityReport struct {
	Rows      int            `json:"rows"`
	Issues    []QualityIssue `json:"issues"`
	Counts    map[string]int `json:"counts"`
	Blocking  int            `json:"blocking"`
	Truncated bool           `json:"truncated"`
}

// OK reports whether the input can be predicted.
func (r *QualityReport) OK() bool {
	return r.Blocking == 0
}

// QualityChecker 检查输入表是否能被模型预测
type QualityChecker struct {
	schema    *Schema
	rules     []QualityRule
	maxIssues int
}

// NewQualityChecker 创建质量检查器
func NewQualityChecker(schema *Schema, maxIssues int) *QualityChecker {
	if maxIssues <= 0 {
		maxIssues = DefaultMaxIssues
	}
	checker := &QualityChecker{schema: schema, maxIssues: maxIssues}

	// 添加默认规则
	checker.AddRule(&MissingColumnRule{})
	checker.AddRule(&IgnoredColumnRule{})
	checker.AddRule(&MissingValueRule{})
	checker.AddRule(&NumericFormatRule{})

	return checker
}

// AddRule 添加检查规则
func (c *QualityChecker) AddRule(rule QualityRule) {
	c.rules = append(c.rules, rule)
}

// Check 检查数据
func (c *QualityChecker) Check(t *frame.Table) *QualityReport {
	report := &QualityReport{
		Rows:   t.Len(),
		Issues: make([]QualityIssue, 0),
		Counts: make(map[string]int),
	}

	for _, rule := range c.rules {
		for _, issue := range rule.Check(t, c.schema) {
			report.Counts[issue.Type]++
			if issue.Severity == SeverityHigh {
				report.Blocking++
			}
			if len(report.Issues) < c.maxIssues {
				report.Issues = append(report.Issues, issue)
			} else {
				report.Truncated = true
			}
		}
	}

	return report
}

// ============ 检查规则实现 ============

// MissingColumnRule 缺失特征列；有默认值的列会被自动补齐
type MissingColumnRule struct{}

func (r *MissingColumnRule) Name() string {
	return "missing_column"
}

func (r *MissingColumnRule) Check(t *frame.Table, schema *Schema) []QualityIssue {
	var issues []QualityIssue
	for _, f := range schema.Features() {
		if t.HasColumn(f.Name) {
			continue
		}
		if _, ok := schema.Default(f.Name); ok {
			continue
		}

		severity := SeverityLow
		message := "column is missing; values are treated as missing"
		if f.Kind == Categorical || schema.Strict() {
			severity = SeverityHigh
			message = "required column is missing"
		}
		issues = append(issues, QualityIssue{
			Type:     r.Name(),
			Severity: severity,
			Column:   f.Name,
			Row:      -1,
			Message:  message,
		})
	}
	return issues
}

// IgnoredColumnRule 模型不使用的列
type IgnoredColumnRule struct{}

func (r *IgnoredColumnRule) Name() string {
	return "ignored_column"
}

func (r *IgnoredColumnRule) Check(t *frame.Table, schema *Schema) []QualityIssue {
	known := make(map[string]bool, len(schema.Features()))
	for _, name := range schema.Names() {
		known[name] = true
	}

	var issues []QualityIssue
	for _, name := range t.Columns() {
		if known[name] {
			continue
		}
		issues = append(issues, QualityIssue{
			Type:     r.Name(),
			Severity: SeverityLow,
			Column:   name,
			Row:      -1,
			Message:  "column is not a model feature and is ignored",
		})
	}
	return issues
}

// MissingValueRule 空值检查
type MissingValueRule struct{}

func (r *MissingValueRule) Name() string {
	return "missing_value"
}

func (r *MissingValueRule) Check(t *frame.Table, schema *Schema) []QualityIssue {
	var issues []QualityIssue
	for _, f := range schema.Features() {
		cells, ok := t.Column(f.Name)
		if !ok {
			continue
		}
		severity := SeverityLow
		if f.Kind == Categorical {
			severity = SeverityHigh
		}
		for i, cell := range cells {
			if cell.Valid && strings.TrimSpace(cell.Value) != "" {
				continue
			}
			if f.Kind == Categorical && cell.Valid {
				continue
			}
			issues = append(issues, QualityIssue{
				Type:     r.Name(),
				Severity: severity,
				Column:   f.Name,
				Row:      i,
				Message:  "value is missing",
			})
		}
	}
	return issues
}

// NumericFormatRule 数值格式检查
type NumericFormatRule struct{}

func (r *NumericFormatRule) Name() string {
	return "invalid_number"
}

func (r *NumericFormatRule) Check(t *frame.Table, schema *Schema) []QualityIssue {
	var issues []QualityIssue
	for _, name := range schema.Numeric() {
		cells, ok := t.Column(name)
		if !ok {
			continue
		}
		for i, cell := range cells {
			value := strings.TrimSpace(cell.Value)
			if !cell.Valid || value == "" {
				continue
			}
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				issues = append(issues, QualityIssue{
					Type:     r.Name(),
					Severity: SeverityHigh,
					Column:   name,
					Row:      i,
					Message:  fmt.Sprintf("cannot convert %q to a number", cell.Value),
				})
			}
		}
	}
	return issues
}
