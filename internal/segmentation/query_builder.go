package segmentation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/rql"
)

// QueryBuilder compiles an RQL tree into a SQL statement selecting the
// distinct visitors whose events under one account satisfy it.
type QueryBuilder struct {
	args       []interface{}
	argCounter int
	accountID  uuid.UUID
	fields     map[string]FieldSpec
}

// NewQueryBuilder creates a QueryBuilder over the behavioral event fields.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		args:       make([]interface{}, 0),
		argCounter: 1,
		fields:     EventFields,
	}
}

// SetAccountID scopes the query to one tenant's events.
func (qb *QueryBuilder) SetAccountID(id uuid.UUID) *QueryBuilder {
	qb.accountID = id
	return qb
}

// nextArg returns the next argument placeholder
func (qb *QueryBuilder) nextArg(value interface{}) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argCounter)
	qb.argCounter++
	return placeholder
}

// BuildQuery parses query and returns the SQL and its bind arguments.
// The account filter is always the first argument.
func (qb *QueryBuilder) BuildQuery(query string) (string, []interface{}, error) {
	root, err := rql.Parse(query)
	if err != nil {
		return "", nil, err
	}
	return qb.Build(root)
}

// Build compiles an already parsed tree.
func (qb *QueryBuilder) Build(root *rql.Node) (string, []interface{}, error) {
	qb.args = make([]interface{}, 0)
	qb.argCounter = 1

	accountFilter := fmt.Sprintf("e.account_id = %s", qb.nextArg(qb.accountID))

	predicate, err := qb.buildNode(root)
	if err != nil {
		return "", nil, err
	}

	query := "SELECT DISTINCT e.visitor_id\nFROM behavioral_events e\nWHERE " +
		accountFilter + "\n  AND (" + predicate + ")"
	return query, qb.args, nil
}

func (qb *QueryBuilder) buildNode(n *rql.Node) (string, error) {
	if n == nil {
		return "", fmt.Errorf("%w: empty expression", ErrInvalidQuery)
	}
	if n.Op.IsLogical() {
		return qb.buildGroupCondition(n)
	}
	return qb.buildCondition(n)
}

// buildGroupCondition handles and/or/not recursively.
func (qb *QueryBuilder) buildGroupCondition(n *rql.Node) (string, error) {
	if len(n.Children) == 0 {
		return "", fmt.Errorf("%w: %s() needs at least one argument", ErrInvalidQuery, n.Op)
	}
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		sql, err := qb.buildNode(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+sql+")")
	}

	switch n.Op {
	case rql.OpNot:
		return "NOT " + parts[0], nil
	case rql.OpOr:
		return strings.Join(parts, " OR "), nil
	default:
		return strings.Join(parts, " AND "), nil
	}
}

// buildCondition compiles a single field comparison.
func (qb *QueryBuilder) buildCondition(n *rql.Node) (string, error) {
	spec, ok := qb.fields[n.Field]
	if !ok {
		return "", fmt.Errorf("%w: unknown field %q", ErrInvalidQuery, n.Field)
	}
	if len(n.Values) == 0 {
		return "", fmt.Errorf("%w: %s(%s) has no value", ErrInvalidQuery, n.Op, n.Field)
	}
	col := spec.Column

	switch n.Op {
	case rql.OpEq, rql.OpNe:
		v := n.Values[0]
		if v.IsNull() {
			if n.Op == rql.OpEq {
				return col + " IS NULL", nil
			}
			return col + " IS NOT NULL", nil
		}
		val, err := spec.convert(n.Field, v)
		if err != nil {
			return "", err
		}
		if n.Op == rql.OpEq {
			return fmt.Sprintf("%s = %s", col, qb.nextArg(val)), nil
		}
		// Rows with no value are not equal to anything.
		return fmt.Sprintf("(%s IS NULL OR %s <> %s)", col, col, qb.nextArg(val)), nil

	case rql.OpLt, rql.OpLe, rql.OpGt, rql.OpGe:
		v := n.Values[0]
		if v.IsNull() {
			return "", fmt.Errorf("%w: %s(%s) cannot compare with null", ErrInvalidQuery, n.Op, n.Field)
		}
		val, err := spec.convert(n.Field, v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, comparisonOperators[n.Op], qb.nextArg(val)), nil

	case rql.OpIn, rql.OpOut:
		placeholders := make([]string, 0, len(n.Values))
		for _, v := range n.Values {
			if v.IsNull() {
				return "", fmt.Errorf("%w: null() is not allowed in %s()", ErrInvalidQuery, n.Op)
			}
			val, err := spec.convert(n.Field, v)
			if err != nil {
				return "", err
			}
			placeholders = append(placeholders, qb.nextArg(val))
		}
		list := strings.Join(placeholders, ", ")
		if n.Op == rql.OpIn {
			return fmt.Sprintf("%s IN (%s)", col, list), nil
		}
		return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", col, col, list), nil

	case rql.OpLike, rql.OpILike:
		if spec.Type != FieldTypeText {
			return "", fmt.Errorf("%w: %s() only applies to text fields", ErrInvalidQuery, n.Op)
		}
		v := n.Values[0]
		if v.Kind != rql.LiteralText {
			return "", fmt.Errorf("%w: %s() needs a text pattern", ErrInvalidQuery, n.Op)
		}
		op := "LIKE"
		if n.Op == rql.OpILike {
			op = "ILIKE"
		}
		return fmt.Sprintf("%s %s %s", col, op, qb.nextArg(likePattern(v.Text))), nil
	}

	return "", fmt.Errorf("%w: unsupported operator %s", ErrInvalidQuery, n.Op)
}

var comparisonOperators = map[rql.Op]string{
	rql.OpLt: "<",
	rql.OpLe: "<=",
	rql.OpGt: ">",
	rql.OpGe: ">=",
}

// likePattern converts RQL '*' wildcards to SQL and escapes SQL wildcards
// present in the literal.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`, "*", "%")
	return r.Replace(s)
}

// HashQuery generates a deterministic hash of an account's filter, used to
// correlate reconciliation log lines for the same audience definition.
func HashQuery(accountID uuid.UUID, query string) string {
	sum := sha256.Sum256([]byte(accountID.String() + "\x00" + strings.TrimSpace(query)))
	return hex.EncodeToString(sum[:])
}

// Validate parses and compiles query without running it. Segmentations
// are validated on write so the periodic reconciler never meets a bad
// filter.
func Validate(query string) error {
	_, _, err := NewQueryBuilder().SetAccountID(uuid.Nil).BuildQuery(query)
	return err
}
