package memstore

import (
	"fmt"
	"strconv"
	"strings"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/rowstore/pkg/attrval"
	"github.com/theory-cloud/rowstore/pkg/backend"
	"github.com/theory-cloud/rowstore/pkg/row"
	"github.com/theory-cloud/rowstore/pkg/rowkey"
)

// parsedStatement is the structured form of one rendered pkg/stmt
// statement, recovered so the reference store can apply it the way a
// real PartiQL-speaking backend would (spec §4.4, §4.6).
type parsedStatement struct {
	table   string
	pk, sk  string
	item    attrval.Map // insert only
	ops     []statementOp
	version uint64
	hasKey  bool // update/delete statements carry an explicit key
	kind    statementKind
}

type statementKind int

const (
	stmtInsert statementKind = iota
	stmtUpdate
	stmtDeleteAtKey
	stmtDeleteItem
)

type opKind int

const (
	opSet opKind = iota
	opRemove
	opListAppend
)

type statementOp struct {
	path  string
	value attrval.Value // nil for opRemove
	kind  opKind
}

// parseStatement recovers the structured form of one statement pkg/stmt
// rendered. It scans the grammar's fixed keywords and punctuation
// directly rather than matching them with regular expressions against
// the whole statement: a rendered string attribute value can legitimately
// contain text like `" WHERE "` or `SET "` (the builder only escapes
// single quotes, spec §9), so any approach that looks for those
// substrings across the full statement — instead of tracking where
// quoted literals start and end — can split a well-formed statement in
// the wrong place. Every parse* helper below advances an explicit byte
// offset and only ever treats quoted text as opaque, delegating its
// contents to parseString/parseValue (pkg/memstore/literal.go), which
// already understand the `''`-doubling escape.
func parseStatement(s string) (parsedStatement, error) {
	switch {
	case strings.HasPrefix(s, "INSERT INTO "):
		return parseInsertStatement(s)
	case strings.HasPrefix(s, "UPDATE "):
		return parseUpdateStatement(s)
	case strings.HasPrefix(s, "DELETE FROM "):
		return parseDeleteStatement(s)
	default:
		return parsedStatement{}, fmt.Errorf("memstore: unrecognized statement %q", s)
	}
}

func parseInsertStatement(s string) (parsedStatement, error) {
	i := len("INSERT INTO ")
	table, i, err := parseQuotedIdent(s, i)
	if err != nil {
		return parsedStatement{}, err
	}
	const valueKeyword = " value "
	if !strings.HasPrefix(s[i:], valueKeyword) {
		return parsedStatement{}, fmt.Errorf("memstore: malformed INSERT statement %q", s)
	}
	i += len(valueKeyword)

	lp := &literalParser{s: s, i: i}
	v, err := lp.parseValue()
	if err != nil {
		return parsedStatement{}, err
	}
	lp.skipSpace()
	if lp.i != len(s) {
		return parsedStatement{}, fmt.Errorf("memstore: trailing input after INSERT value in %q", s)
	}

	item := attrval.MapValues(v)
	if item == nil {
		return parsedStatement{}, fmt.Errorf("memstore: INSERT value is not a map: %q", s)
	}
	return parsedStatement{kind: stmtInsert, table: table, item: item}, nil
}

func parseUpdateStatement(s string) (parsedStatement, error) {
	i := len("UPDATE ")
	table, i, err := parseQuotedIdent(s, i)
	if err != nil {
		return parsedStatement{}, err
	}
	if i >= len(s) || s[i] != ' ' {
		return parsedStatement{}, fmt.Errorf("memstore: malformed UPDATE statement %q", s)
	}
	i++

	var ops []statementOp
	for {
		op, next, err := parseClauseAt(s, i)
		if err != nil {
			return parsedStatement{}, err
		}
		ops = append(ops, op)
		i = next

		const whereKeyword = " WHERE "
		if strings.HasPrefix(s[i:], whereKeyword) {
			i += len(whereKeyword)
			break
		}
		if i >= len(s) || s[i] != ' ' {
			return parsedStatement{}, fmt.Errorf("memstore: malformed UPDATE clause list in %q", s)
		}
		i++
	}

	pk, sk, version, hasVersion, err := parseWhere(s[i:])
	if err != nil {
		return parsedStatement{}, err
	}
	if !hasVersion {
		return parsedStatement{}, fmt.Errorf("memstore: UPDATE statement missing rowVersion condition: %q", s)
	}
	return parsedStatement{kind: stmtUpdate, table: table, pk: pk, sk: sk, version: version, hasKey: true, ops: ops}, nil
}

func parseDeleteStatement(s string) (parsedStatement, error) {
	i := len("DELETE FROM ")
	table, i, err := parseQuotedIdent(s, i)
	if err != nil {
		return parsedStatement{}, err
	}
	const whereKeyword = " WHERE "
	if !strings.HasPrefix(s[i:], whereKeyword) {
		return parsedStatement{}, fmt.Errorf("memstore: malformed DELETE statement %q", s)
	}
	i += len(whereKeyword)

	pk, sk, version, hasVersion, err := parseWhere(s[i:])
	if err != nil {
		return parsedStatement{}, err
	}
	if hasVersion {
		return parsedStatement{kind: stmtDeleteItem, table: table, pk: pk, sk: sk, version: version, hasKey: true}, nil
	}
	return parsedStatement{kind: stmtDeleteAtKey, table: table, pk: pk, sk: sk, hasKey: true}, nil
}

// parseQuotedIdent parses a `"..."` double-quoted identifier (a table
// name or a SET/REMOVE attribute path) starting at s[i], which must be
// the opening quote. It does not unescape its contents — identifiers
// this grammar quotes never contain a `"` themselves.
func parseQuotedIdent(s string, i int) (string, int, error) {
	if i >= len(s) || s[i] != '"' {
		return "", i, fmt.Errorf("memstore: expected '\"' at offset %d in %q", i, s)
	}
	i++
	start := i
	for i < len(s) && s[i] != '"' {
		i++
	}
	if i >= len(s) {
		return "", i, fmt.Errorf("memstore: unterminated quoted identifier in %q", s)
	}
	ident := s[start:i]
	return ident, i + 1, nil
}

// parseClauseAt parses one `SET "path"=value`, `SET "path"=list_append(path,value)`,
// or `REMOVE "path"` clause starting at s[i] and returns the offset just
// past it — the exact boundary pkg/stmt rendered, found by structurally
// parsing the clause rather than by searching for the next clause's or
// WHERE's keyword as a substring.
func parseClauseAt(s string, i int) (statementOp, int, error) {
	switch {
	case strings.HasPrefix(s[i:], "REMOVE "):
		i += len("REMOVE ")
		path, next, err := parseQuotedIdent(s, i)
		if err != nil {
			return statementOp{}, i, err
		}
		return statementOp{kind: opRemove, path: path}, next, nil

	case strings.HasPrefix(s[i:], "SET "):
		i += len("SET ")
		path, i, err := parseQuotedIdent(s, i)
		if err != nil {
			return statementOp{}, i, err
		}
		if i >= len(s) || s[i] != '=' {
			return statementOp{}, i, fmt.Errorf("memstore: malformed SET clause in %q at offset %d", s, i)
		}
		i++

		const listAppendPrefix = "list_append("
		if strings.HasPrefix(s[i:], listAppendPrefix) {
			i += len(listAppendPrefix)
			// The inner path (list_append's first argument) repeats the
			// clause's own quoted path unquoted and contains no comma;
			// the value starts right after the first top-level comma.
			comma := strings.IndexByte(s[i:], ',')
			if comma < 0 {
				return statementOp{}, i, fmt.Errorf("memstore: malformed list_append in %q", s)
			}
			i += comma + 1
			lp := &literalParser{s: s, i: i}
			v, err := lp.parseValue()
			if err != nil {
				return statementOp{}, lp.i, err
			}
			if lp.i >= len(s) || s[lp.i] != ')' {
				return statementOp{}, lp.i, fmt.Errorf("memstore: malformed list_append in %q", s)
			}
			return statementOp{kind: opListAppend, path: path, value: v}, lp.i + 1, nil
		}

		lp := &literalParser{s: s, i: i}
		v, err := lp.parseValue()
		if err != nil {
			return statementOp{}, lp.i, err
		}
		return statementOp{kind: opSet, path: path, value: v}, lp.i, nil

	default:
		return statementOp{}, i, fmt.Errorf("memstore: expected SET/REMOVE clause at offset %d in %q", i, s)
	}
}

// parseWhere parses `<pkName>='<pkVal>' AND <skName>='<skVal>'` optionally
// followed by ` AND rowVersion=<digits>` (spec §4.1, §6). Attribute names
// are unquoted identifiers drawn from the caller's rowkey.Schema, never
// from payload data, so they are scanned directly; the quoted values are
// parsed the same quote-aware way literal.go parses any other string.
func parseWhere(s string) (pk, sk string, version uint64, hasVersion bool, err error) {
	i := 0

	_, i = scanIdent(s, i)
	if i >= len(s) || s[i] != '=' {
		return "", "", 0, false, fmt.Errorf("memstore: malformed WHERE clause %q", s)
	}
	i++
	lp := &literalParser{s: s, i: i}
	pkVal, err := lp.parseString()
	if err != nil {
		return "", "", 0, false, err
	}
	pk, _ = attrval.StringValue(pkVal)
	i = lp.i

	const and = " AND "
	if !strings.HasPrefix(s[i:], and) {
		return "", "", 0, false, fmt.Errorf("memstore: malformed WHERE clause %q", s)
	}
	i += len(and)

	_, i = scanIdent(s, i)
	if i >= len(s) || s[i] != '=' {
		return "", "", 0, false, fmt.Errorf("memstore: malformed WHERE clause %q", s)
	}
	i++
	lp = &literalParser{s: s, i: i}
	skVal, err := lp.parseString()
	if err != nil {
		return "", "", 0, false, err
	}
	sk, _ = attrval.StringValue(skVal)
	i = lp.i

	if i >= len(s) {
		return pk, sk, 0, false, nil
	}

	const andVersion = " AND rowVersion="
	if !strings.HasPrefix(s[i:], andVersion) {
		return "", "", 0, false, fmt.Errorf("memstore: malformed WHERE clause trailing text %q", s)
	}
	i += len(andVersion)
	digitsStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digitsStart || i != len(s) {
		return "", "", 0, false, fmt.Errorf("memstore: malformed rowVersion in WHERE clause %q", s)
	}
	version, err = strconv.ParseUint(s[digitsStart:i], 10, 64)
	if err != nil {
		return "", "", 0, false, err
	}
	return pk, sk, version, true, nil
}

// scanIdent scans a bare identifier (the WHERE clause's unquoted
// attribute names) starting at s[i] and returns it plus the offset just
// past it.
func scanIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return s[start:i], i
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// apply executes one parsed statement against the store's state and
// reports the outcome as a BatchStatementResponse (spec §4.4: every
// statement's per-call outcome lands in its own response slot).
func (st *state) apply(p parsedStatement, schema rowkey.Schema) backend.BatchStatementResponse {
	switch p.kind {
	case stmtInsert:
		return st.applyInsert(p, schema)
	case stmtUpdate:
		return st.applyUpdate(p)
	case stmtDeleteAtKey:
		return st.applyDeleteAtKey(p)
	case stmtDeleteItem:
		return st.applyDeleteItem(p)
	default:
		return conditionFailedResponse("Unrecognized statement.")
	}
}

func conditionFailedResponse(message string) backend.BatchStatementResponse {
	return backend.BatchStatementResponse{Error: &backend.BatchStatementError{Code: "ConditionalCheckFailed", Message: message}}
}

func (st *state) applyInsert(p parsedStatement, schema rowkey.Schema) backend.BatchStatementResponse {
	pk, ok := attrval.StringValue(p.item[schema.PartitionKeyName])
	if !ok {
		return conditionFailedResponse("item missing partition key attribute " + schema.PartitionKeyName)
	}
	sk, ok := attrval.StringValue(p.item[schema.SortKeyName])
	if !ok {
		return conditionFailedResponse("item missing sort key attribute " + schema.SortKeyName)
	}
	partition := st.partitionOf(p.table, pk)
	if _, exists := partition[sk]; exists {
		return conditionFailedResponse("Row already exists.")
	}
	partition[sk] = p.item
	return backend.BatchStatementResponse{}
}

func (st *state) applyUpdate(p parsedStatement) backend.BatchStatementResponse {
	partition := st.partitionOf(p.table, p.pk)
	existing, exists := partition[p.sk]
	if !exists {
		return conditionFailedResponse("Existing item does not exist.")
	}
	existingVersion, ok := currentVersion(existing)
	if !ok || existingVersion != p.version {
		return conditionFailedResponse("Trying to overwrite incorrect version.")
	}
	if err := applyOps(existing, p.ops); err != nil {
		return conditionFailedResponse(err.Error())
	}
	return backend.BatchStatementResponse{}
}

func (st *state) applyDeleteAtKey(p parsedStatement) backend.BatchStatementResponse {
	partition := st.partitionOf(p.table, p.pk)
	delete(partition, p.sk)
	return backend.BatchStatementResponse{}
}

func (st *state) applyDeleteItem(p parsedStatement) backend.BatchStatementResponse {
	partition := st.partitionOf(p.table, p.pk)
	existing, exists := partition[p.sk]
	if !exists {
		return conditionFailedResponse("Existing item does not exist.")
	}
	existingVersion, ok := currentVersion(existing)
	if !ok || existingVersion != p.version {
		return conditionFailedResponse("Trying to delete incorrect version.")
	}
	delete(partition, p.sk)
	return backend.BatchStatementResponse{}
}

func currentVersion(item attrval.Map) (uint64, bool) {
	text, ok := attrval.NumberValue(item[row.AttrRowVersion])
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// applyOps applies a diff-derived SET/REMOVE/ListAppend sequence onto
// root in place, following pkg/diff's path grammar (dotted map keys,
// "[i]" list indices). List-element removals are deferred and applied
// last, sorted descending per list, so earlier removals never shift the
// indices later removals in the same statement still reference (spec
// §4.2's list diff always emits removal indices in ascending order).
func applyOps(root attrval.Map, ops []statementOp) error {
	type pendingRemoval struct {
		list *ddbtypes.AttributeValueMemberL
		idx  int
	}
	var removals []pendingRemoval

	for _, op := range ops {
		steps := toSteps(op.path)
		switch op.kind {
		case opSet:
			if err := setAtSteps(root, steps, op.value); err != nil {
				return err
			}
		case opListAppend:
			if err := appendAtSteps(root, steps, op.value); err != nil {
				return err
			}
		case opRemove:
			container, last, ok := navigateParent(root, steps)
			if !ok {
				return fmt.Errorf("memstore: REMOVE path not found: %s", op.path)
			}
			switch last.kind {
			case stepMapKey:
				m, ok := container.(*ddbtypes.AttributeValueMemberM)
				if !ok {
					return fmt.Errorf("memstore: REMOVE path %s does not resolve to a map", op.path)
				}
				delete(m.Value, last.key)
			case stepListIndex:
				l, ok := container.(*ddbtypes.AttributeValueMemberL)
				if !ok {
					return fmt.Errorf("memstore: REMOVE path %s does not resolve to a list", op.path)
				}
				removals = append(removals, pendingRemoval{list: l, idx: last.idx})
			}
		}
	}

	groups := make(map[*ddbtypes.AttributeValueMemberL][]int)
	for _, r := range removals {
		groups[r.list] = append(groups[r.list], r.idx)
	}
	for list, idxs := range groups {
		sortDescending(idxs)
		for _, idx := range idxs {
			if idx < 0 || idx >= len(list.Value) {
				continue
			}
			list.Value = append(list.Value[:idx], list.Value[idx+1:]...)
		}
	}
	return nil
}

func sortDescending(idxs []int) {
	for i := 1; i < len(idxs); i++ {
		for j := i; j > 0 && idxs[j-1] < idxs[j]; j-- {
			idxs[j-1], idxs[j] = idxs[j], idxs[j-1]
		}
	}
}
