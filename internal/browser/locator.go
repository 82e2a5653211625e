package browser

import (
	"encoding/json"
	"strings"
)

// xpathLiteral quotes s for use inside an XPath 1.0 expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// fieldXPath matches an input or textarea by its label text, via label[for],
// an enclosing label, or aria-label.
func fieldXPath(label string) string {
	l := xpathLiteral(label)
	return "//*[self::input or self::textarea][" +
		"@id=//label[normalize-space(.)=" + l + "]/@for" +
		" or ancestor::label[normalize-space(.)=" + l + "]" +
		" or @aria-label=" + l + "]"
}

func buttonStep(name string) string {
	n := xpathLiteral(name)
	return "*[((self::button or @role='button') and normalize-space(.)=" + n + ")" +
		" or (self::input and (@type='submit' or @type='button') and @value=" + n + ")]"
}

func buttonXPath(name string) string {
	return "//" + buttonStep(name)
}

func textXPath(text string) string {
	return "//*[not(self::script) and not(self::style)][text()[contains(normalize-space(.), " + xpathLiteral(text) + ")]]"
}

func rowXPath(row Row) string {
	var b strings.Builder
	b.WriteString("//*[self::tr or @role='row']")
	for _, c := range row.Cells {
		b.WriteString("[contains(normalize-space(.), " + xpathLiteral(c) + ")]")
	}
	return b.String()
}

func rowButtonXPath(row Row, name string) string {
	return rowXPath(row) + "//" + buttonStep(name)
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// rowGoneFunc is true once no node matched by the XPath argument is rendered.
const rowGoneFunc = `(xp) => {
	const r = document.evaluate(xp, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (let i = 0; i < r.snapshotLength; i++) {
		const n = r.snapshotItem(i);
		if (n.getClientRects().length > 0) return false;
	}
	return true;
}`

// textVisibleFunc reports whether the rendered page text contains the argument.
const textVisibleFunc = `(t) => !!document.body && document.body.innerText.includes(t)`

// callJS renders an immediately invoked call of fn with a single string argument.
func callJS(fn, arg string) string {
	return "(" + fn + ")(" + jsString(arg) + ")"
}
