package types

import "strings"

// FieldState describes how one field compares between two customers.
type FieldState string

const (
	FieldSame      FieldState = "same"
	FieldDifferent FieldState = "different"
	FieldOnlyA     FieldState = "only_a"
	FieldOnlyB     FieldState = "only_b"
	FieldBothEmpty FieldState = "both_empty"
)

// FieldDiff is the comparison result for one customer field.
type FieldDiff struct {
	Field string
	A     string
	B     string
	State FieldState
}

// CustomerDiff is the field-by-field comparison of a duplicate pair.
type CustomerDiff struct {
	Fields    []FieldDiff
	Matching  int
	Different int
	Missing   int // present on exactly one side
}

// Compare diffs the contact fields of two customers. Email comparison
// ignores case; all values are trimmed.
func Compare(a, b Customer) CustomerDiff {
	var d CustomerDiff
	add := func(field, va, vb string, eq func(x, y string) bool) {
		va, vb = strings.TrimSpace(va), strings.TrimSpace(vb)
		fd := FieldDiff{Field: field, A: va, B: vb}
		switch {
		case va == "" && vb == "":
			fd.State = FieldBothEmpty
		case va == "":
			fd.State = FieldOnlyB
			d.Missing++
		case vb == "":
			fd.State = FieldOnlyA
			d.Missing++
		case eq(va, vb):
			fd.State = FieldSame
			d.Matching++
		default:
			fd.State = FieldDifferent
			d.Different++
		}
		d.Fields = append(d.Fields, fd)
	}

	exact := func(x, y string) bool { return x == y }
	add("firstName", a.FirstName, b.FirstName, exact)
	add("lastName", a.LastName, b.LastName, exact)
	add("email", a.Email, b.Email, strings.EqualFold)
	add("phone", a.Phone, b.Phone, exact)
	add("signupDate", formatDate(a.SignupDate), formatDate(b.SignupDate), exact)
	return d
}

func formatDate(t *Timestamp) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
