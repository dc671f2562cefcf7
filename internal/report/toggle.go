package report

import (
	"strings"
)

// ClosedClass marks a collapsed section, group, or toggle button.
const ClosedClass = "closed"

// Element is the part of a page element the toggler cares about: its tag,
// classes, data attributes and children.
type Element struct {
	ID       string
	Tag      string
	Data     map[string]string
	Children []*Element

	classes []string
}

// NewElement returns an element with the given classes.
func NewElement(id, tag string, classes ...string) *Element {
	e := &Element{ID: id, Tag: tag, Data: map[string]string{}}
	for _, c := range classes {
		e.AddClass(c)
	}
	return e
}

// WithData sets a data attribute and returns the element.
func (e *Element) WithData(key, value string) *Element {
	e.Data[key] = value
	return e
}

// Append adds children and returns the element.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

func (e *Element) HasClass(c string) bool {
	for _, have := range e.classes {
		if have == c {
			return true
		}
	}
	return false
}

func (e *Element) AddClass(c string) {
	if c == "" || e.HasClass(c) {
		return
	}
	e.classes = append(e.classes, c)
}

func (e *Element) RemoveClass(c string) {
	out := e.classes[:0]
	for _, have := range e.classes {
		if have != c {
			out = append(out, have)
		}
	}
	e.classes = out
}

func (e *Element) ToggleClass(c string) {
	if e.HasClass(c) {
		e.RemoveClass(c)
		return
	}
	e.AddClass(c)
}

// ClassName is the space separated class attribute.
func (e *Element) ClassName() string {
	return strings.Join(e.classes, " ")
}

// firstButton finds the first button at or below e.
func (e *Element) firstButton() *Element {
	if e.Tag == "button" {
		return e
	}
	for _, c := range e.Children {
		if b := c.firstButton(); b != nil {
			return b
		}
	}
	return nil
}

// Document indexes the toggleable elements of one rendered page.
type Document struct {
	order []*Element
	byID  map[string]*Element
}

func NewDocument() *Document {
	return &Document{byID: map[string]*Element{}}
}

// Add registers an element and all of its descendants.
func (d *Document) Add(e *Element) *Element {
	if _, ok := d.byID[e.ID]; !ok {
		d.order = append(d.order, e)
		d.byID[e.ID] = e
	}
	for _, c := range e.Children {
		d.Add(c)
	}
	return e
}

// Get looks an element up by id.
func (d *Document) Get(id string) *Element {
	return d.byID[id]
}

// Query returns matching elements in document order.
func (d *Document) Query(match func(*Element) bool) []*Element {
	var out []*Element
	for _, e := range d.order {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (d *Document) withClass(c string) []*Element {
	return d.Query(func(e *Element) bool { return e.HasClass(c) })
}

func (d *Document) withData(key, value string) []*Element {
	return d.Query(func(e *Element) bool {
		v, ok := e.Data[key]
		return ok && v == value
	})
}

// Change is the new class attribute of one element after a click.
type Change struct {
	ID      string `json:"id"`
	Classes string `json:"classes"`
}

// Toggler opens and closes report sections and grouped rows.
type Toggler struct {
	doc *Document
}

func NewToggler(doc *Document) *Toggler {
	return &Toggler{doc: doc}
}

// Click handles a click on the element with the given id and returns the
// elements whose classes changed. Clicks that do not land on a toggle button
// (or on a section header holding one) change nothing.
func (t *Toggler) Click(targetID string) []Change {
	target := t.doc.Get(targetID)
	if target == nil {
		return nil
	}
	button := target
	if target.Tag != "button" {
		if target.Tag != "h2" {
			return nil
		}
		if button = target.firstButton(); button == nil {
			return nil
		}
	}

	tr := newChangeTracker()
	switch {
	case button.Data["selector"] != "":
		t.toggleSection(tr, button)
	case button.HasClass("family-btn") && button.Data["family"] != "":
		family := button.Data["family"]
		if button.HasClass(ClosedClass) {
			t.openFamily(tr, family)
		} else {
			t.closeFamily(tr, family)
		}
	case button.Data["genus"] != "":
		genus := button.Data["genus"]
		if button.HasClass(ClosedClass) {
			t.openGenus(tr, genus)
		} else {
			t.closeGenus(tr, genus)
		}
	default:
		return nil
	}
	return tr.changes()
}

func (t *Toggler) toggleSection(tr *changeTracker, button *Element) {
	tr.touch(button)
	button.ToggleClass(ClosedClass)
	for _, e := range t.doc.withClass(button.Data["selector"]) {
		tr.touch(e)
		e.ToggleClass(ClosedClass)
	}
}

// closeFamily hides every row of a family.
func (t *Toggler) closeFamily(tr *changeTracker, family string) {
	for _, e := range t.doc.withData("family", family) {
		tr.touch(e)
		e.AddClass(ClosedClass)
	}
}

// openFamily shows a family's genera again while genera that were closed on
// their own stay closed.
func (t *Toggler) openFamily(tr *changeTracker, family string) {
	for _, e := range t.doc.withData("family", family) {
		tr.touch(e)
		switch {
		case e.HasClass("genus"), e.HasClass("family-btn"):
			e.RemoveClass(ClosedClass)
		case e.Data["closed"] != "":
			e.AddClass(ClosedClass)
		default:
			e.RemoveClass(ClosedClass)
		}
	}
}

// closeGenus hides a genus's rows and remembers it was closed.
func (t *Toggler) closeGenus(tr *changeTracker, genus string) {
	for _, e := range t.doc.withData("genus", genus) {
		tr.touch(e)
		e.AddClass(ClosedClass)
		e.Data["closed"] = ClosedClass
	}
}

// openGenus shows a genus's rows.
func (t *Toggler) openGenus(tr *changeTracker, genus string) {
	for _, e := range t.doc.withData("genus", genus) {
		tr.touch(e)
		e.RemoveClass(ClosedClass)
		e.Data["closed"] = ""
	}
}

type changeTracker struct {
	order  []*Element
	before map[*Element]string
}

func newChangeTracker() *changeTracker {
	return &changeTracker{before: map[*Element]string{}}
}

func (c *changeTracker) touch(e *Element) {
	if c == nil {
		return
	}
	if _, ok := c.before[e]; ok {
		return
	}
	c.before[e] = e.ClassName()
	c.order = append(c.order, e)
}

func (c *changeTracker) changes() []Change {
	out := make([]Change, 0, len(c.order))
	for _, e := range c.order {
		if now := e.ClassName(); now != c.before[e] {
			out = append(out, Change{ID: e.ID, Classes: now})
		}
	}
	return out
}
