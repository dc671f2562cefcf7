package report

import "fmt"

// Collapsible report sections.
const (
	SectionFamilies = "families"
	SectionSamples  = "samples"
)

// Element ids shared by the page renderer and the toggler.
func SectionHeaderID(section string) string { return section + "-h2" }
func SectionButtonID(section string) string { return section + "-btn" }
func SectionBodyID(section string) string { return section + "-body" }
func FamilyRowID(f int) string { return fmt.Sprintf("fam-%d", f) }
func FamilyButtonID(f int) string { return fmt.Sprintf("fam-%d-btn", f) }
func GenusRowID(f, g int) string { return fmt.Sprintf("gen-%d-%d", f, g) }
func GenusButtonID(f, g int) string { return fmt.Sprintf("gen-%d-%d-btn", f, g) }
func TaxonRowID(f, g, t int) string { return fmt.Sprintf("tax-%d-%d-%d", f, g, t) }

// GenusKey identifies a genus within its family.
func GenusKey(family, genus string) string { return family + "/" + genus }

// PageDocument models the collapsible parts of a report page: both section
// headers and the family, genus and taxon rows of the coverage table. Every
// family starts closed with its genera closed beneath it. Family rows stay
// visible; only their buttons carry the family key.
func PageDocument(cov CoverageReport) *Document {
	doc := NewDocument()
	for _, section := range []string{SectionFamilies, SectionSamples} {
		body := SectionBodyID(section)
		doc.Add(NewElement(SectionHeaderID(section), "h2").Append(
			NewElement(SectionButtonID(section), "button").WithData("selector", body),
		))
		doc.Add(NewElement(body, "div", body))
	}

	t := NewToggler(doc)
	for fi, fam := range cov.Families {
		doc.Add(NewElement(FamilyRowID(fi), "tr", "family").Append(
			NewElement(FamilyButtonID(fi), "button", "family-btn").WithData("family", fam.Family),
		))
		for gi, gen := range fam.Genera {
			key := GenusKey(fam.Family, gen.Genus)
			doc.Add(NewElement(GenusRowID(fi, gi), "tr", "genus").WithData("family", fam.Family).Append(
				NewElement(GenusButtonID(fi, gi), "button", "genus-btn").
					WithData("family", fam.Family).
					WithData("genus", key),
			))
			for ti := range gen.Taxa {
				doc.Add(NewElement(TaxonRowID(fi, gi, ti), "tr", "taxon").
					WithData("family", fam.Family).
					WithData("genus", key))
			}
			t.closeGenus(nil, key)
		}
		t.closeFamily(nil, fam.Family)
	}
	return doc
}

// ClassOf returns the current class attribute of an element, or "" if the
// document does not know it.
func (d *Document) ClassOf(id string) string {
	if e := d.Get(id); e != nil {
		return e.ClassName()
	}
	return ""
}

// OpenAll clears every closed marker, as a printed page has no way to open
// anything.
func (d *Document) OpenAll() {
	for _, e := range d.order {
		e.RemoveClass(ClosedClass)
		if _, ok := e.Data["closed"]; ok {
			e.Data["closed"] = ""
		}
	}
}
