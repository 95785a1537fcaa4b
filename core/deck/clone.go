package deck

import (
	"maps"
	"slices"
)

// Clone returns a deep copy of d. Mutating the copy never affects d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		Sections:     make([]*Section, len(d.Sections)),
		Keywords:     slices.Clone(d.Keywords),
		Numbers:      slices.Clone(d.Numbers),
		IncludePaths: slices.Clone(d.IncludePaths),
		Includes:     slices.Clone(d.Includes),
		Meta:         d.Meta,
	}
	for i, s := range d.Sections {
		c.Sections[i] = s.clone()
	}
	if d.Extensions != nil {
		c.Extensions = make(map[string]map[string]string, len(d.Extensions))
		for id, m := range d.Extensions {
			c.Extensions[id] = maps.Clone(m)
		}
	}
	c.Meta.SectionNames = slices.Clone(d.Meta.SectionNames)
	c.Meta.Counts = maps.Clone(d.Meta.Counts)
	return c
}

func (s *Section) clone() *Section {
	c := *s
	if s.Tag != nil {
		tag := *s.Tag
		c.Tag = &tag
	}
	c.Lines = make([]*Line, len(s.Lines))
	for i, l := range s.Lines {
		lc := *l
		lc.Continuations = slices.Clone(l.Continuations)
		c.Lines[i] = &lc
	}
	return &c
}
