package caldav

import (
	"encoding/xml"
	"time"
)

// TimeRange restricts a filter to a time interval. Start is inclusive and End
// is exclusive. Both bounds are required.
type TimeRange struct {
	Start, End time.Time
}

// TextMatch matches a substring of a property or parameter value.
//
// Caseless is tri-state: nil leaves the attribute out of the request, letting
// the server apply its default collation.
type TextMatch struct {
	Text            string
	Caseless        *bool
	Collation       string
	NegateCondition bool
}

// CompFilter matches calendar components by name.
//
// At most one of IsDefined, IsNotDefined and TimeRange may be set.
type CompFilter struct {
	Name         string
	IsDefined    bool
	IsNotDefined bool
	TimeRange    *TimeRange
	Props        []PropFilter
	Comps        []CompFilter
}

// PropFilter matches calendar properties by name.
//
// At most one of IsDefined, IsNotDefined, TimeRange and TextMatch may be set.
type PropFilter struct {
	Name         string
	IsDefined    bool
	IsNotDefined bool
	TimeRange    *TimeRange
	TextMatch    *TextMatch
	ParamFilter  []ParamFilter
}

// ParamFilter matches property parameters by name.
type ParamFilter struct {
	Name         string
	IsDefined    bool
	IsNotDefined bool
	TextMatch    *TextMatch
}

// Validate checks the time range bounds.
func (tr *TimeRange) Validate() error {
	if tr.Start.IsZero() {
		return &ValidationError{Element: "time-range", Reason: "missing start"}
	}
	if tr.End.IsZero() {
		return &ValidationError{Element: "time-range", Reason: "missing end"}
	}
	return nil
}

func (tm *TextMatch) validate() error {
	if tm.Text == "" {
		return &ValidationError{Element: "text-match", Reason: "missing text"}
	}
	return nil
}

func countPredicates(isDefined, isNotDefined, timeRange, textMatch bool) int {
	n := 0
	for _, b := range []bool{isDefined, isNotDefined, timeRange, textMatch} {
		if b {
			n++
		}
	}
	return n
}

// Validate checks the filter and all of its descendants.
func (cf *CompFilter) Validate() error {
	if cf.Name == "" {
		return &ValidationError{Element: "comp-filter", Reason: "missing name"}
	}
	if countPredicates(cf.IsDefined, cf.IsNotDefined, cf.TimeRange != nil, false) > 1 {
		return &ValidationError{Element: "comp-filter", Name: cf.Name, Reason: "is-defined, is-not-defined and time-range are mutually exclusive"}
	}
	if cf.IsNotDefined && (len(cf.Props) > 0 || len(cf.Comps) > 0) {
		return &ValidationError{Element: "comp-filter", Name: cf.Name, Reason: "is-not-defined can't have nested filters"}
	}
	if cf.TimeRange != nil {
		if err := cf.TimeRange.Validate(); err != nil {
			return wrapValidationError(err, "comp-filter", cf.Name)
		}
	}
	for i := range cf.Props {
		if err := cf.Props[i].Validate(); err != nil {
			return wrapValidationError(err, "comp-filter", cf.Name)
		}
	}
	for i := range cf.Comps {
		if err := cf.Comps[i].Validate(); err != nil {
			return wrapValidationError(err, "comp-filter", cf.Name)
		}
	}
	return nil
}

// Validate checks the filter and its parameter filters.
func (pf *PropFilter) Validate() error {
	if pf.Name == "" {
		return &ValidationError{Element: "prop-filter", Reason: "missing name"}
	}
	if countPredicates(pf.IsDefined, pf.IsNotDefined, pf.TimeRange != nil, pf.TextMatch != nil) > 1 {
		return &ValidationError{Element: "prop-filter", Name: pf.Name, Reason: "is-defined, is-not-defined, time-range and text-match are mutually exclusive"}
	}
	if pf.IsNotDefined && len(pf.ParamFilter) > 0 {
		return &ValidationError{Element: "prop-filter", Name: pf.Name, Reason: "is-not-defined can't have nested filters"}
	}
	if pf.TimeRange != nil {
		if err := pf.TimeRange.Validate(); err != nil {
			return wrapValidationError(err, "prop-filter", pf.Name)
		}
	}
	if pf.TextMatch != nil {
		if err := pf.TextMatch.validate(); err != nil {
			return wrapValidationError(err, "prop-filter", pf.Name)
		}
	}
	for i := range pf.ParamFilter {
		if err := pf.ParamFilter[i].Validate(); err != nil {
			return wrapValidationError(err, "prop-filter", pf.Name)
		}
	}
	return nil
}

// Validate checks that the parameter filter has a name and at most one
// predicate.
func (pf *ParamFilter) Validate() error {
	if pf.Name == "" {
		return &ValidationError{Element: "param-filter", Reason: "missing name"}
	}
	if countPredicates(pf.IsDefined, pf.IsNotDefined, false, pf.TextMatch != nil) > 1 {
		return &ValidationError{Element: "param-filter", Name: pf.Name, Reason: "is-defined, is-not-defined and text-match are mutually exclusive"}
	}
	if pf.TextMatch != nil {
		if err := pf.TextMatch.validate(); err != nil {
			return wrapValidationError(err, "param-filter", pf.Name)
		}
	}
	return nil
}

// Render validates the filter and returns its CALDAV:filter element, with cf
// as the root comp-filter.
func (cf *CompFilter) Render() ([]byte, error) {
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return xml.Marshal(nodeElement{filterNode{*cf}})
}

var (
	filterName      = xml.Name{namespace, "filter"}
	compFilterName  = xml.Name{namespace, "comp-filter"}
	propFilterName  = xml.Name{namespace, "prop-filter"}
	paramFilterName = xml.Name{namespace, "param-filter"}
	timeRangeName   = xml.Name{namespace, "time-range"}
	textMatchName   = xml.Name{namespace, "text-match"}

	isDefinedName    = xml.Name{namespace, "is-defined"}
	isNotDefinedName = xml.Name{namespace, "is-not-defined"}
)

const dateWithUTCTimeFormat = "20060102T150405Z"

func formatDateWithUTCTime(t time.Time) string {
	return t.UTC().Format(dateWithUTCTimeFormat)
}

func nameAttr(name string) []xml.Attr {
	return []xml.Attr{{Name: xml.Name{Local: "name"}, Value: name}}
}

func predicateNodes(isDefined, isNotDefined bool) []node {
	switch {
	case isNotDefined:
		return []node{emptyNode(isNotDefinedName)}
	case isDefined:
		return []node{emptyNode(isDefinedName)}
	}
	return nil
}

type filterNode struct {
	root CompFilter
}

func (n filterNode) xmlName() xml.Name      { return filterName }
func (n filterNode) xmlAttrs() []xml.Attr   { return nil }
func (n filterNode) xmlText() string        { return "" }
func (n filterNode) xmlChildren() []node    { return []node{n.root} }
func (cf CompFilter) xmlName() xml.Name     { return compFilterName }
func (cf CompFilter) xmlAttrs() []xml.Attr  { return nameAttr(cf.Name) }
func (cf CompFilter) xmlText() string       { return "" }
func (pf PropFilter) xmlName() xml.Name     { return propFilterName }
func (pf PropFilter) xmlAttrs() []xml.Attr  { return nameAttr(pf.Name) }
func (pf PropFilter) xmlText() string       { return "" }
func (pf ParamFilter) xmlName() xml.Name    { return paramFilterName }
func (pf ParamFilter) xmlAttrs() []xml.Attr { return nameAttr(pf.Name) }
func (pf ParamFilter) xmlText() string      { return "" }

func (cf CompFilter) xmlChildren() []node {
	children := predicateNodes(cf.IsDefined, cf.IsNotDefined)
	if cf.TimeRange != nil {
		children = append(children, *cf.TimeRange)
	}
	for _, pf := range cf.Props {
		children = append(children, pf)
	}
	for _, child := range cf.Comps {
		children = append(children, child)
	}
	return children
}

func (pf PropFilter) xmlChildren() []node {
	children := predicateNodes(pf.IsDefined, pf.IsNotDefined)
	if pf.TimeRange != nil {
		children = append(children, *pf.TimeRange)
	}
	if pf.TextMatch != nil {
		children = append(children, *pf.TextMatch)
	}
	for _, param := range pf.ParamFilter {
		children = append(children, param)
	}
	return children
}

func (pf ParamFilter) xmlChildren() []node {
	children := predicateNodes(pf.IsDefined, pf.IsNotDefined)
	if pf.TextMatch != nil {
		children = append(children, *pf.TextMatch)
	}
	return children
}

func (tr TimeRange) xmlName() xml.Name { return timeRangeName }
func (tr TimeRange) xmlText() string   { return "" }
func (tr TimeRange) xmlChildren() []node {
	return nil
}

func (tr TimeRange) xmlAttrs() []xml.Attr {
	return []xml.Attr{
		{Name: xml.Name{Local: "start"}, Value: formatDateWithUTCTime(tr.Start)},
		{Name: xml.Name{Local: "end"}, Value: formatDateWithUTCTime(tr.End)},
	}
}

func (tm TextMatch) xmlName() xml.Name { return textMatchName }
func (tm TextMatch) xmlText() string   { return tm.Text }
func (tm TextMatch) xmlChildren() []node {
	return nil
}

func (tm TextMatch) xmlAttrs() []xml.Attr {
	var attrs []xml.Attr
	if tm.Caseless != nil {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "caseless"}, Value: yesNo(*tm.Caseless)})
	}
	if tm.Collation != "" {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "collation"}, Value: tm.Collation})
	}
	if tm.NegateCondition {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "negate-condition"}, Value: yesNo(true)})
	}
	return attrs
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
