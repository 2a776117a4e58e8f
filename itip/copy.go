package itip

import (
	"github.com/emersion/go-ical"
)

// Copy returns a deep copy of a calendar.
func Copy(cal *ical.Calendar) *ical.Calendar {
	if cal == nil {
		return nil
	}
	return &ical.Calendar{Component: copyComponent(cal.Component)}
}

func copyComponent(comp *ical.Component) *ical.Component {
	if comp == nil {
		return nil
	}

	out := &ical.Component{
		Name:  comp.Name,
		Props: make(ical.Props, len(comp.Props)),
	}
	for name, props := range comp.Props {
		l := make([]ical.Prop, len(props))
		for i, prop := range props {
			l[i] = copyProp(prop)
		}
		out.Props[name] = l
	}
	if comp.Children != nil {
		out.Children = make([]*ical.Component, len(comp.Children))
		for i, child := range comp.Children {
			out.Children[i] = copyComponent(child)
		}
	}
	return out
}

func copyProp(prop ical.Prop) ical.Prop {
	if prop.Params != nil {
		params := make(ical.Params, len(prop.Params))
		for k, v := range prop.Params {
			params[k] = append([]string(nil), v...)
		}
		prop.Params = params
	}
	return prop
}
