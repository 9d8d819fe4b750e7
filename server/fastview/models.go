// fastview builds server-side views: an input data model is converted to a view-model,
// multiplexed to one or more views, and each view emits element updates that a
// websocket client applies to the page.
package fastview

import (
	"html/template"
)

// EleUpdate is an element id and the operations to apply to it.
type EleUpdate struct {
	EleId string
	// Ops keys are attribute names, except 'textContent' which sets the element's text.
	Ops []Op
}

// Op is an attribute (or 'textContent') and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent is a server-side view: Parse adds its template to a parent and returns
// the template's name, Updates emits its element updates.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	Parse(*template.Template) (string, error)
}
