// File: internal/detect/visibility.go
package detect

import "github.com/xkilldash9x/consentry/internal/page"

// IsRendered reports whether an element actually occupies the screen: no
// display:none on it or any ancestor, computed visibility not hidden, opacity
// not exactly zero, and a non-degenerate box. Pure read, evaluated per call.
func IsRendered(e *page.Element) bool {
	if e == nil {
		return false
	}
	for cur := e; cur != nil; cur = cur.Parent {
		if cur.Display() == "none" {
			return false
		}
		if cur.Opacity() == 0 {
			return false
		}
	}
	switch e.Style("visibility", "visible") {
	case "hidden", "collapse":
		return false
	}
	return !e.Box().Empty()
}
