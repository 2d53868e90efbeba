// Package hierarchy places wiki pages into the directory tree formed by
// their parent chains. It is pure: no network, no filesystem.
package hierarchy

import (
	"errors"
	"fmt"
	"strings"
)

// Node is anything with a title and an optional parent title.
// An empty parent means the node is a root.
type Node interface {
	NodeTitle() string
	NodeParent() string
}

// Resolution describes how a placement's path was obtained.
type Resolution int

const (
	// Resolved means the parent chain ended at a true root page.
	Resolved Resolution = iota
	// FallbackToRoot means the chain ended at a parent title that is not
	// part of the page set. The broken reference is treated as "no parent".
	FallbackToRoot
)

func (r Resolution) String() string {
	switch r {
	case Resolved:
		return "resolved"
	case FallbackToRoot:
		return "fallback_to_root"
	default:
		return "unknown"
	}
}

// ErrMalformedHierarchy is matched by every MalformedHierarchyError.
var ErrMalformedHierarchy = errors.New("malformed wiki hierarchy")

// MalformedHierarchyError reports a parent chain that never reaches a root.
type MalformedHierarchyError struct {
	Title string // page whose walk did not terminate
	Chain []string
}

func (e *MalformedHierarchyError) Error() string {
	return fmt.Sprintf("malformed wiki hierarchy: parent chain of %q cycles (%s)",
		e.Title, strings.Join(e.Chain, " -> "))
}

func (e *MalformedHierarchyError) Is(target error) bool {
	return target == ErrMalformedHierarchy
}

// Placement is a page together with its project-relative directory.
type Placement[N Node] struct {
	// Segments are the ancestor titles from the tree root down to the
	// immediate parent. Empty for pages at the project root.
	Segments []string

	// Path is Segments joined with "/", or "" for the project root.
	Path string

	Page       N
	Resolution Resolution

	// MissingParent is the absent title that ended the chain when
	// Resolution is FallbackToRoot.
	MissingParent string
}

// Materialize resolves the directory of every page. The result has one
// placement per input page, in input order. A parent chain that cycles
// fails the whole set with a *MalformedHierarchyError.
func Materialize[N Node](pages []N) ([]Placement[N], error) {
	parents := make(map[string]string, len(pages))
	for _, p := range pages {
		parents[p.NodeTitle()] = p.NodeParent()
	}

	// a valid chain visits each distinct title at most once
	bound := len(parents)

	placements := make([]Placement[N], 0, len(pages))
	for _, p := range pages {
		segments, missing, err := ancestors(p.NodeTitle(), parents, bound)
		if err != nil {
			return nil, err
		}

		placement := Placement[N]{
			Segments:   segments,
			Path:       strings.Join(segments, "/"),
			Page:       p,
			Resolution: Resolved,
		}
		if missing != "" {
			placement.Resolution = FallbackToRoot
			placement.MissingParent = missing
		}
		placements = append(placements, placement)
	}

	return placements, nil
}

// ancestors walks up from title and returns the ancestor titles root-first.
// missing is set when the walk stopped at a parent absent from the map.
func ancestors(title string, parents map[string]string, bound int) (segments []string, missing string, err error) {
	var reversed []string
	current := title

	for steps := 0; ; steps++ {
		if steps > bound {
			return nil, "", &MalformedHierarchyError{
				Title: title,
				Chain: append([]string{title}, reversed...),
			}
		}

		parent := parents[current]
		if parent == "" {
			break
		}
		if _, ok := parents[parent]; !ok {
			missing = parent
			break
		}

		reversed = append(reversed, parent)
		current = parent
	}

	segments = make([]string, len(reversed))
	for i, s := range reversed {
		segments[len(reversed)-1-i] = s
	}
	return segments, missing, nil
}
