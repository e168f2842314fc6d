package diagnostic

import (
	"fmt"
	"go/token"
	"strings"
)

type conflictKind uint8

const (
	// kindConflict is a class with nilable and nonnil evidence.
	kindConflict conflictKind = iota
	// kindContradiction is a class where an annotation disagrees with the evidence.
	kindContradiction
	// kindOpaque is a position whose type is not inferred.
	kindOpaque
)

type conflict struct {
	kind             conflictKind
	pos              token.Pos      // position where the error is reported
	position         token.Position // resolved pos, used for sorting and nolint filtering
	subject          string         // the position the conflict is about, e.g. "F.x [param0]"
	detail           string         // kind specific part of the message
	flow             nilFlow        // stores nil flow from source to dereference point
	similarConflicts []*conflict    // stores other conflicts that are similar to this one
}

func (c *conflict) String() string {
	switch c.kind {
	case kindOpaque:
		return fmt.Sprintf("opaque type `%s` of `%s` is not inferred and assumed nonnil", c.detail, c.subject)
	case kindContradiction:
		return fmt.Sprintf("annotation contradicts inferred nilability: `%s` %s. Observed flow:%s\n",
			c.subject, c.detail, c.flow.String())
	}

	// build string for similar conflicts (i.e., conflicts with the same nil path)
	similarConflictsString := ""
	if len(c.similarConflicts) > 0 {
		similarPos := make([]string, len(c.similarConflicts))
		for i, s := range c.similarConflicts {
			similarPos[i] = fmt.Sprintf("\"%s\"", s.position.String())
		}

		posString := strings.Join(similarPos[:len(similarPos)-1], ", ")
		if len(similarPos) > 1 {
			posString = posString + ", and "
		}
		posString = posString + similarPos[len(similarPos)-1]

		similarConflictsString = fmt.Sprintf("\n\n(Same nil source could also cause potential nil panic(s) at %d "+
			"other place(s): %s.)", len(c.similarConflicts), posString)
	}

	return fmt.Sprintf("nilable value dereferenced: `%s` is found nilable but must be nonnil. Observed nil flow from "+
		"source to dereference point: %s%s\n", c.subject, c.flow.String(), similarConflictsString)
}

func (c *conflict) addSimilarConflict(conflict conflict) {
	c.similarConflicts = append(c.similarConflicts, &conflict)
}

// groupConflicts groups conflicts with the same nil path under the first of them. Only dereference
// conflicts with a known nil path are grouped.
func groupConflicts(allConflicts []conflict) []conflict {
	conflictsMap := make(map[string]int)  // key: nil path string, value: index in `allConflicts`
	indicesToIgnore := make(map[int]bool) // indices of conflicts grouped with other conflicts

	for i, c := range allConflicts {
		if c.kind != kindConflict || len(c.flow.nilPath) == 0 {
			continue
		}
		key := c.flow.key()
		if existingConflictIndex, ok := conflictsMap[key]; ok {
			allConflicts[existingConflictIndex].addSimilarConflict(c)
			indicesToIgnore[i] = true
		} else {
			conflictsMap[key] = i
		}
	}

	var groupedConflicts []conflict
	for i, c := range allConflicts {
		if !indicesToIgnore[i] {
			groupedConflicts = append(groupedConflicts, c)
		}
	}
	return groupedConflicts
}
