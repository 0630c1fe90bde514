package move

import (
	"github.com/GergesShamon/convenient-discussions/internal/discussion"
	"github.com/GergesShamon/convenient-discussions/internal/page"
	"github.com/GergesShamon/convenient-discussions/internal/wikitext"
)

// TargetCode returns the moved section's new code and the full new text of
// the target page. begin and end are the target markers; line breaks are
// added only around a two-part marker.
func TargetCode(loc *discussion.Location, targetCode string, placement page.Placement, begin, end string) (sectionCode, newCode string) {
	if end != "" {
		begin += "\n"
		end = "\n" + end
	}

	rel := loc.RelativeContentStartIndex
	sectionCode = wikitext.EndWithTwoNewlines(loc.Code[:rel] + begin + loc.Code[rel:] + end)

	if placement.AreNewTopicsOnTop {
		// A page without sections gets the topic at the bottom.
		at := placement.FirstSectionStartIndex
		if at < 0 || at > len(targetCode) {
			at = len(targetCode)
		}
		newCode = wikitext.EndWithTwoNewlines(targetCode[:at]) + sectionCode + targetCode[at:]
		return sectionCode, newCode
	}

	if targetCode != "" {
		newCode = targetCode + "\n" + sectionCode
	} else {
		newCode = sectionCode
	}
	return sectionCode, newCode
}

// SourceCode returns the new text of the source page with the section
// removed. A non-empty marker keeps the heading and replaces the content.
func SourceCode(sourceCode string, loc *discussion.Location, marker string) string {
	replacement := ""
	if marker != "" {
		replacement = loc.Code[:loc.RelativeContentStartIndex] + marker + "\n"
	}
	return sourceCode[:loc.StartIndex] + replacement + sourceCode[loc.EndIndex:]
}
