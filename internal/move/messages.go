package move

// Messages are the user-facing texts of move failures.
type Messages struct {
	WrongPage         string
	SourcePageDeleted string
	InvalidPageName   string
	EditingTarget     string
	EditingSource     string
	EditConflictRetry string
	Network           string
	API               string // followed by the error code
	LocateSection     string
	Unknown           string
	MovedFrom         string // edit summary, followed by a wikilink
	MovedTo           string // edit summary, followed by a wikilink
}

// English is the default message set.
var English = Messages{
	WrongPage:         "Wrong page.",
	SourcePageDeleted: "The current page was deleted.",
	InvalidPageName:   "Invalid page name.",
	EditingTarget:     "Error while editing the target page.",
	EditingSource:     "Error while editing the source page. You will have to edit it manually.",
	EditConflictRetry: "Just retry.",
	Network:           "Network error.",
	API:               "API error:",
	LocateSection:     "Couldn't locate the section in the code. It may have been changed or removed.",
	Unknown:           "Unknown error.",
	MovedFrom:         "moved from",
	MovedTo:           "moved to",
}
