// Package export formats stage outputs for the clipboard and for download.
// Nothing here touches pipeline state.
package export

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

// Download file names and content types.
const (
	FeaturesFileName    = "extracted-features.txt"
	FeaturesContentType = "text/plain; charset=utf-8"
	ScopeFileName       = "scope-of-work.md"
	ScopeContentType    = "text/markdown; charset=utf-8"
)

// Artifact is a formatted output ready to be copied or downloaded.
type Artifact struct {
	FileName    string
	ContentType string
	Body        string
}

// FeatureListText renders features as a numbered list, one per line.
func FeatureListText(features pipeline.FeatureList) string {
	var b strings.Builder
	for i, item := range features.Items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, item)
	}
	return b.String()
}

// Features packages the numbered feature list as a text download.
func Features(features pipeline.FeatureList) Artifact {
	return Artifact{
		FileName:    FeaturesFileName,
		ContentType: FeaturesContentType,
		Body:        FeatureListText(features),
	}
}

// Scope packages the scope of work as a markdown download.
func Scope(scope pipeline.ScopeOutput) Artifact {
	return Artifact{
		FileName:    ScopeFileName,
		ContentType: ScopeContentType,
		Body:        scope.Markdown,
	}
}

// ContentDisposition returns the header value that makes a browser save the
// artifact under its file name.
func (a Artifact) ContentDisposition() string {
	return fmt.Sprintf("attachment; filename=%q", a.FileName)
}
