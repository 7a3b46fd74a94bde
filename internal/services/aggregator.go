package services

import (
	"context"
	"fmt"
	"strings"
)

const pageSeparator = "\n\n---\n\n"

// aggregateMarkdown concatenates the .md objects under prefix in name order,
// which is page order for the zero-padded page objects the workflow writes.
func aggregateMarkdown(ctx context.Context, blobs BlobStore, bucket, prefix string) (string, int, error) {
	uris, err := blobs.List(ctx, bucket, prefix)
	if err != nil {
		return "", 0, fmt.Errorf("failed to list markdown files: %w", err)
	}

	var pages []string
	for _, uri := range uris {
		if !strings.HasSuffix(uri, ".md") {
			continue
		}
		data, err := blobs.Read(ctx, uri)
		if err != nil {
			return "", 0, fmt.Errorf("failed to read %s: %w", uri, err)
		}
		pages = append(pages, strings.TrimSpace(string(data)))
	}
	return strings.Join(pages, pageSeparator), len(pages), nil
}
