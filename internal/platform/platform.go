// Package platform defines what the sync engine needs from a survey platform.
package platform

import (
	"context"
	"io"

	"surveysync/internal/model"
)

// Client is the remote survey platform. Implementations return a
// *model.TransportError for non-success responses and never retry.
type Client interface {
	// FetchMatching returns every raw record of formID matching filter, with
	// nested and repeated structures expanded inline. An empty filter matches all.
	FetchMatching(ctx context.Context, formID, filter string) ([]map[string]any, error)

	// FetchAttachmentList lists a submission's expected attachments.
	FetchAttachmentList(ctx context.Context, formID, submissionID string) ([]model.AttachmentInfo, error)

	// FetchAttachment opens an attachment's bytes as a stream. The caller closes it.
	FetchAttachment(ctx context.Context, formID, submissionID, name string) (io.ReadCloser, error)
}
