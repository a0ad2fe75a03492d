package provider

import "github.com/driveindex/syncd/internal/domain"

// ListDescriptorsResponse is PC's decoded response to a list-descriptors
// call. NextPageToken is empty when there are no further pages.
type ListDescriptorsResponse struct {
	Descriptors   []domain.FileDescriptor `json:"descriptors"`
	NextPageToken string                  `json:"nextPageToken"`
}

// ChangeRecord is one entry of a list-changes page: either a removal
// (Removed, FileID set) or a descriptor update (Descriptor set).
// Trashed descriptors are surfaced so the caller can decide to skip them.
type ChangeRecord struct {
	Removed    bool                    `json:"removed"`
	FileID     string                  `json:"fileId"`
	Descriptor *domain.FileDescriptor `json:"descriptor,omitempty"`
	Trashed    bool                    `json:"trashed"`
}

// ListChangesResponse is PC's decoded response to a list-changes call.
// NewStartPageToken is only populated on the final page of a walk and
// becomes the cursor for the next incremental sync.
type ListChangesResponse struct {
	Changes           []ChangeRecord `json:"changes"`
	NextPageToken     string         `json:"nextPageToken"`
	NewStartPageToken string         `json:"newStartPageToken"`
}

// StartCursorResponse is PC's decoded response to obtaining an initial
// change cursor.
type StartCursorResponse struct {
	StartPageToken string `json:"startPageToken"`
}
